package pathexpr

import "errors"

// ErrMalformedPath indicates a path expression the query engine cannot parse.
var ErrMalformedPath = errors.New("malformed path expression")
