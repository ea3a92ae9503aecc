package evaluate

// Kind tags the outcome of evaluating one template node.
type Kind uint8

const (
	// KindNone means the node is not an instruction: containers are traversed,
	// scalars copied verbatim.
	KindNone Kind = iota
	// KindValue is a terminal value.
	KindValue
	// KindNode is a replacement template to traverse at the same path.
	KindNode
	// KindOmit drops the key from the output.
	KindOmit
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValue:
		return "value"
	case KindNode:
		return "node"
	case KindOmit:
		return "omit"
	}
	return "unknown"
}

type Result struct {
	Kind  Kind
	Value any
}

func valueResult(v any) Result { return Result{Kind: KindValue, Value: v} }

func nodeResult(n any) Result { return Result{Kind: KindNode, Value: n} }

var (
	notAnInstruction = Result{Kind: KindNone}
	omitResult       = Result{Kind: KindOmit}
)
