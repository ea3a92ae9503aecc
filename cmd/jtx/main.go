package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacoelho/jtx/internal/config"
	"github.com/jacoelho/jtx/internal/runner"
)

func main() {
	exitCode := run()
	os.Exit(exitCode)
}

func run() int {
	cfg, exitResult := config.Parse(os.Args)
	if exitResult != nil {
		exitResult.Print(os.Stdout, os.Stderr)
		return exitResult.Code
	}

	r, exitResult := runner.New(cfg)
	if exitResult != nil {
		exitResult.Print(os.Stdout, os.Stderr)
		return exitResult.Code
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return r.Run(ctx)
}
