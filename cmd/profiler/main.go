// Command profiler infers schemas from JSON, CSV, YAML and HTML-table files,
// stores versioned snapshots and reports breaking changes between versions.
//
// Usage:
//
//	profiler profile data.json --save orders
//	profiler hash data.json
//	profiler diff old.json new.json --fail-on-breaking
//	profiler diff --name orders --v1 1 --v2 2
//	profiler versions orders
//
// Exit codes: 0 success, 1 failure, 3 breaking changes with --fail-on-breaking.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	// register every snapshot backend; the config picks one.
	_ "schemaprof/internal/storage/all"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitBreaking = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and maps its outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFailure
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.msg
}
