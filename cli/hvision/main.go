package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	hvisioncmder "github.com/papercomputeco/hvision/cmd/hvision"
	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := hvisioncmder.NewHVisionCmd()
	sub, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
	code := exitCode(err)
	if code == 2 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprint(os.Stderr, sub.UsageString())
	}
	stop()
	os.Exit(code)
}

// exitCode maps a command error to the process exit status: 2 for
// configuration errors, 1 for any other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errs.ErrConfiguration):
		return 2
	default:
		return 1
	}
}
