package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rshade/costlens/internal/cli"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/source"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker.

// Exit codes.
const (
	exitError       = 1
	exitSchema      = 2
	exitUnavailable = 3
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string) error {
	root := cli.NewRootCmd(version)
	root.SilenceErrors = true
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// exitCode distinguishes unusable input and unreachable data sources from
// other failures so scripts can react to them.
func exitCode(err error) int {
	switch {
	case errors.Is(err, ingest.ErrSchema):
		return exitSchema
	case errors.Is(err, source.ErrUnavailable):
		return exitUnavailable
	default:
		return exitError
	}
}
