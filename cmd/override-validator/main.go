// Command override-validator checks and maintains the override and track tags
// that pin EDK II modules to the fingerprint of the upstream module they were
// derived from.
//
// Modes:
//   - Maintainer: override-validator -w WS -m Pkg/Mod/Mod.inf      print a tag for a module
//     override-validator -w WS -t Path/To/FileOrDir               print a tag for any target
//     override-validator -w WS -r Path/To/Overrider.inf [--dry-run]  refresh stale tags in place
//   - Walker: override-validator validate --platform Board/Board.dsc
//     validates every module the platform references and writes OVERRIDELOG.TXT.
//
// Exit status: 0 on success, the number of failing modules (capped at 254)
// after a walk, 255 when the tool was invoked wrong.
package main

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := fang.Execute(ctx, root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	return exitCode(err)
}
