package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/mandelsoft/vergraph/cmds/vgctl/app"
	"github.com/mandelsoft/vergraph/pkg/ctxutil"
)

func main() {
	cmd := app.New()
	cmd.SetArgs(os.Args[1:])
	ctx := ctxutil.SignalContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer ctxutil.Cancel(ctx)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}
