// crux - peptide-spectrum matching toolkit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hsiaoyi0504/crux-toolkit/cmd/crux/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
