// microcli - a line console for networked microcontroller boards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"microcli/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "microcli: %v\n", err)
		os.Exit(1)
	}
}
