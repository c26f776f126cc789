package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/pincheck/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if msg := cli.ErrorMessage(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		cancel()
		os.Exit(cli.ExitCode(err))
	}
}

func run(ctx context.Context) error {
	c := cli.New(os.Stdin, os.Stdout, os.Stderr)
	return c.Execute(ctx, os.Args[1:])
}
