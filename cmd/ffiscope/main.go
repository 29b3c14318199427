// Command ffiscope drives the in-process foreign runtime from YAML
// scenarios or an interactive TUI and prints what every step did to
// reference counts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	cmd := &cli.Command{
		Name:  "ffiscope",
		Usage: "Exercise ownership transfer against the in-process foreign runtime",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log runtime decisions to stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.Bool("verbose"))
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Execute a scenario file",
				ArgsUsage: "<scenario.yaml>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "heap",
						Usage: "Foreign heap: linear or wazero (overrides the scenario)",
					},
				},
				Action: runAction,
			},
			{
				Name:      "check",
				Usage:     "Validate generator signatures",
				ArgsUsage: "<signatures.yaml>",
				Action:    checkAction,
			},
			{
				Name:  "interactive",
				Usage: "Run steps one at a time in a TUI",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "heap",
						Value: "linear",
						Usage: "Foreign heap: linear or wazero",
					},
				},
				Action: interactiveAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: ffiscope run <scenario.yaml>")
	}
	sc, err := LoadScenario(cmd.Args().First())
	if err != nil {
		return err
	}
	if h := cmd.String("heap"); h != "" {
		sc.Heap = h
	}
	return runScenario(ctx, sc, os.Stdout)
}

func runScenario(ctx context.Context, sc *Scenario, out io.Writer) error {
	s, err := NewSession(ctx, sc.Heap, out)
	if err != nil {
		return err
	}
	if sc.Name != "" {
		fmt.Fprintf(out, "scenario %s (run %s)\n", sc.Name, s.ID())
	}
	runErr := s.Run(sc)
	if err := s.Close(ctx); err != nil {
		logger().Warn("close session", zap.Error(err))
	}
	return runErr
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: ffiscope check <signatures.yaml>")
	}
	sigs, err := LoadSignatures(cmd.Args().First())
	if err != nil {
		return err
	}
	return checkSignatures(sigs, os.Stdout)
}

func interactiveAction(ctx context.Context, cmd *cli.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	return runInteractive(ctx, cmd.String("heap"))
}
