package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"profiler-service/internal/models"

	"github.com/spf13/cobra"
)

func newChatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [subject]",
		Short: "Talk to a saved subject's persona",
		Long: `Loads the saved record, synchronizes the persona session and reads
messages from standard input, one per line. "exit" or end of input ends the
conversation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, c, args[0])
		},
	}
}

func runChat(cmd *cobra.Command, c *cli, name string) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	p := a.Profiler
	if _, err := p.LoadRecord(ctx, name); err != nil {
		return err
	}
	state, err := p.Synchronize()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s (%s report). Type \"exit\" to leave.\n", state.Subject, state.ReportKind)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		reply, err := p.SendTurn(ctx, text)
		if err != nil {
			if errors.Is(err, models.ErrTurnFailed) && ctx.Err() == nil {
				fmt.Fprintf(out, "[no reply: %v]\n", err)
				continue
			}
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", state.Subject, reply)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
