package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"hajj-assistant/internal/core/pipeline"
)

type sessionTurner interface {
	Turn(ctx context.Context, id, text, audioTag string) (*pipeline.TurnResult, error)
}

func AskCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = "cli-" + uuid.NewString()
			}
			res, err := a.Sessions.Turn(cmd.Context(), sessionID, strings.Join(args, " "), "")
			if err != nil {
				return err
			}
			return renderPayload(cmd.OutOrStdout(), res.Response)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	return cmd
}

func ReplCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Talk to the assistant interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = "cli-" + uuid.NewString()
			}
			return repl(cmd.Context(), a.Sessions, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	return cmd
}

// repl reads one utterance per line until EOF or "exit". A busy session is
// reported and the loop goes on.
func repl(ctx context.Context, sessions sessionTurner, id string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "session %s (type exit to quit)\n", id)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := sessions.Turn(ctx, id, line, "")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := renderPayload(out, res.Response); err != nil {
			return err
		}
	}
}
