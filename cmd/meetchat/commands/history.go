package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joebot/meetchat/internal/cli"
	"github.com/joebot/meetchat/internal/config"
	"github.com/joebot/meetchat/internal/meeting"
	"github.com/joebot/meetchat/internal/transcript"
)

func threadIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thread-id <link>",
		Short: "Print the chat thread id embedded in a meeting link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := meeting.ExtractThreadID(args[0])
			if !ok {
				return errors.New("link has no chat thread segment")
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [threadId]",
		Short: "List archived meeting chats, or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := transcript.NewArchive(config.TranscriptDir())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				entries, err := archive.List()
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, cli.DimStyle.Render("  No archived meeting chats"))
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(out, "  %s  %s  %s\n",
						cli.DimStyle.Render(e.UpdatedAt.Local().Format("2006-01-02 15:04")),
						cli.BoldStyle.Render(fmt.Sprintf("%4d", e.Count)),
						e.ThreadID)
				}
				return nil
			}

			msgs, err := archive.Load(args[0])
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no transcript for %s", args[0])
			}
			if err != nil {
				return err
			}
			for _, m := range msgs {
				label := cli.PeerLabel.Render(m.SenderDisplayName)
				if m.Own {
					label = cli.OwnLabel.Render(m.SenderDisplayName)
				}
				stamp := ""
				if !m.CreatedOn.IsZero() {
					stamp = cli.DimStyle.Render(m.CreatedOn.Local().Format("15:04") + " ")
				}
				fmt.Fprintf(out, "%s%s: %s\n", stamp, label, m.Content)
			}
			return nil
		},
	}
}
