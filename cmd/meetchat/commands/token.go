package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joebot/meetchat/internal/cli"
	"github.com/joebot/meetchat/internal/credential"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the sealed access token",
	}
	cmd.AddCommand(tokenSetCmd(), tokenClearCmd())
	return cmd
}

func tokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Seal an access token under the passphrase; reads stdin when no token is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return errors.New("passphrase required (-p)")
			}
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				t, err := readToken(cmd.InOrStdin())
				if err != nil {
					return err
				}
				token = t
			}

			// Reject tokens that would fail at join time.
			if _, err := credential.New(token); err != nil {
				return err
			}

			cfg := loadConfig()
			vault := credential.NewVault(cfg.TokenFilePath())
			if err := vault.Seal(passphrase, token); err != nil {
				return err
			}
			fmt.Println("  " + cli.OkStyle.Render("✓") + " Token sealed at " + cli.DimStyle.Render(vault.Path))
			return nil
		},
	}
}

func tokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the sealed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if err := credential.NewVault(cfg.TokenFilePath()).Clear(); err != nil {
				return err
			}
			fmt.Println("  " + cli.OkStyle.Render("✓") + " Token removed")
			return nil
		},
	}
}

func readToken(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(os.Stderr, "Access token: ")
		}
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}
