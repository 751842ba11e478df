package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joebot/meetchat/internal/calling"
	"github.com/joebot/meetchat/internal/chat"
	"github.com/joebot/meetchat/internal/cli"
	"github.com/joebot/meetchat/internal/config"
	"github.com/joebot/meetchat/internal/coordinator"
	"github.com/joebot/meetchat/internal/credential"
	"github.com/joebot/meetchat/internal/logging"
	"github.com/joebot/meetchat/internal/permission"
	"github.com/joebot/meetchat/internal/transcript"
)

func uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Interactive meeting and chat UI (default)",
		Args:  cobra.NoArgs,
		RunE:  runUI,
	}
}

func runUI(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	closeLog := logging.ToFile(config.LogPath(), level(cfg))
	defer closeLog()

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}

	prompt := permission.NewPrompt(nil)
	coord, err := newCoordinator(cfg, token, prompt)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stop := runCoordinator(ctx, coord)
	defer stop()
	return cli.RunSession(ctx, coord, prompt)
}

func joinCmd() *cobra.Command {
	var allowMic bool
	cmd := &cobra.Command{
		Use:   "join <link>",
		Short: "Join a meeting without the UI; stdin lines are sent to the chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logging.ToTerminal(os.Stderr, level(cfg))

			token, err := resolveToken(cfg)
			if err != nil {
				return err
			}
			coord, err := newCoordinator(cfg, token, permission.Static(allowMic))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stop := runCoordinator(ctx, coord)
			defer stop()
			return cli.RunHeadless(ctx, coord, args[0], os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&allowMic, "allow-mic", false, "grant microphone access without asking")
	return cmd
}

// runCoordinator runs coord until ctx is done. The returned func cancels it
// and waits for its capability handles to be released.
func runCoordinator(ctx context.Context, coord *coordinator.Coordinator) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := coord.Run(ctx); err != nil {
			slog.Error("Coordinator stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// resolveToken returns the inline or environment token, or opens the sealed
// token file with the passphrase.
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.Identity.Token != "" {
		return cfg.Identity.Token, nil
	}
	vault := credential.NewVault(cfg.TokenFilePath())
	if !vault.Exists() {
		return "", fmt.Errorf("no access token: set %s or run meetchat token set", config.EnvToken)
	}
	if passphrase == "" {
		return "", errors.New("passphrase required (-p) to open " + vault.Path)
	}
	return vault.Open(passphrase)
}

func newCoordinator(cfg *config.Config, token string, perm permission.Requester) (*coordinator.Coordinator, error) {
	cc := coordinator.Config{
		DisplayName: cfg.Identity.DisplayName,
		Token:       token,
		ChatToken:   chatToken(cfg, token),
		NewChat:     chatFactory(cfg),
		Permission:  perm,
		StartMuted:  cfg.Calling.StartMuted,
		Dedupe:      cfg.Chat.Dedupe,
	}
	if cfg.Calling.GatewayURL != "" {
		keepAlive := time.Duration(cfg.Calling.KeepAliveSeconds) * time.Second
		cc.Calling = calling.NewGateway(cfg.Calling.GatewayURL, keepAlive)
	}
	if cfg.Chat.Archive {
		archive, err := transcript.NewArchive(config.TranscriptDir())
		if err != nil {
			return nil, fmt.Errorf("open transcript archive: %w", err)
		}
		cc.Archive = archive
	}
	return coordinator.New(cc), nil
}

// chatToken is the configured chat token, or token when the config names
// none (a sealed token never appears in the config).
func chatToken(cfg *config.Config, token string) string {
	if t := cfg.ChatToken(); t != "" {
		return t
	}
	return token
}

func chatFactory(cfg *config.Config) coordinator.ChatFactory {
	opts := chat.Options{APIVersion: cfg.Chat.APIVersion}
	switch cfg.Chat.Backend {
	case config.BackendDiscord:
		return func(credential.Credential) (chat.Client, error) {
			c, err := chat.NewDiscordClient(cfg.Discord, opts)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	default:
		return func(cred credential.Credential) (chat.Client, error) {
			c, err := chat.NewGatewayClient(cfg.Chat.Endpoint, cred, opts)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
}
