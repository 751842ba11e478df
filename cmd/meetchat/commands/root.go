package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joebot/meetchat/internal/cli"
	"github.com/joebot/meetchat/internal/config"
	"github.com/joebot/meetchat/internal/logging"
)

var (
	cfgPath    string
	passphrase string
	logLevel   string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "meetchat",
		Short:         "Join Teams meetings and their chat from the terminal",
		Version:       cli.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runUI,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.meetchat/config.json)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the sealed access token")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		uiCmd(),
		joinCmd(),
		statusCmd(),
		onboardCmd(),
		tokenCmd(),
		threadIDCmd(),
		historyCmd(),
		versionCmd(),
	)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrStyle.Render("  Error: ")+err.Error())
	}
	return err
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.ConfigPath()
}

// loadConfig reads the config file. Validation problems are printed as a
// warning; the defaults-applied config is still returned.
func loadConfig() *config.Config {
	cfg, err := config.LoadFrom(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	return cfg
}

func level(cfg *config.Config) slog.Level {
	if logLevel != "" {
		return logging.ParseLevel(logLevel)
	}
	return logging.ParseLevel(cfg.Log.Level)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s meetchat v%s", cli.Logo, cli.Version)))
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, _ := config.LoadFrom(configPath())
			cli.RunStatus(cfg, configPath())
		},
	}
}

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Create or upgrade the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunOnboard(configPath())
		},
	}
}
