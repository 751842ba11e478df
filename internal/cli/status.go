package cli

import (
	"fmt"
	"os"

	"github.com/joebot/meetchat/internal/config"
	"github.com/joebot/meetchat/internal/transcript"
)

// RunStatus displays the configuration loaded from cfgPath with styled output.
func RunStatus(cfg *config.Config, cfgPath string) {

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s meetchat Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-14s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-14s %s\n", "Display name", cfg.Identity.DisplayName)
	fmt.Printf("  %-14s %s  %s\n", "Access token", StatusBadge(tokenConfigured(cfg)), DimStyle.Render(tokenSource(cfg)))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Calling"))
	fmt.Printf("    %s  Gateway  %s\n", StatusBadge(cfg.Calling.GatewayURL != ""), DimStyle.Render(orNone(cfg.Calling.GatewayURL)))
	fmt.Printf("    %s  Start muted\n", StatusBadge(cfg.Calling.StartMuted))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Chat"))
	switch cfg.Chat.Backend {
	case config.BackendDiscord:
		ok := cfg.Discord.Token != "" && cfg.Discord.ChannelID != ""
		fmt.Printf("    %s  Discord  %s\n", StatusBadge(ok), DimStyle.Render("channel "+orNone(cfg.Discord.ChannelID)))
	default:
		fmt.Printf("    %s  Gateway  %s\n", StatusBadge(cfg.Chat.Endpoint != ""), DimStyle.Render(orNone(cfg.Chat.Endpoint)))
	}
	fmt.Printf("    %s  Dedupe by message id\n", StatusBadge(cfg.Chat.Dedupe))
	fmt.Printf("    %s  Archive transcripts\n", StatusBadge(cfg.Chat.Archive))

	if cfg.Chat.Archive {
		count := 0
		if a, err := transcript.NewArchive(config.TranscriptDir()); err == nil {
			if entries, err := a.List(); err == nil {
				count = len(entries)
			}
		}
		fmt.Printf("       %s\n", DimStyle.Render(fmt.Sprintf("%d archived in %s", count, config.TranscriptDir())))
	}
	fmt.Println()
}

func tokenConfigured(cfg *config.Config) bool {
	return cfg.Identity.Token != "" || fileExists(cfg.TokenFilePath())
}

func tokenSource(cfg *config.Config) string {
	switch {
	case os.Getenv(config.EnvToken) != "":
		return "from " + config.EnvToken
	case cfg.Identity.Token != "":
		return "inline in config"
	case fileExists(cfg.TokenFilePath()):
		return "sealed at " + cfg.TokenFilePath()
	}
	return "not set (meetchat token set)"
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
