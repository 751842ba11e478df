package config

import "path/filepath"

// Config is the root configuration for meetchat.
type Config struct {
	Identity IdentityConfig `json:"identity"`
	Calling  CallingConfig  `json:"calling"`
	Chat     ChatConfig     `json:"chat"`
	Discord  DiscordConfig  `json:"discord"`
	Log      LogConfig      `json:"log"`
}

// IdentityConfig holds who joins the meeting and with which token.
// Token wins over TokenFile; TokenFile holds a passphrase-sealed token.
type IdentityConfig struct {
	DisplayName string `json:"displayName"`
	Token       string `json:"token"`
	TokenFile   string `json:"tokenFile"`
}

// CallingConfig holds calling gateway settings.
type CallingConfig struct {
	GatewayURL       string `json:"gatewayUrl"`
	KeepAliveSeconds int    `json:"keepAliveSeconds"`
	StartMuted       bool   `json:"startMuted"`
}

// Chat backends.
const (
	BackendGateway = "gateway"
	BackendDiscord = "discord"
)

// ChatConfig holds meeting chat settings.
type ChatConfig struct {
	Backend    string `json:"backend"`
	Endpoint   string `json:"endpoint"`
	Token      string `json:"token,omitempty"`
	APIVersion string `json:"apiVersion"`
	Dedupe     bool   `json:"dedupe"`
	Archive    bool   `json:"archive"`
}

// DiscordConfig holds settings for mirroring meeting chat into Discord threads.
type DiscordConfig struct {
	Token     string `json:"token"`
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	Intents   int    `json:"intents"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"`
}

// ChatToken returns the token used for chat, falling back to the identity token.
func (c *Config) ChatToken() string {
	if c.Chat.Token != "" {
		return c.Chat.Token
	}
	return c.Identity.Token
}

// TokenFilePath returns the expanded sealed token path.
func (c *Config) TokenFilePath() string {
	return expandHome(c.Identity.TokenFile)
}

// TranscriptDir returns where meeting chat transcripts are archived.
func TranscriptDir() string {
	return filepath.Join(DataDir(), "transcripts")
}

// LogPath returns the log file used while the interactive UI owns the terminal.
func LogPath() string {
	return filepath.Join(DataDir(), "meetchat.log")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			DisplayName: "meetchat user",
			TokenFile:   "~/.meetchat/token.sealed",
		},
		Calling: CallingConfig{
			KeepAliveSeconds: 30,
		},
		Chat: ChatConfig{
			Backend:    BackendGateway,
			APIVersion: "2021-09-07",
			Archive:    true,
		},
		Discord: DiscordConfig{
			Intents: 37377,
		},
		Log: LogConfig{Level: "info"},
	}
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home := homeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
