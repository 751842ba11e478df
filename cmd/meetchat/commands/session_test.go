package commands

import (
	"testing"

	"github.com/joebot/meetchat/internal/config"
)

func TestChatToken(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		chat     string
		want     string
	}{
		{"chat token wins", "id-token", "chat-token", "chat-token"},
		{"identity token", "id-token", "", "id-token"},
		{"sealed token", "", "", "sealed-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Identity.Token = tt.identity
			cfg.Chat.Token = tt.chat
			if got := chatToken(cfg, "sealed-token"); got != tt.want {
				t.Errorf("chatToken = %q, want %q", got, tt.want)
			}
		})
	}
}
