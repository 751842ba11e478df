package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const Logo = "📞"
const Version = "0.1.0"

var (
	Accent = lipgloss.Color("#00D4FF")
	Subtle = lipgloss.Color("#555555")
	Green  = lipgloss.Color("#04B575")
	Red    = lipgloss.Color("#FF4444")
	Amber  = lipgloss.Color("#FFB000")

	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	BoldStyle   = lipgloss.NewStyle().Bold(true)
	OwnLabel    = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	PeerLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	ErrStyle    = lipgloss.NewStyle().Foreground(Red)
	OkStyle     = lipgloss.NewStyle().Foreground(Green).Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(Subtle)
	NoticeStyle = lipgloss.NewStyle().Foreground(Amber)
	KeyStyle    = lipgloss.NewStyle().Bold(true).Foreground(Accent)

	OwnBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(Accent).
			Padding(0, 1)
	PeerBubble = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 1)
)

func StatusBadge(ok bool) string {
	if ok {
		return OkStyle.Render("✓")
	}
	return DimStyle.Render("✗")
}

// RenderBanner is the title shown before a meeting is joined.
func RenderBanner() string {
	return "  " + TitleStyle.Render(fmt.Sprintf("%s meetchat", Logo)) +
		DimStyle.Render(" v"+Version) + "\n" +
		DimStyle.Render("  Join a Teams meeting and chat with its participants.") + "\n"
}
