package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/meetchat/internal/config"
)

// --- onboard selection model ---

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type onboardModel struct {
	path    string
	choices []string
	cursor  int
	chosen  bool
	choice  onboardChoice
}

func (m onboardModel) Init() tea.Cmd { return nil }

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.choice = choiceSkip
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = onboardChoice(m.cursor)
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m onboardModel) View() string {
	if m.chosen {
		return ""
	}

	s := "\n"
	s += fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(m.path))

	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = OwnLabel.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}

	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · esc cancel") + "\n"
	return s
}

// RunOnboard creates or upgrades the config file at path and prepares the
// data directory.
func RunOnboard(path string) error {
	var cfg *config.Config

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s meetchat Onboard", Logo)))

	if _, err := os.Stat(path); err == nil {
		m := onboardModel{
			path: path,
			choices: []string{
				"Upgrade: add new fields, keep existing values",
				"Overwrite: replace with fresh defaults",
				"Skip: do not modify config",
			},
		}
		final, err := tea.NewProgram(m).Run()
		if err != nil {
			return err
		}
		fm := final.(onboardModel)

		fmt.Println()
		switch fm.choice {
		case choiceUpgrade:
			upgraded, err := config.UpgradeAt(path)
			if err != nil {
				return err
			}
			cfg = upgraded
			fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
		case choiceOverwrite:
			cfg = config.DefaultConfig()
			if err := config.SaveTo(cfg, path); err != nil {
				return err
			}
			fmt.Println("  " + OkStyle.Render("✓") + " Overwritten config")
		default:
			fmt.Println("  " + DimStyle.Render("Config unchanged"))
			cfg, _ = config.LoadFrom(path)
		}
	} else {
		cfg = config.DefaultConfig()
		if err := config.SaveTo(cfg, path); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("  " + OkStyle.Render("✓") + " Created config at " + DimStyle.Render(path))
	}

	dir := config.TranscriptDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fmt.Println("  " + OkStyle.Render("✓") + " Transcripts at " + DimStyle.Render(dir))

	fmt.Println()
	fmt.Println(OkStyle.Render("  meetchat is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	if cfg == nil || cfg.Calling.GatewayURL == "" {
		fmt.Println(DimStyle.Render("  - Set calling.gatewayUrl in " + path))
	}
	if cfg == nil || (cfg.Chat.Backend == config.BackendGateway && cfg.Chat.Endpoint == "") {
		fmt.Println(DimStyle.Render("  - Set chat.endpoint in " + path))
	}
	fmt.Println(DimStyle.Render("  - Store your access token: meetchat token set"))
	fmt.Println(DimStyle.Render("  - Join: meetchat, or meetchat join <link>"))
	fmt.Println()
	return nil
}
