package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/meetchat/internal/bus"
	"github.com/joebot/meetchat/internal/permission"
)

// Session is the set of user actions the UI can trigger.
type Session interface {
	JoinMeeting(link string)
	LeaveMeeting()
	SendMessage(text string)
}

// Controller is a Session that can also be started and observed.
type Controller interface {
	Session
	Initialize()
	Subscribe(fn bus.UpdateHandler) func()
}

// --- message types ---

type updateMsg struct {
	update bus.Update
}

type micPromptMsg struct {
	reply chan<- bool
}

type focusField int

const (
	focusLink focusField = iota
	focusChat
)

// --- session model ---

type sessionModel struct {
	link     textinput.Model
	draft    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	session   Session
	snap      bus.Snapshot
	notice    string
	noticeErr bool
	focus     focusField
	micReply  chan<- bool

	ready  bool
	width  int
	height int
}

func newSessionModel(s Session) sessionModel {
	link := textinput.New()
	link.Placeholder = "Teams meeting link"
	link.Prompt = "🔗 "
	link.PromptStyle = lipgloss.NewStyle().Foreground(Accent)
	link.CharLimit = 0
	link.Focus()

	draft := textinput.New()
	draft.Placeholder = "Enter your message..."
	draft.Prompt = "❯ "
	draft.PromptStyle = lipgloss.NewStyle().Foreground(Accent)
	draft.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)

	return sessionModel{
		link:    link,
		draft:   draft,
		spinner: sp,
		session: s,
	}
}

func (m sessionModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Layout: header + link + status + divider + viewport + divider + input + help = 7 fixed
		vpHeight := msg.Height - 7
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.link.Width = msg.Width - 6
		m.draft.Width = msg.Width - 4
		m.viewport.SetContent(m.renderMessages())
		return m, nil

	case updateMsg:
		wasJoining := m.snap.Joining
		m.snap = msg.update.Snapshot
		if r := msg.update.Report; r != nil {
			m.notice = r.Text
			m.noticeErr = r.Failed()
		}
		if msg.update.DraftCleared {
			m.draft.SetValue("")
		}
		if m.ready {
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
		}
		var cmds []tea.Cmd
		if m.snap.HasThread && m.focus == focusLink && m.snap.InCall() {
			cmds = append(cmds, m.setFocus(focusChat))
		}
		if m.snap.Joining && !wasJoining {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case micPromptMsg:
		m.micReply = msg.reply
		return m, nil

	case spinner.TickMsg:
		if m.snap.Joining {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.micReply != nil {
			return m.answerMic(msg)
		}
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab:
			next := focusChat
			if m.focus == focusChat {
				next = focusLink
			}
			return m, m.setFocus(next)
		case tea.KeyCtrlL:
			if m.snap.CanLeave() {
				m.session.LeaveMeeting()
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.focus == focusLink {
		m.link, cmd = m.link.Update(msg)
	} else {
		m.draft, cmd = m.draft.Update(msg)
	}
	return m, cmd
}

func (m sessionModel) answerMic(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var granted bool
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.micReply <- false
		m.micReply = nil
		return m, tea.Quit
	case msg.String() == "y" || msg.String() == "Y":
		granted = true
	case msg.String() == "n" || msg.String() == "N" || msg.Type == tea.KeyEsc:
		granted = false
	default:
		return m, nil
	}
	m.micReply <- granted
	m.micReply = nil
	return m, nil
}

func (m sessionModel) submit() (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusLink:
		link := strings.TrimSpace(m.link.Value())
		if link != "" && m.snap.CanJoin() {
			m.session.JoinMeeting(link)
		}
	case focusChat:
		text := strings.TrimSpace(m.draft.Value())
		if text != "" && m.snap.CanSend() {
			m.session.SendMessage(text)
		}
	}
	return m, nil
}

func (m *sessionModel) setFocus(f focusField) tea.Cmd {
	m.focus = f
	if f == focusLink {
		m.draft.Blur()
		return m.link.Focus()
	}
	m.link.Blur()
	return m.draft.Focus()
}

func (m sessionModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	divider := DimStyle.Render(strings.Repeat("─", m.width))

	return m.renderHeader() + "\n" +
		" " + m.link.View() + "\n" +
		m.renderStatus() + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		m.renderInput() + "\n" +
		m.renderHelp()
}

func (m sessionModel) renderHeader() string {
	left := TitleStyle.Render(fmt.Sprintf(" %s meetchat", Logo))
	right := DimStyle.Render(m.snap.DisplayName + " ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m sessionModel) renderStatus() string {
	status := m.snap.Status
	if status == "" {
		status = "Idle"
	}
	line := " " + BoldStyle.Render("Status") + " " + status
	if m.notice != "" {
		style := NoticeStyle
		if m.noticeErr {
			style = ErrStyle
		}
		line += DimStyle.Render("  ·  ") + style.Render(m.notice)
	}
	return line
}

func (m sessionModel) renderInput() string {
	switch {
	case m.micReply != nil:
		return " 🎤 " + BoldStyle.Render("Allow microphone access?") + DimStyle.Render(" (y/n)")
	case m.snap.Joining:
		return fmt.Sprintf(" %s Joining meeting...", m.spinner.View())
	case !m.snap.CanSend():
		return DimStyle.Render(" Chat is available once the meeting chat is joined")
	}
	return " " + m.draft.View()
}

func (m sessionModel) renderHelp() string {
	var keys []string
	if m.focus == focusLink && m.snap.CanJoin() {
		keys = append(keys, KeyStyle.Render("enter")+DimStyle.Render(" join"))
	}
	if m.focus == focusChat && m.snap.CanSend() {
		keys = append(keys, KeyStyle.Render("enter")+DimStyle.Render(" send"))
	}
	if m.snap.CanLeave() {
		keys = append(keys, KeyStyle.Render("ctrl+l")+DimStyle.Render(" leave"))
	}
	keys = append(keys,
		KeyStyle.Render("tab")+DimStyle.Render(" switch field"),
		KeyStyle.Render("ctrl+c")+DimStyle.Render(" quit"),
	)
	return " " + strings.Join(keys, DimStyle.Render(" · "))
}

func (m sessionModel) renderMessages() string {
	if len(m.snap.Messages) == 0 {
		return m.renderWelcome()
	}

	maxWidth := m.width * 2 / 3
	if maxWidth < 20 {
		maxWidth = 20
	}

	var sb strings.Builder
	for _, msg := range m.snap.Messages {
		sb.WriteString("\n")
		if msg.Own {
			block := lipgloss.JoinVertical(lipgloss.Right, OwnLabel.Render("You"), bubble(OwnBubble, msg.Content, maxWidth))
			sb.WriteString(lipgloss.PlaceHorizontal(m.width-1, lipgloss.Right, block) + "\n")
			continue
		}
		sb.WriteString(" " + PeerLabel.Render(msg.SenderDisplayName) + "\n")
		for _, line := range strings.Split(bubble(PeerBubble, msg.Content, maxWidth), "\n") {
			sb.WriteString(" " + line + "\n")
		}
	}
	return sb.String()
}

func bubble(style lipgloss.Style, content string, maxWidth int) string {
	w := lipgloss.Width(content) + 2
	if w > maxWidth {
		w = maxWidth
	}
	return style.Width(w).Render(content)
}

func (m sessionModel) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(RenderBanner())
	sb.WriteString("\n")
	sb.WriteString("  " + BoldStyle.Render("Getting started:") + "\n")
	sb.WriteString(DimStyle.Render("  1. Paste a Teams meeting link and press enter") + "\n")
	sb.WriteString(DimStyle.Render("  2. Allow microphone access when asked") + "\n")
	sb.WriteString(DimStyle.Render("  3. Press tab to move to the chat field") + "\n")
	sb.WriteString(DimStyle.Render("  4. ctrl+l leaves the meeting") + "\n")
	return sb.String()
}

// RunSession starts the interactive meeting UI. Microphone prompts from the
// coordinator are answered through prompt.
func RunSession(ctx context.Context, c Controller, prompt *permission.Prompt) error {
	m := newSessionModel(c)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := c.Subscribe(func(u bus.Update) { p.Send(updateMsg{update: u}) })
	defer unsubscribe()

	if prompt != nil {
		prompt.SetAsk(func(ctx context.Context) (bool, error) {
			reply := make(chan bool, 1)
			p.Send(micPromptMsg{reply: reply})
			select {
			case ok := <-reply:
				return ok, nil
			case <-ctx.Done():
				return false, ctx.Err()
			}
		})
	}

	c.Initialize()
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
