package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/meetchat/internal/config"
	"github.com/joebot/meetchat/internal/meeting"
)

// threadArchiveMinutes is how long an idle mirror thread stays open.
const threadArchiveMinutes = 1440

// discordAPI is the part of a discordgo session the client uses.
type discordAPI interface {
	Open() error
	Close() error
	OnMessageCreate(fn func(*discordgo.MessageCreate)) func()
	ActiveThreads(guildID string) ([]*discordgo.Channel, error)
	StartThread(channelID, name string) (*discordgo.Channel, error)
	SendMessage(channelID, content string) (*discordgo.Message, error)
}

type sessionAPI struct {
	s *discordgo.Session
}

func (a sessionAPI) Open() error  { return a.s.Open() }
func (a sessionAPI) Close() error { return a.s.Close() }

func (a sessionAPI) OnMessageCreate(fn func(*discordgo.MessageCreate)) func() {
	return a.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { fn(m) })
}

func (a sessionAPI) ActiveThreads(guildID string) ([]*discordgo.Channel, error) {
	list, err := a.s.GuildThreadsActive(guildID)
	if err != nil {
		return nil, err
	}
	return list.Threads, nil
}

func (a sessionAPI) StartThread(channelID, name string) (*discordgo.Channel, error) {
	return a.s.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, threadArchiveMinutes)
}

func (a sessionAPI) SendMessage(channelID, content string) (*discordgo.Message, error) {
	return a.s.ChannelMessageSend(channelID, content)
}

// DiscordClient mirrors meeting chat into Discord threads under one parent
// channel. Each meeting thread maps to a Discord thread named after it.
type DiscordClient struct {
	api       discordAPI
	guildID   string
	channelID string

	handlers handlerSet
	remove   func()

	mu      sync.Mutex
	threads map[string]string // discord thread id -> meeting thread id
	open    bool
}

var _ Client = (*DiscordClient)(nil)

// NewDiscordClient creates a bot session for cfg. Nothing is dialed until
// StartNotifications.
func NewDiscordClient(cfg config.DiscordConfig, opts Options) (*DiscordClient, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord bot token not configured")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("discord channelId not configured")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if cfg.Intents != 0 {
		s.Identify.Intents = discordgo.Intent(cfg.Intents)
	}
	if opts.HTTPClient != nil {
		s.Client = opts.HTTPClient
	}
	return newDiscordClient(sessionAPI{s: s}, cfg), nil
}

func newDiscordClient(api discordAPI, cfg config.DiscordConfig) *DiscordClient {
	d := &DiscordClient{
		api:       api,
		guildID:   cfg.GuildID,
		channelID: cfg.ChannelID,
		threads:   make(map[string]string),
	}
	d.remove = api.OnMessageCreate(d.handleMessageCreate)
	return d
}

func (d *DiscordClient) Register(kind EventKind, h Handler) func() {
	return d.handlers.add(kind, h)
}

// StartNotifications opens the Discord gateway connection.
func (d *DiscordClient) StartNotifications(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil
	}
	if err := d.api.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	d.open = true
	slog.Info("Discord gateway connected", "channel", d.channelID)
	return nil
}

// ThreadClient finds the mirror thread for threadID, creating it if needed.
func (d *DiscordClient) ThreadClient(ctx context.Context, threadID string) (Thread, error) {
	if threadID == "" {
		return nil, errors.New("chat thread id is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := meeting.ThreadName(threadID)

	var found *discordgo.Channel
	if d.guildID != "" {
		threads, err := d.api.ActiveThreads(d.guildID)
		if err != nil {
			return nil, fmt.Errorf("list discord threads: %w", err)
		}
		for _, ch := range threads {
			if ch.ParentID == d.channelID && ch.Name == name {
				found = ch
				break
			}
		}
	}
	if found == nil {
		ch, err := d.api.StartThread(d.channelID, name)
		if err != nil {
			return nil, fmt.Errorf("start discord thread: %w", err)
		}
		found = ch
		slog.Info("Discord mirror thread created", "thread", ch.ID, "name", name)
	}

	d.mu.Lock()
	d.threads[found.ID] = threadID
	d.mu.Unlock()
	return &discordThread{client: d, channelID: found.ID, meetingID: threadID}, nil
}

func (d *DiscordClient) handleMessageCreate(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	d.mu.Lock()
	threadID, ok := d.threads[m.ChannelID]
	d.mu.Unlock()
	if !ok {
		return
	}

	sender := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		sender = m.Member.Nick
	}
	d.handlers.emit(ChatMessageReceived, MessageEvent{
		ID:                m.ID,
		ThreadID:          threadID,
		SenderDisplayName: sender,
		Content:           m.Content,
		CreatedOn:         m.Timestamp,
	})
}

// Close disconnects from Discord and drops registered handlers.
func (d *DiscordClient) Close() error {
	d.remove()
	d.handlers.clear()
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil
	}
	d.open = false
	return d.api.Close()
}

type discordThread struct {
	client    *DiscordClient
	channelID string
	meetingID string
}

func (t *discordThread) ID() string { return t.meetingID }

// Send posts content on behalf of senderDisplayName. Bot messages never come
// back through the gateway, so the sent message is echoed to handlers.
func (t *discordThread) Send(ctx context.Context, content, senderDisplayName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := t.client.api.SendMessage(t.channelID, fmt.Sprintf("**%s**: %s", senderDisplayName, content))
	if err != nil {
		return "", fmt.Errorf("send discord message: %w", err)
	}
	t.client.handlers.emit(ChatMessageReceived, MessageEvent{
		ID:                msg.ID,
		ThreadID:          t.meetingID,
		SenderDisplayName: senderDisplayName,
		Content:           content,
		CreatedOn:         msg.Timestamp,
	})
	return msg.ID, nil
}
