// Package discord implements the Discord host channel for Wingman using
// discordgo.
//
// Features:
//   - Send/receive text messages
//   - Typing indicators
//   - Focus events driven by operator activity
//   - Operator alerts via DM
//   - Guild and channel allowlists
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rbarroso/wingman/pkg/wingman/channels"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// OperatorID is the Discord user the bot acts on behalf of. Their
	// activity drives conversation focus and they receive alerts.
	OperatorID string `yaml:"operator_id"`

	// AllowedGuilds restricts which guild (server) IDs the bot listens in.
	// Empty means listen in all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs the bot listens in.
	// Empty means listen in all channels.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

// Discord implements channels.Channel, channels.PresenceChannel,
// channels.FocusChannel, and channels.NotifyChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages is the channel for incoming messages forwarded to the loop.
	messages chan *channels.IncomingMessage

	// focus carries operator-activity focus events.
	focus chan *channels.FocusEvent

	// connected tracks connection state.
	connected atomic.Bool

	// lastMsg tracks the last message timestamp for health.
	lastMsg atomic.Value // time.Time

	// errorCount tracks consecutive errors.
	errorCount atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
		focus:    make(chan *channels.FocusEvent, 16),
	}
}

// ---------- Channel Interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	// Set intents.
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	// Register handlers.
	session.AddHandler(d.onMessageCreate)

	// Open the WebSocket connection.
	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)

	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		d.session.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Send sends a text message to the specified conversation.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}

	content := message.Content

	// Discord has a 2000 character limit per message.
	chunks := splitDiscordMessage(content, 2000)
	for i, chunk := range chunks {
		msgSend := &discordgo.MessageSend{Content: chunk}
		if i == 0 && message.ReplyTo != "" {
			msgSend.Reference = &discordgo.MessageReference{MessageID: message.ReplyTo}
		}
		if _, err := d.session.ChannelMessageSendComplex(to, msgSend); err != nil {
			d.errorCount.Add(1)
			return err
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// ---------- PresenceChannel Interface ----------

// SendTyping sends a typing indicator to the conversation.
func (d *Discord) SendTyping(ctx context.Context, to string) error {
	if d.session == nil {
		return nil
	}
	return d.session.ChannelTyping(to)
}

// ---------- FocusChannel Interface ----------

// FocusEvents returns the focus events channel.
func (d *Discord) FocusEvents() <-chan *channels.FocusEvent {
	return d.focus
}

// ---------- NotifyChannel Interface ----------

// Notify sends a direct message to the operator.
func (d *Discord) Notify(ctx context.Context, text string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	if d.cfg.OperatorID == "" {
		return fmt.Errorf("discord: operator_id not configured")
	}

	dm, err := d.session.UserChannelCreate(d.cfg.OperatorID)
	if err != nil {
		return fmt.Errorf("discord: opening operator DM: %w", err)
	}
	_, err = d.session.ChannelMessageSend(dm.ID, text)
	return err
}

// ---------- Event Handlers ----------

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// The bot's own outbound messages never re-enter the loop.
	if m.Author.ID == s.State.User.ID {
		return
	}

	// Ignore other bots.
	if m.Author.Bot {
		return
	}

	if !allowed(d.cfg.AllowedGuilds, m.GuildID) && m.GuildID != "" {
		return
	}
	if !allowed(d.cfg.AllowedChannels, m.ChannelID) {
		return
	}

	fromOperator := d.cfg.OperatorID != "" && m.Author.ID == d.cfg.OperatorID

	incoming := &channels.IncomingMessage{
		ID:           m.ID,
		Channel:      "discord",
		From:         m.Author.ID,
		FromName:     m.Author.Username,
		FromOperator: fromOperator,
		ChatID:       m.ChannelID,
		IsGroup:      m.GuildID != "",
		Content:      m.Content,
		Timestamp:    m.Timestamp,
	}
	if m.ReferencedMessage != nil {
		incoming.ReplyTo = m.ReferencedMessage.ID
	}

	d.lastMsg.Store(time.Now())
	d.errorCount.Store(0)

	// Operator activity moves the conversation focus.
	if fromOperator {
		select {
		case d.focus <- &channels.FocusEvent{ChatID: m.ChannelID, At: time.Now()}:
		default:
		}
	}

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// ---------- Helpers ----------

// allowed reports whether id passes an allowlist. An empty list allows all.
func allowed(list []string, id string) bool {
	if len(list) == 0 {
		return true
	}
	for _, allowed := range list {
		if allowed == id {
			return true
		}
	}
	return false
}

// splitDiscordMessage splits a message into chunks respecting the 2000 char limit.
func splitDiscordMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		// Try to split at a newline.
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// Compile-time interface verification.
var (
	_ channels.Channel         = (*Discord)(nil)
	_ channels.PresenceChannel = (*Discord)(nil)
	_ channels.FocusChannel    = (*Discord)(nil)
	_ channels.NotifyChannel   = (*Discord)(nil)
)
