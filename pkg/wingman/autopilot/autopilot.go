// Package autopilot implements the Wingman reply loop: watch incoming
// messages on the host channel, gate them, assemble history, call the
// AI provider, and deliver the reply with human-like pacing.
//
// Message flow: receive → command check → transcript record → gate
// check → typing → history assembly → provider call → paced delivery →
// cooldown → gate release.
package autopilot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbarroso/wingman/pkg/wingman/channels"
	"github.com/rbarroso/wingman/pkg/wingman/history"
	"github.com/rbarroso/wingman/pkg/wingman/pacer"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
	"github.com/rbarroso/wingman/pkg/wingman/transcript"
)

// commandPrefix arms, disarms, and inspects the loop from chat.
const commandPrefix = "!auto"

// Autopilot owns the reply loop state: gate, focused conversation,
// provider, transcript window, and alerting. Constructed on start and
// torn down on stop; nothing lives in package globals.
type Autopilot struct {
	cfg     *Config
	channel channels.Channel
	store   transcript.Store
	gate    *Gate
	pacer   *pacer.Pacer
	models  *provider.ModelCache
	alerts  *alertLimiter
	logger  *slog.Logger

	// mu guards prov and activeChat.
	mu         sync.RWMutex
	prov       provider.Provider
	activeChat string

	// sleep waits out the cooldown; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	// deliver sends a generated reply; defaults to the pacer.
	deliver func(ctx context.Context, to string, reply string) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Autopilot bound to a host channel, provider, and
// transcript store.
func New(cfg *Config, ch channels.Channel, prov provider.Provider, store transcript.Store, logger *slog.Logger) *Autopilot {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Autopilot{
		cfg:     cfg,
		channel: ch,
		store:   store,
		gate:    NewGate(time.Duration(cfg.CooldownSeconds) * time.Second),
		models:  provider.NewModelCache(cfg.Models.RefreshSchedule, logger),
		alerts:  newAlertLimiter(alertInterval),
		logger:  logger.With("component", "autopilot"),
		prov:    prov,
		sleep:   sleepContext,
	}
	a.pacer = pacer.New(&recordingSender{a: a}, cfg.TypingIndicator, logger)
	a.deliver = a.pacer.Deliver
	return a
}

// Start begins consuming messages and focus events from the channel.
// The channel must already be connected.
func (a *Autopilot) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.models.Start(a.ctx); err != nil {
		return fmt.Errorf("starting model cache: %w", err)
	}
	a.models.SetProvider(a.ctx, a.Provider())

	a.wg.Add(1)
	go a.loop()

	a.logger.Info("autopilot started",
		"provider", a.Provider().Name(),
		"model", a.cfg.Provider.Model,
		"cooldown_s", a.cfg.CooldownSeconds,
		"history_window", a.cfg.HistoryWindow,
	)
	return nil
}

// Stop tears the loop down and waits for an in-flight cycle to finish.
func (a *Autopilot) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.models.Stop()
	a.wg.Wait()
	a.logger.Info("autopilot stopped")
}

// Provider returns the active provider.
func (a *Autopilot) Provider() provider.Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prov
}

// SetFocus marks a conversation as the one the loop watches.
func (a *Autopilot) SetFocus(chatID string) {
	a.mu.Lock()
	changed := a.activeChat != chatID
	a.activeChat = chatID
	a.mu.Unlock()

	if changed {
		a.logger.Debug("focus changed", "chat_id", chatID)
	}
}

// ActiveChat returns the currently focused conversation.
func (a *Autopilot) ActiveChat() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeChat
}

// Gate exposes the debounce gate (armed flags, busy state).
func (a *Autopilot) Gate() *Gate { return a.gate }

// Models exposes the cached model catalog.
func (a *Autopilot) Models() *provider.ModelCache { return a.models }

// loop drains incoming messages and focus events until shutdown.
func (a *Autopilot) loop() {
	defer a.wg.Done()

	var focusEvents <-chan *channels.FocusEvent
	if fc, ok := a.channel.(channels.FocusChannel); ok {
		focusEvents = fc.FocusEvents()
	}

	for {
		select {
		case msg, ok := <-a.channel.Receive():
			if !ok {
				return
			}
			a.handleMessage(msg)

		case ev, ok := <-focusEvents:
			if !ok {
				focusEvents = nil
				continue
			}
			a.SetFocus(ev.ChatID)

		case <-a.ctx.Done():
			return
		}
	}
}

// handleMessage routes one inbound message: operator commands first,
// then transcript recording, then the qualifying checks and the gate.
func (a *Autopilot) handleMessage(msg *channels.IncomingMessage) {
	// The bot's own messages never feed the loop.
	if msg.FromSelf {
		return
	}

	content := strings.TrimSpace(msg.Content)

	if msg.FromOperator && strings.HasPrefix(content, commandPrefix) {
		a.handleCommand(msg, content)
		return
	}

	// Record for history assembly, commands excluded.
	if content != "" {
		rec := transcript.Message{
			ID:         msg.ID,
			ChatID:     msg.ChatID,
			Author:     msg.From,
			AuthorName: msg.FromName,
			Text:       msg.Content,
			Timestamp:  msg.Timestamp,
		}
		if err := a.store.Append(a.ctx, rec); err != nil {
			a.logger.Warn("transcript append failed", "msg_id", msg.ID, "error", err)
		}
	}

	if !a.qualifies(msg, content) {
		return
	}

	if !a.gate.TryAcquire() {
		a.logger.Debug("reply in flight, message dropped",
			"chat_id", msg.ChatID, "msg_id", msg.ID)
		return
	}

	a.wg.Add(1)
	go a.runCycle(msg, content)
}

// qualifies applies the gate's entry conditions: loop enabled, the
// conversation armed and focused, a real author, real content, and not
// the operator talking to themselves.
func (a *Autopilot) qualifies(msg *channels.IncomingMessage, content string) bool {
	if !a.cfg.Enabled {
		return false
	}
	if msg.From == "" || content == "" {
		return false
	}
	if msg.FromOperator {
		return false
	}
	if !a.gate.Armed(msg.ChatID) {
		return false
	}
	if a.ActiveChat() != msg.ChatID {
		return false
	}
	return true
}

// runCycle executes one generate-and-reply cycle. The cooldown and gate
// release run in a guaranteed final step regardless of outcome.
func (a *Autopilot) runCycle(msg *channels.IncomingMessage, content string) {
	defer a.wg.Done()

	logger := a.logger.With(
		"cycle", uuid.NewString()[:8],
		"chat_id", msg.ChatID,
		"msg_id", msg.ID,
	)
	start := time.Now()

	defer func() {
		_ = a.sleep(a.ctx, a.gate.Cooldown())
		a.gate.Release()
	}()

	if a.cfg.TypingIndicator {
		if pc, ok := a.channel.(channels.PresenceChannel); ok {
			if err := pc.SendTyping(a.ctx, msg.ChatID); err != nil {
				logger.Debug("typing indicator failed", "error", err)
			}
		}
	}

	turns, err := a.assembleHistory(msg)
	if err != nil {
		logger.Warn("history assembly failed, continuing without history", "error", err)
	}

	reply, err := a.Provider().Generate(a.ctx, turns, content)
	if err != nil {
		logger.Error("generate failed", "error", err)
		a.alert(err)
		return
	}

	if err := a.deliver(a.ctx, msg.ChatID, reply); err != nil {
		logger.Error("delivery failed", "error", err)
		a.alert(err)
		return
	}

	logger.Info("reply cycle done",
		"duration_ms", time.Since(start).Milliseconds(),
		"history_turns", len(turns),
		"reply_chars", len(reply),
	)
}

// assembleHistory builds the provider turn sequence from the transcript,
// excluding the triggering message (it is passed separately).
func (a *Autopilot) assembleHistory(msg *channels.IncomingMessage) ([]history.Turn, error) {
	window := a.cfg.HistoryWindow
	stored, err := a.store.Recent(a.ctx, msg.ChatID, window+1)
	if err != nil {
		return nil, err
	}

	records := make([]history.Record, 0, len(stored))
	for _, m := range stored {
		if m.ID == msg.ID {
			continue
		}
		records = append(records, history.Record{
			Author:  m.Author,
			FromBot: m.FromBot,
			Text:    m.Text,
		})
	}

	return history.Assemble(records, window), nil
}

// alert surfaces a cycle failure to the operator, rate-limited, with a
// distinct remediation message for network/policy failures.
func (a *Autopilot) alert(err error) {
	if !a.alerts.allow() {
		return
	}

	text := fmt.Sprintf("Wingman: reply failed: %v", err)
	if isPolicyBlocked(err) {
		text = fmt.Sprintf(
			"Wingman: the provider seems unreachable (%v). Check your network connection, proxy, or firewall policy.",
			err,
		)
	}

	nc, ok := a.channel.(channels.NotifyChannel)
	if !ok {
		return
	}
	if nerr := nc.Notify(a.ctx, text); nerr != nil {
		a.logger.Warn("operator alert failed", "error", nerr)
	}
}

// ---------- Operator commands ----------

// handleCommand executes "!auto ..." operator commands and replies in
// the same conversation, bypassing the pacer.
func (a *Autopilot) handleCommand(msg *channels.IncomingMessage, content string) {
	fields := strings.Fields(content)
	sub := ""
	if len(fields) > 1 {
		sub = strings.ToLower(fields[1])
	}

	var response string
	switch sub {
	case "on":
		a.gate.Arm(msg.ChatID)
		a.SetFocus(msg.ChatID)
		response = "Auto-reply armed for this conversation."

	case "off":
		a.gate.Disarm(msg.ChatID)
		response = "Auto-reply disarmed for this conversation."

	case "status":
		response = a.statusText(msg.ChatID)

	case "provider":
		if len(fields) < 3 {
			response = "Usage: !auto provider <gemini|openai|deepseek>"
			break
		}
		response = a.switchProvider(fields[2])

	case "model":
		if len(fields) < 3 {
			response = "Usage: !auto model <name>"
			break
		}
		response = a.switchModel(fields[2])

	default:
		response = "Commands: !auto on | off | status | provider <id> | model <name>"
	}

	out := &channels.OutgoingMessage{Content: response, ReplyTo: msg.ID}
	if err := a.channel.Send(a.ctx, msg.ChatID, out); err != nil {
		a.logger.Error("command reply failed", "chat_id", msg.ChatID, "error", err)
	}
}

// statusText summarizes the loop state for one conversation.
func (a *Autopilot) statusText(chatID string) string {
	armed := "Disarmed"
	if a.gate.Armed(chatID) {
		armed = "Armed"
	}
	busy := "idle"
	if a.gate.Busy() {
		busy = "replying"
	}

	a.mu.RLock()
	model := a.cfg.Provider.Model
	a.mu.RUnlock()

	return fmt.Sprintf("%s here, %s. Provider %s, model %s, %d models cached.",
		armed, busy, a.Provider().Name(), model, len(a.models.Models()))
}

// switchProvider rebuilds the provider for a new backend identifier and
// refreshes the model catalog.
func (a *Autopilot) switchProvider(id string) string {
	cfg := a.cfg.Provider
	cfg.Provider = id

	p, err := provider.New(cfg, a.logger)
	if err != nil {
		return fmt.Sprintf("Cannot switch provider: %v", err)
	}

	a.mu.Lock()
	a.cfg.Provider.Provider = id
	a.prov = p
	a.mu.Unlock()

	a.models.SetProvider(a.ctx, p)
	return fmt.Sprintf("Provider switched to %s.", id)
}

// switchModel rebuilds the provider with a new model name.
func (a *Autopilot) switchModel(model string) string {
	a.mu.Lock()
	a.cfg.Provider.Model = model
	cfg := a.cfg.Provider
	a.mu.Unlock()

	p, err := provider.New(cfg, a.logger)
	if err != nil {
		return fmt.Sprintf("Cannot switch model: %v", err)
	}

	a.mu.Lock()
	a.prov = p
	a.mu.Unlock()

	return fmt.Sprintf("Model switched to %s.", model)
}

// ---------- Outbound ----------

// recordingSender adapts the host channel to the pacer and mirrors the
// bot's own replies into the transcript so later history includes them.
type recordingSender struct {
	a *Autopilot
}

func (s *recordingSender) Send(ctx context.Context, to string, content string) error {
	if err := s.a.channel.Send(ctx, to, &channels.OutgoingMessage{Content: content}); err != nil {
		return err
	}

	rec := transcript.Message{
		ID:        uuid.NewString(),
		ChatID:    to,
		Author:    s.a.channel.Name() + ":self",
		FromBot:   true,
		Text:      content,
		Timestamp: time.Now(),
	}
	if err := s.a.store.Append(ctx, rec); err != nil {
		s.a.logger.Warn("transcript append failed for own reply", "error", err)
	}
	return nil
}

func (s *recordingSender) SendTyping(ctx context.Context, to string) error {
	if pc, ok := s.a.channel.(channels.PresenceChannel); ok {
		return pc.SendTyping(ctx, to)
	}
	return nil
}

// sleepContext waits for d unless ctx is canceled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
