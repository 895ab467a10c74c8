package autopilot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbarroso/wingman/pkg/wingman/channels"
	"github.com/rbarroso/wingman/pkg/wingman/history"
	"github.com/rbarroso/wingman/pkg/wingman/transcript"
)

// ---------- Fakes ----------

type fakeChannel struct {
	mu       sync.Mutex
	sent     []string
	typed    int
	notified []string
	incoming chan *channels.IncomingMessage
	focus    chan *channels.FocusEvent
	sentCh   chan string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		incoming: make(chan *channels.IncomingMessage, 16),
		focus:    make(chan *channels.FocusEvent, 16),
		sentCh:   make(chan string, 16),
	}
}

func (f *fakeChannel) Name() string                      { return "fake" }
func (f *fakeChannel) Connect(context.Context) error     { return nil }
func (f *fakeChannel) Disconnect() error                 { return nil }
func (f *fakeChannel) IsConnected() bool                 { return true }
func (f *fakeChannel) Health() channels.HealthStatus     { return channels.HealthStatus{Connected: true} }
func (f *fakeChannel) Receive() <-chan *channels.IncomingMessage {
	return f.incoming
}
func (f *fakeChannel) FocusEvents() <-chan *channels.FocusEvent { return f.focus }

func (f *fakeChannel) Send(_ context.Context, _ string, msg *channels.OutgoingMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg.Content)
	f.mu.Unlock()
	f.sentCh <- msg.Content
	return nil
}

func (f *fakeChannel) SendTyping(context.Context, string) error {
	f.mu.Lock()
	f.typed++
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	f.notified = append(f.notified, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChannel) notifications() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notified...)
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	history []history.Turn
	reply   string
	err     error
	called  chan struct{}
}

func newFakeProvider(reply string) *fakeProvider {
	return &fakeProvider{reply: reply, called: make(chan struct{}, 16)}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, turns []history.Turn, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.history = turns
	f.mu.Unlock()
	f.called <- struct{}{}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) ListModels(context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore is an in-memory transcript.Store.
type memStore struct {
	mu   sync.Mutex
	msgs map[string][]transcript.Message
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string][]transcript.Message)}
}

func (s *memStore) Append(_ context.Context, msg transcript.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ChatID] = append(s.msgs[msg.ChatID], msg)
	return nil
}

func (s *memStore) Recent(_ context.Context, chatID string, limit int) ([]transcript.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.msgs[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]transcript.Message(nil), msgs...), nil
}

func (s *memStore) Close() error { return nil }

// ---------- Helpers ----------

func newTestAutopilot(t *testing.T, ch *fakeChannel, prov *fakeProvider) *Autopilot {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Models.RefreshSchedule = ""
	cfg.TypingIndicator = true

	a := New(cfg, ch, prov, newMemStore(), nil)
	a.sleep = func(context.Context, time.Duration) error { return nil }
	a.deliver = func(ctx context.Context, to, reply string) error {
		return ch.Send(ctx, to, &channels.OutgoingMessage{Content: reply})
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func inbound(id, chatID, from, content string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:        id,
		Channel:   "fake",
		From:      from,
		FromName:  from,
		ChatID:    chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func waitFor(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitForSend(t *testing.T, ch *fakeChannel) string {
	t.Helper()
	select {
	case s := <-ch.sentCh:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return ""
	}
}

// ---------- Tests ----------

func TestQualifyingMessageTriggersReply(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("sure, sounds good")
	a := newTestAutopilot(t, ch, prov)

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	ch.incoming <- inbound("m1", "chat1", "alice", "are you coming?")

	waitFor(t, prov.called, "provider call")
	if got := waitForSend(t, ch); got != "sure, sounds good" {
		t.Errorf("reply = %q", got)
	}
}

func TestUnarmedOrUnfocusedMessagesIgnored(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	// Armed but focus elsewhere.
	a.Gate().Arm("chat1")
	a.SetFocus("chat2")
	ch.incoming <- inbound("m1", "chat1", "alice", "hello?")

	// Focused but not armed.
	ch.incoming <- inbound("m2", "chat2", "alice", "hello?")

	// Empty author.
	a.Gate().Arm("chat2")
	ch.incoming <- inbound("m3", "chat2", "", "hello?")

	// Empty content.
	ch.incoming <- inbound("m4", "chat2", "alice", "   ")

	// Give the loop a moment to drain.
	time.Sleep(100 * time.Millisecond)
	if n := prov.callCount(); n != 0 {
		t.Errorf("expected no provider calls, got %d", n)
	}
}

func TestBusyGateDropsConcurrentMessages(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	release := make(chan struct{})
	var sleepCalls atomic.Int32
	a.sleep = func(ctx context.Context, _ time.Duration) error {
		// Hold the first cooldown until the test releases it.
		if sleepCalls.Add(1) == 1 {
			<-release
		}
		return nil
	}

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	ch.incoming <- inbound("m1", "chat1", "alice", "first")
	waitFor(t, prov.called, "first provider call")
	waitForSend(t, ch)

	// Gate is now in cooldown; these must be dropped.
	ch.incoming <- inbound("m2", "chat1", "alice", "second")
	ch.incoming <- inbound("m3", "chat1", "alice", "third")
	time.Sleep(100 * time.Millisecond)

	if n := prov.callCount(); n != 1 {
		t.Fatalf("expected 1 provider call while busy, got %d", n)
	}

	// Release the cooldown; the next message starts a fresh cycle.
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for a.Gate().Busy() {
		if time.Now().After(deadline) {
			t.Fatal("gate never released after cooldown")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ch.incoming <- inbound("m4", "chat1", "alice", "fourth")
	waitFor(t, prov.called, "second provider call")
	if n := prov.callCount(); n != 2 {
		t.Errorf("expected 2 provider calls total, got %d", n)
	}
}

func TestProviderErrorReleasesGateAndAlertsOnce(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("")
	prov.err = fmt.Errorf("provider returned 500 Internal Server Error")
	a := newTestAutopilot(t, ch, prov)

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	ch.incoming <- inbound("m1", "chat1", "alice", "hi")
	waitFor(t, prov.called, "first provider call")

	deadline := time.Now().Add(2 * time.Second)
	for a.Gate().Busy() {
		if time.Now().After(deadline) {
			t.Fatal("gate stuck busy after error")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A second failing cycle within the alert interval.
	ch.incoming <- inbound("m2", "chat1", "alice", "hi again")
	waitFor(t, prov.called, "second provider call")

	deadline = time.Now().Add(2 * time.Second)
	for a.Gate().Busy() {
		if time.Now().After(deadline) {
			t.Fatal("gate stuck busy after second error")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if n := len(ch.notifications()); n != 1 {
		t.Errorf("expected exactly 1 rate-limited alert, got %d: %v", n, ch.notifications())
	}
}

func TestNetworkErrorProducesRemediationAlert(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("")
	prov.err = fmt.Errorf("request failed: dial tcp: no such host")
	a := newTestAutopilot(t, ch, prov)

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	ch.incoming <- inbound("m1", "chat1", "alice", "hi")
	waitFor(t, prov.called, "provider call")

	deadline := time.Now().Add(2 * time.Second)
	for len(ch.notifications()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no alert delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	alert := ch.notifications()[0]
	if want := "unreachable"; !contains(alert, want) {
		t.Errorf("alert %q should mention remediation (%q)", alert, want)
	}
}

func TestHistoryExcludesTriggeringMessage(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	// Seed prior conversation (unfocused chat won't trigger while seeding).
	a.SetFocus("chat2")
	ch.incoming <- inbound("m1", "chat1", "alice", "earlier message")
	time.Sleep(50 * time.Millisecond)
	a.SetFocus("chat1")

	ch.incoming <- inbound("m2", "chat1", "alice", "the trigger")
	waitFor(t, prov.called, "provider call")
	waitForSend(t, ch)

	prov.mu.Lock()
	turns := prov.history
	prov.mu.Unlock()

	if len(turns) != 1 {
		t.Fatalf("expected 1 history turn, got %d", len(turns))
	}
	if turns[0].Text != "earlier message" {
		t.Errorf("history turn = %q, want the earlier message only", turns[0].Text)
	}
}

func TestOperatorCommands(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	operator := inbound("c1", "chat1", "op", "!auto on")
	operator.FromOperator = true
	ch.incoming <- operator

	resp := waitForSend(t, ch)
	if !contains(resp, "armed") {
		t.Errorf("arm response = %q", resp)
	}
	if !a.Gate().Armed("chat1") {
		t.Error("chat1 should be armed")
	}
	if a.ActiveChat() != "chat1" {
		t.Errorf("arming should focus the conversation, got %q", a.ActiveChat())
	}

	off := inbound("c2", "chat1", "op", "!auto off")
	off.FromOperator = true
	ch.incoming <- off
	waitForSend(t, ch)
	if a.Gate().Armed("chat1") {
		t.Error("chat1 should be disarmed")
	}

	bogus := inbound("c3", "chat1", "op", "!auto provider toaster")
	bogus.FromOperator = true
	ch.incoming <- bogus
	resp = waitForSend(t, ch)
	if !contains(resp, "unknown provider") {
		t.Errorf("bogus provider response = %q", resp)
	}

	if n := prov.callCount(); n != 0 {
		t.Errorf("commands must never reach the provider, got %d calls", n)
	}
}

func TestOperatorMessagesNeverTriggerReplies(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	a.Gate().Arm("chat1")
	a.SetFocus("chat1")

	msg := inbound("m1", "chat1", "op", "talking in my own chat")
	msg.FromOperator = true
	ch.incoming <- msg

	time.Sleep(100 * time.Millisecond)
	if n := prov.callCount(); n != 0 {
		t.Errorf("expected no provider calls, got %d", n)
	}
}

func TestFocusEventsUpdateActiveChat(t *testing.T) {
	ch := newFakeChannel()
	prov := newFakeProvider("reply")
	a := newTestAutopilot(t, ch, prov)

	ch.focus <- &channels.FocusEvent{ChatID: "chat9", At: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for a.ActiveChat() != "chat9" {
		if time.Now().After(deadline) {
			t.Fatalf("focus not applied, active = %q", a.ActiveChat())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
