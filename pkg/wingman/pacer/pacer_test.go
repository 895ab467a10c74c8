package pacer

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeSender struct {
	sent    []string
	typed   int
	sendErr error
}

func (f *fakeSender) Send(_ context.Context, _ string, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakeSender) SendTyping(_ context.Context, _ string) error {
	f.typed++
	return nil
}

func newTestPacer(sender Sender, typing bool) *Pacer {
	p := New(sender, typing, nil)
	p.randMs = func(int) int { return 0 }
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestSplitOnBlankLines(t *testing.T) {
	parts := Split("Hello there!\n\nHow are you?")

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != "Hello there!" || parts[1] != "How are you?" {
		t.Errorf("unexpected parts: %q, %q", parts[0], parts[1])
	}
}

func TestSplitSingleLine(t *testing.T) {
	parts := Split("Just one line.")

	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != "Just one line." {
		t.Errorf("part = %q", parts[0])
	}
}

func TestSplitDropsEmptyParagraphs(t *testing.T) {
	parts := Split("first\n\n\n\n  \n\nsecond\n\n")

	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %v", len(parts), parts)
	}
	if parts[0] != "first" || parts[1] != "second" {
		t.Errorf("unexpected parts: %v", parts)
	}
}

func TestDelayScalesWithLength(t *testing.T) {
	p := newTestPacer(&fakeSender{}, false)

	if got := p.Delay("abcde"); got != 200*time.Millisecond {
		t.Errorf("Delay(5 chars) = %v, want 200ms", got)
	}
	if got := p.Delay(""); got != 0 {
		t.Errorf("Delay(empty) = %v, want 0", got)
	}
}

func TestDelayIncludesRandomComponent(t *testing.T) {
	p := newTestPacer(&fakeSender{}, false)
	p.randMs = func(n int) int {
		if n != 2000 {
			t.Errorf("random cap = %d, want 2000", n)
		}
		return 1500
	}

	if got := p.Delay("ab"); got != 1580*time.Millisecond {
		t.Errorf("Delay = %v, want 1580ms", got)
	}
}

func TestDeliverSendsEachParagraphSeparately(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPacer(sender, true)

	if err := p.Deliver(context.Background(), "chat1", "Hello there!\n\nHow are you?"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(sender.sent))
	}
	if sender.sent[0] != "Hello there!" || sender.sent[1] != "How are you?" {
		t.Errorf("unexpected messages: %v", sender.sent)
	}
	if sender.typed != 2 {
		t.Errorf("expected 2 typing indicators, got %d", sender.typed)
	}
}

func TestDeliverSingleMessageWithoutSeparator(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPacer(sender, false)

	if err := p.Deliver(context.Background(), "chat1", "Just one line."); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(sender.sent))
	}
	if sender.typed != 0 {
		t.Errorf("typing disabled but %d indicators sent", sender.typed)
	}
}

func TestDeliverStopsOnSendError(t *testing.T) {
	sender := &fakeSender{sendErr: fmt.Errorf("gateway closed")}
	p := newTestPacer(sender, false)

	if err := p.Deliver(context.Background(), "chat1", "a\n\nb"); err == nil {
		t.Fatal("expected error from Deliver")
	}
	if len(sender.sent) != 0 {
		t.Errorf("no messages should be recorded, got %v", sender.sent)
	}
}

func TestDeliverHonorsContextCancellation(t *testing.T) {
	sender := &fakeSender{}
	p := New(sender, false, nil)
	p.randMs = func(int) int { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Deliver(ctx, "chat1", "some reply"); err == nil {
		t.Fatal("expected context error")
	}
	if len(sender.sent) != 0 {
		t.Errorf("nothing should be sent after cancellation, got %v", sender.sent)
	}
}
