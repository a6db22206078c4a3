package actor

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recorder is only touched from the actor goroutine, or through Call.
type recorder struct {
	messages []string
	ticks    int
}

func (r *recorder) HandleMessage(topic string, payload []byte) {
	if string(payload) == "panic" {
		panic("bad payload")
	}
	r.messages = append(r.messages, topic)
}

func (r *recorder) HandleTick(time.Time) {
	r.ticks++
}

func startActor(t *testing.T, h Handler, opts Options) *Actor {
	t.Helper()
	if opts.Kind == "" {
		opts.Kind = "test"
	}
	a := New(h, opts)
	a.Start(context.Background())
	t.Cleanup(a.Stop)
	return a
}

func TestActor_MessagesInOrder(t *testing.T) {
	rec := &recorder{}
	a := startActor(t, rec, Options{TickInterval: time.Hour})

	for _, topic := range []string{"a", "b", "c"} {
		if err := a.Deliver(topic, nil); err != nil {
			t.Fatalf("Deliver(%q) error = %v", topic, err)
		}
	}

	var got []string
	if err := a.Call(context.Background(), func() { got = append(got, rec.messages...) }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("messages = %v, want [a b c]", got)
	}
}

func TestActor_Ticks(t *testing.T) {
	rec := &recorder{}
	a := startActor(t, rec, Options{TickInterval: 2 * time.Millisecond})

	deadline := time.Now().Add(2 * time.Second)
	for {
		var ticks int
		if err := a.Call(context.Background(), func() { ticks = rec.ticks }); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		if ticks >= 3 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("ticks = %d after 2s, want >= 3", ticks)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestActor_PanicIsContained(t *testing.T) {
	rec := &recorder{}
	a := startActor(t, rec, Options{TickInterval: time.Hour})

	_ = a.Deliver("boom", []byte("panic"))
	_ = a.Deliver("after", nil)

	err := a.Call(context.Background(), func() { panic("in call") })
	if !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("Call() error = %v, want ErrHandlerPanic", err)
	}

	var got []string
	_ = a.Call(context.Background(), func() { got = rec.messages })
	if len(got) != 1 || got[0] != "after" {
		t.Errorf("messages = %v, want [after]", got)
	}
}

func TestActor_InboxFull(t *testing.T) {
	a := New(&recorder{}, Options{Kind: "test", InboxSize: 1})
	defer a.Stop()

	if err := a.Deliver("first", nil); err != nil {
		t.Fatalf("Deliver(first) error = %v", err)
	}
	if err := a.Deliver("second", nil); !errors.Is(err, ErrInboxFull) {
		t.Errorf("Deliver(second) error = %v, want ErrInboxFull", err)
	}
}

func TestActor_Stop(t *testing.T) {
	a := New(&recorder{}, Options{Kind: "test", TickInterval: time.Hour})
	a.Start(context.Background())
	a.Stop()
	a.Stop()

	select {
	case <-a.Done():
	default:
		t.Fatal("Done() not closed after Stop")
	}
	if err := a.Deliver("t", nil); !errors.Is(err, ErrStopped) {
		t.Errorf("Deliver after Stop = %v, want ErrStopped", err)
	}
	if err := a.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Call after Stop = %v, want ErrStopped", err)
	}
}

func TestActor_StopBeforeStart(t *testing.T) {
	a := New(&recorder{}, Options{Kind: "test"})
	a.Stop()
	a.Start(context.Background())

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed")
	}
}

func TestActor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := New(&recorder{}, Options{Kind: "test", TickInterval: time.Hour})
	a.Start(ctx)
	defer a.Stop()

	cancel()
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
}

func TestActor_CallContextExpired(t *testing.T) {
	// Never started, so the call is queued but never runs.
	a := New(&recorder{}, Options{Kind: "test"})
	defer a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := a.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want DeadlineExceeded", err)
	}
}
