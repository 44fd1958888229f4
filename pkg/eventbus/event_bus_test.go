package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type validated struct {
	rows int
}

type applied struct {
	created int
}

func TestPublisher_SubscribeAndPublish(t *testing.T) {
	bus := NewEventPublisher(nil)

	var got *validated
	bus.Subscribe(func(e *validated) {
		got = e
	})
	bus.Publish(&validated{rows: 7})

	if got == nil {
		t.Fatal("handler should have been called")
	}
	if got.rows != 7 {
		t.Fatalf("expected rows 7, got %d", got.rows)
	}
}

func TestPublisher_NonMatchingHandlerSkipped(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.DebugLevel)

	bus := NewEventPublisher(log)
	bus.Subscribe(func(e *applied) {
		t.Error("should not be called")
	})
	bus.Publish(&validated{rows: 1})

	if out := logBuffer.String(); !strings.Contains(out, "no matching subscribers") {
		t.Errorf("expected no-subscriber log, got: %q", out)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	bus := NewEventPublisher(nil)

	calls := 0
	handler := func(e *validated) { calls++ }
	bus.Subscribe(handler)
	if bus.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscribersCount())
	}

	bus.Unsubscribe(handler)
	if bus.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", bus.SubscribersCount())
	}
	bus.Publish(&validated{})
	if calls != 0 {
		t.Fatalf("handler called after unsubscribe")
	}
}

func TestPublisher_PanickingHandlerIsContained(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)

	bus := NewEventPublisher(log)
	bus.Subscribe(func(e *validated) {
		panic("boom")
	})
	called := false
	bus.Subscribe(func(e *validated) {
		called = true
	})

	bus.Publish(&validated{})

	if !called {
		t.Fatal("second handler should still run")
	}
	if out := logBuffer.String(); !strings.Contains(out, "panicked") {
		t.Errorf("expected panic log, got: %q", out)
	}
}

func TestMatchSignature(t *testing.T) {
	handler := func(e *validated) {}

	if !MatchSignature(handler, []any{&validated{}}) {
		t.Error("should match exact pointer type")
	}
	if MatchSignature(handler, []any{&applied{}}) {
		t.Error("should not match a different event type")
	}
	if MatchSignature(handler, []any{&validated{}, &validated{}}) {
		t.Error("should not match wrong arity")
	}
	if MatchSignature(struct{}{}, []any{&validated{}}) {
		t.Error("non-func handler never matches")
	}
}
