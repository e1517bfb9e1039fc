package twai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu      sync.Mutex
	records []slog.Record
}

func (s *recordSink) Enabled(context.Context, slog.Level) bool { return true }
func (s *recordSink) Handle(_ context.Context, r slog.Record) error {
	// Make a deep copy of attributes because slog reuses the record during processing
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool { attrs = append(attrs, a); return true })
	nr := slog.Record{Time: r.Time, Level: r.Level, PC: r.PC, Message: r.Message}
	for _, a := range attrs {
		nr.AddAttrs(a)
	}
	s.mu.Lock()
	s.records = append(s.records, nr)
	s.mu.Unlock()
	return nil
}
func (s *recordSink) WithAttrs(attrs []slog.Attr) slog.Handler { return s }
func (s *recordSink) WithGroup(name string) slog.Handler      { return s }

func (s *recordSink) all() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]slog.Record(nil), s.records...)
}

func hasSlogMsg(records []slog.Record, level slog.Level, msg string) bool {
	for _, r := range records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

func startedEndpoint(t *testing.T, d Driver, mode Mode) {
	t.Helper()
	g := GeneralConfig{Mode: mode, RxQueueLen: 8, TxQueueLen: 8, Alerts: AlertAll}
	if err := d.Install(g, DefaultProfile(), AcceptAll()); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestLoggedDriver_WriteAndReadLogging(t *testing.T) {
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	logger := slog.New(sink)

	// Wrap both endpoints to verify read and write logging independently.
	sender := NewLoggedDriver(lb.Open(), logger, slog.LevelInfo, LogWrite)
	receiver := NewLoggedDriver(lb.Open(), logger, slog.LevelInfo, LogRead)
	startedEndpoint(t, sender, ModeNormal)
	startedEndpoint(t, receiver, ModeNormal)

	msg := MustMessage(0x123, []byte{1, 2, 3})
	if err := sender.Transmit(msg, time.Millisecond); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := receiver.Receive(10 * time.Millisecond); err != nil {
		t.Fatalf("receive: %v", err)
	}

	recs := sink.all()
	if !hasSlogMsg(recs, slog.LevelInfo, "twai install") {
		t.Fatalf("expected install log entry")
	}
	if !hasSlogMsg(recs, slog.LevelInfo, "twai send") {
		t.Fatalf("expected write log entry")
	}
	if !hasSlogMsg(recs, slog.LevelInfo, "twai receive") {
		t.Fatalf("expected read log entry")
	}
}

func TestLoggedDriver_ErrorLogging(t *testing.T) {
	lb := NewLoopbackBus()
	// Never installed, so Receive fails with an invalid state.
	rx := lb.Open()

	sink := &recordSink{}
	logger := slog.New(sink)
	wrapped := NewLoggedDriver(rx, logger, slog.LevelInfo, LogRead)
	_, _ = wrapped.Receive(time.Millisecond)

	if !hasSlogMsg(sink.all(), slog.LevelError, "twai receive error") {
		t.Fatalf("expected receive error log entry")
	}
}

func TestLoggedDriver_TimeoutNotLogged(t *testing.T) {
	lb := NewLoopbackBus()
	defer lb.Close()

	sink := &recordSink{}
	d := NewLoggedDriver(lb.Open(), slog.New(sink), slog.LevelInfo, LogAll)
	startedEndpoint(t, d, ModeNormal)

	if _, err := d.Receive(time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if hasSlogMsg(sink.all(), slog.LevelError, "twai receive error") {
		t.Fatalf("timeout must not be logged as an error")
	}
}
