package twai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone  LogOption = 0
	LogRead  LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedDriver wraps the given Driver and logs transmitted and received
// messages at the given level. Failing calls, other than receive and alert
// timeouts, are always logged at error level.
func NewLoggedDriver(inner Driver, logger *slog.Logger, level slog.Level, opts LogOption) Driver {
	return &loggedDriver{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
	}
}

type loggedDriver struct {
	inner  Driver
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
}

func (l *loggedDriver) fail(op string, err error) error {
	if err != nil && !errors.Is(err, ErrTimeout) {
		l.logger.Log(context.Background(), slog.LevelError, "twai "+op+" error",
			"error", err,
		)
	}
	return err
}

func (l *loggedDriver) Install(g GeneralConfig, t TimingProfile, f FilterConfig) error {
	err := l.inner.Install(g, t, f)
	if err == nil {
		l.logger.Log(context.Background(), l.level, "twai install",
			"mode", g.Mode,
			"bitrate", t.Bitrate,
			"rx_queue", g.RxQueueLen,
			"tx_queue", g.TxQueueLen,
		)
	}
	return l.fail("install", err)
}

func (l *loggedDriver) Uninstall() error { return l.fail("uninstall", l.inner.Uninstall()) }
func (l *loggedDriver) Start() error     { return l.fail("start", l.inner.Start()) }
func (l *loggedDriver) Stop() error      { return l.fail("stop", l.inner.Stop()) }

// Transmit logs the message and the result when write logging is enabled.
func (l *loggedDriver) Transmit(m Message, timeout time.Duration) error {
	if l.opts&LogWrite != 0 {
		l.logger.Log(context.Background(), l.level, "twai send",
			"id", m.ID,
			"extended", m.Extended,
			"rtr", m.RTR,
			"len", int(m.Len),
			"data", m.Payload(),
			"string", m.String(),
		)
	}
	return l.fail("send", l.inner.Transmit(m, timeout))
}

// Receive logs the received message when read logging is enabled.
func (l *loggedDriver) Receive(timeout time.Duration) (Message, error) {
	m, err := l.inner.Receive(timeout)
	if err != nil {
		return m, l.fail("receive", err)
	}
	if l.opts&LogRead != 0 {
		l.logger.Log(context.Background(), l.level, "twai receive",
			"id", m.ID,
			"extended", m.Extended,
			"rtr", m.RTR,
			"len", int(m.Len),
			"data", m.Payload(),
			"string", m.String(),
		)
	}
	return m, nil
}

func (l *loggedDriver) ReadAlerts(timeout time.Duration) (Alert, error) {
	a, err := l.inner.ReadAlerts(timeout)
	if err == nil && a != 0 {
		l.logger.Log(context.Background(), l.level, "twai alerts", "alerts", a)
	}
	return a, l.fail("read alerts", err)
}

func (l *loggedDriver) ReconfigureAlerts(enable Alert) error {
	return l.fail("reconfigure alerts", l.inner.ReconfigureAlerts(enable))
}

func (l *loggedDriver) Status() (Status, error) {
	st, err := l.inner.Status()
	return st, l.fail("status", err)
}

func (l *loggedDriver) ClearReceiveQueue() error {
	return l.fail("clear receive queue", l.inner.ClearReceiveQueue())
}

func (l *loggedDriver) InitiateRecovery() error {
	l.logger.Log(context.Background(), l.level, "twai initiate recovery")
	return l.fail("initiate recovery", l.inner.InitiateRecovery())
}
