package twai

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode is the controller operating mode.
type Mode uint8

const (
	ModeNormal     Mode = iota // send, receive and acknowledge
	ModeListenOnly             // receive only, never acknowledge or transmit
	ModeLoopback               // transmit without requiring acknowledgement (self test)
)

var modeNames = [...]string{"normal", "listen-only", "loopback"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if n == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("twai: unknown mode %q", s)
}

func (m Mode) MarshalYAML() (any, error) { return m.String(), nil }

func (m *Mode) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config is the controller configuration. Pins, queue depths and autorecover
// are fixed once the controller is constructed; Mode and Bitrate go through
// Controller.SetMode and Controller.SetBitrate.
type Config struct {
	RxPin        int           `yaml:"rx_pin"`
	TxPin        int           `yaml:"tx_pin"`
	Bitrate      int           `yaml:"bitrate"`
	Mode         Mode          `yaml:"mode"`
	AutoRecover  bool          `yaml:"autorecover"`
	RxQueueLen   int           `yaml:"rx_queue_len"`
	TxQueueLen   int           `yaml:"tx_queue_len"`
	PollInterval time.Duration `yaml:"poll_interval"`
	TaskCore     int           `yaml:"task_core"`
	AlertTimeout time.Duration `yaml:"alert_timeout"`
	IOTimeout    time.Duration `yaml:"io_timeout"`
	Capabilities Capabilities  `yaml:"capabilities"`
}

// DefaultConfig returns the stock configuration: rx on pin 4, tx on pin 5,
// 125 kbit/s, normal mode, autorecover on, queue depths of 5.
func DefaultConfig() Config {
	return Config{
		RxPin:        4,
		TxPin:        5,
		Bitrate:      DefaultBitrate,
		Mode:         ModeNormal,
		AutoRecover:  true,
		RxQueueLen:   5,
		TxQueueLen:   5,
		PollInterval: 5 * time.Millisecond,
		TaskCore:     1,
		AlertTimeout: 5 * time.Millisecond,
		IOTimeout:    5 * time.Millisecond,
		Capabilities: DefaultCapabilities(),
	}
}

// Validate reports configuration values the driver cannot accept. An
// unsupported bit rate is not an error; it falls back to the default profile.
func (c Config) Validate() error {
	switch {
	case c.RxPin < 0 || c.TxPin < 0:
		return fmt.Errorf("%w: negative pin", ErrInvalidArg)
	case c.RxPin == c.TxPin:
		return fmt.Errorf("%w: rx and tx share pin %d", ErrInvalidArg, c.RxPin)
	case c.RxQueueLen < 1 || c.RxQueueLen > 255:
		return fmt.Errorf("%w: rx queue length %d out of 1..255", ErrInvalidArg, c.RxQueueLen)
	case c.TxQueueLen < 0 || c.TxQueueLen > 255:
		return fmt.Errorf("%w: tx queue length %d out of 0..255", ErrInvalidArg, c.TxQueueLen)
	case c.Mode > ModeLoopback:
		return fmt.Errorf("%w: %v", ErrInvalidArg, c.Mode)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidArg)
	case c.AlertTimeout < 0 || c.IOTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidArg)
	}
	return nil
}

// ParseConfig decodes YAML over DefaultConfig, so omitted keys keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("twai: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// GeneralConfig is what the driver receives on install.
type GeneralConfig struct {
	Mode       Mode
	TxPin      int
	RxPin      int
	TxQueueLen int
	RxQueueLen int
	Alerts     Alert // alerts enabled at install
}

// FilterConfig is the acceptance filter. A set mask bit means "don't care".
type FilterConfig struct {
	AcceptanceCode uint32
	AcceptanceMask uint32
	SingleFilter   bool
}

// AcceptAll returns the filter that passes every identifier.
func AcceptAll() FilterConfig {
	return FilterConfig{AcceptanceCode: 0, AcceptanceMask: 0xFFFFFFFF, SingleFilter: true}
}

// Accepts reports whether the filter passes m.
func (f FilterConfig) Accepts(m Message) bool {
	return (m.ID^f.AcceptanceCode)&^f.AcceptanceMask == 0
}
