package twai

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SourceClockHz is the controller's bit timing source clock (APB).
const SourceClockHz = 80_000_000

// TimingProfile holds the clock divisor and segment timing for one bit rate.
type TimingProfile struct {
	Bitrate        int    `yaml:"bitrate"`
	BRP            uint32 `yaml:"brp"`   // baud rate prescaler
	TSeg1          uint8  `yaml:"tseg1"` // time quanta before the sample point
	TSeg2          uint8  `yaml:"tseg2"` // time quanta after the sample point
	SJW            uint8  `yaml:"sjw"`   // synchronization jump width
	TripleSampling bool   `yaml:"triple_sampling"`
}

// NominalBitrate computes the bit rate the profile produces from SourceClockHz.
func (p TimingProfile) NominalBitrate() int {
	tq := uint32(1) + uint32(p.TSeg1) + uint32(p.TSeg2)
	if p.BRP == 0 || tq == 0 {
		return 0
	}
	return int(SourceClockHz / (p.BRP * tq))
}

// Capabilities describes the silicon the controller runs on. Some low bit
// rates need a prescaler range only present on newer revisions.
type Capabilities struct {
	BRPMax   int `yaml:"brp_max"`
	Revision int `yaml:"revision"`
}

// DefaultCapabilities matches a first-revision part with a 128 prescaler.
func DefaultCapabilities() Capabilities {
	return Capabilities{BRPMax: 128, Revision: 0}
}

type tier uint8

const (
	tierBase     tier = iota // every revision
	tierExtended             // BRPMax > 128 or revision >= 2
	tierLowRate              // BRPMax > 256
)

func (c Capabilities) supports(t tier) bool {
	switch t {
	case tierBase:
		return true
	case tierExtended:
		return c.BRPMax > 128 || c.Revision >= 2
	case tierLowRate:
		return c.BRPMax > 256
	}
	return false
}

type profileEntry struct {
	tier    tier
	profile TimingProfile
}

func prof(rate int, brp uint32, tseg1, tseg2 uint8) TimingProfile {
	return TimingProfile{Bitrate: rate, BRP: brp, TSeg1: tseg1, TSeg2: tseg2, SJW: 3}
}

var profiles = map[int]profileEntry{
	1000:    {tierLowRate, prof(1000, 4000, 15, 4)},
	5000:    {tierLowRate, prof(5000, 800, 15, 4)},
	10000:   {tierLowRate, prof(10000, 400, 15, 4)},
	12500:   {tierExtended, prof(12500, 256, 16, 8)},
	16000:   {tierExtended, prof(16000, 200, 16, 8)},
	20000:   {tierExtended, prof(20000, 200, 15, 4)},
	25000:   {tierBase, prof(25000, 128, 16, 8)},
	50000:   {tierBase, prof(50000, 80, 15, 4)},
	100000:  {tierBase, prof(100000, 40, 15, 4)},
	125000:  {tierBase, prof(125000, 32, 15, 4)},
	250000:  {tierBase, prof(250000, 16, 15, 4)},
	500000:  {tierBase, prof(500000, 8, 15, 4)},
	800000:  {tierBase, prof(800000, 4, 16, 8)},
	1000000: {tierBase, prof(1000000, 4, 15, 4)},
}

// DefaultBitrate is the fallback for unsupported rates.
const DefaultBitrate = 125000

// DefaultProfile returns the 125 kbit/s profile.
func DefaultProfile() TimingProfile { return profiles[DefaultBitrate].profile }

// ResolveTiming maps a bit rate to its timing profile. Rates that are unknown,
// or not available on the given silicon, resolve to DefaultProfile and
// ok is false.
func ResolveTiming(bitrate int, caps Capabilities) (p TimingProfile, ok bool) {
	e, found := profiles[bitrate]
	if !found || !caps.supports(e.tier) {
		return DefaultProfile(), false
	}
	return e.profile, true
}

// SupportedBitrates lists, ascending, the bit rates available on caps.
func SupportedBitrates(caps Capabilities) []int {
	rates := maps.Keys(profiles)
	slices.Sort(rates)
	out := rates[:0]
	for _, r := range rates {
		if caps.supports(profiles[r].tier) {
			out = append(out, r)
		}
	}
	return out
}
