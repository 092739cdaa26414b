// Package tuning holds the runtime knobs loaded from tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz          int  `yaml:"tick_rate_hz"`
	PromotionEveryTicks int  `yaml:"promotion_every_ticks"`
	ExpansionBuffer     int  `yaml:"expansion_buffer"`
	BroadcastEveryTicks int  `yaml:"broadcast_every_ticks"`
	LogEveryTicks       int  `yaml:"log_every_ticks"`
	StrictInvariants    bool `yaml:"strict_invariants"`
}

func Default() Tuning {
	return Tuning{
		TickRateHz:          10,
		PromotionEveryTicks: 1,
		ExpansionBuffer:     10,
		BroadcastEveryTicks: 5,
		LogEveryTicks:       50,
		StrictInvariants:    false,
	}
}

// Load reads tuning.yaml from path. A missing file yields the defaults;
// a present but malformed file is an error.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tuning: tick_rate_hz %d out of range", t.TickRateHz)
	}
	if t.PromotionEveryTicks <= 0 {
		return fmt.Errorf("tuning: promotion_every_ticks must be positive")
	}
	if t.ExpansionBuffer < 0 {
		return fmt.Errorf("tuning: expansion_buffer must not be negative")
	}
	if t.BroadcastEveryTicks <= 0 || t.LogEveryTicks <= 0 {
		return fmt.Errorf("tuning: broadcast/log intervals must be positive")
	}
	return nil
}
