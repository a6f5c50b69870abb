// Package backoff provides exponential backoff calculation.
package backoff

import "time"

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 200ms
	Max     time.Duration // default: 10s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 200 * time.Millisecond
	maxBackoff := 10 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
