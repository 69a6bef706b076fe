package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig controls the padding applied to failed logins so that an
// unknown identity and a wrong password take about the same time
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration
}

// DefaultTimingConfig pads failures to 250-350ms
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		BaseDelay:   250 * time.Millisecond,
		RandomDelay: 100 * time.Millisecond,
	}
}

// TimingDelay pads failed authentication attempts
type TimingDelay struct {
	config TimingConfig
	now    func() time.Time
	sleep  func(time.Duration)
}

// NewTimingDelay creates a TimingDelay using the wall clock
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// WaitFrom sleeps until at least the configured delay has elapsed since
// start. Successful attempts are never delayed.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success {
		return
	}

	target := td.config.BaseDelay + td.jitter()
	if elapsed := td.now().Sub(start); elapsed < target {
		td.sleep(target - elapsed)
	}
}

func (td *TimingDelay) jitter() time.Duration {
	if td.config.RandomDelay <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelay)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
