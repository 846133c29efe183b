package worker

import (
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultErrorCeiling = 5
	DefaultCooldown     = 5 * time.Second
	DefaultPollTick     = 200 * time.Millisecond
	DefaultIdleSleep    = 500 * time.Millisecond
)

type options struct {
	errorCeiling int
	cooldown     backoff.BackOff
	tick         time.Duration
	idle         time.Duration
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		errorCeiling: DefaultErrorCeiling,
		cooldown:     backoff.NewConstantBackOff(DefaultCooldown),
		tick:         DefaultPollTick,
		idle:         DefaultIdleSleep,
		now:          time.Now,
	}
}

// Option configures a Poller or a Persister
type Option func(*options)

// WithErrorCeiling sets how many consecutive connection failures are
// tolerated before the worker stops itself
func WithErrorCeiling(n int) Option {
	return func(o *options) {
		o.errorCeiling = n
	}
}

// WithCooldown sets the wait between reconnect attempts
func WithCooldown(b backoff.BackOff) Option {
	return func(o *options) {
		o.cooldown = b
	}
}

// WithPollTick sets the pause between poller loop passes
func WithPollTick(d time.Duration) Option {
	return func(o *options) {
		o.tick = d
	}
}

// WithIdleSleep sets the pause between persister loop passes
func WithIdleSleep(d time.Duration) Option {
	return func(o *options) {
		o.idle = d
	}
}

// WithClock replaces time.Now for poll scheduling
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func (o *options) nextCooldown() time.Duration {
	d := o.cooldown.NextBackOff()
	if d == backoff.Stop {
		return 0
	}
	return d
}
