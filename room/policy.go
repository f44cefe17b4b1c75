package room

import (
	"fmt"
	"time"
)

// ClosingPolicy decides which event besides the deadline ends a round.
type ClosingPolicy int

const (
	// CloseWhenAllAnswered ends the round once every rostered player has
	// submitted at least one answer.
	CloseWhenAllAnswered ClosingPolicy = iota
	// CloseOnFirstCorrect ends the round on the first correct answer.
	CloseOnFirstCorrect
	// CloseWhenAllCorrect ends the round once every rostered player has scored.
	CloseWhenAllCorrect
	// CloseOnTimeoutOnly ignores submissions; only the deadline ends the round.
	CloseOnTimeoutOnly
)

func (p ClosingPolicy) String() string {
	switch p {
	case CloseWhenAllAnswered:
		return "all_answered"
	case CloseOnFirstCorrect:
		return "first_correct"
	case CloseWhenAllCorrect:
		return "all_correct"
	case CloseOnTimeoutOnly:
		return "timeout_only"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseClosingPolicy maps a config value onto a ClosingPolicy.
func ParseClosingPolicy(s string) (ClosingPolicy, error) {
	switch s {
	case "", "all_answered":
		return CloseWhenAllAnswered, nil
	case "first_correct":
		return CloseOnFirstCorrect, nil
	case "all_correct":
		return CloseWhenAllCorrect, nil
	case "timeout_only":
		return CloseOnTimeoutOnly, nil
	}
	return 0, fmt.Errorf("unknown closing policy %q", s)
}

type options struct {
	policy        ClosingPolicy
	hostOnlyStart bool
	now           func() time.Time
	scheduler     Scheduler
	ledger        ScoreLedger
	notifier      Notifier
}

// Option configures a Room.
type Option func(*options)

func WithClosingPolicy(p ClosingPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithHostOnlyStart makes Start reject callers other than the host.
func WithHostOnlyStart(enabled bool) Option {
	return func(o *options) { o.hostOnlyStart = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func WithLedger(l ScoreLedger) Option {
	return func(o *options) { o.ledger = l }
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func buildOptions(opts []Option) options {
	o := options{
		policy:    CloseWhenAllAnswered,
		now:       time.Now,
		scheduler: nopScheduler{},
		ledger:    nopLedger{},
		notifier:  nopNotifier{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
