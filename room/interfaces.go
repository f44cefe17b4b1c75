package room

import (
	"time"

	"github.com/wfunc/picword/models"
)

// Scheduler arms and cancels deadline callbacks. timer.TimerManager
// satisfies it.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64)
}

// ScoreLedger receives every awarded score. Append must not block; the room
// never retries or inspects failures.
type ScoreLedger interface {
	Append(entry models.ScoreEntry)
}

// Notifier receives room events. Rooms call Notify while holding their
// lock, so it must not block or call back into the room; wrap anything that
// does I/O in a Dispatcher.
// This is defined here to break the import cycle between room and broadcast.
type Notifier interface {
	Notify(evt Event)
}

type nopScheduler struct{}

func (nopScheduler) AddTimer(time.Duration, time.Duration, func()) int64 { return 0 }
func (nopScheduler) RemoveTimer(int64)                                   {}

type nopLedger struct{}

func (nopLedger) Append(models.ScoreEntry) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
