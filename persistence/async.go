// persistence/async.go
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/room"
)

const writeTimeout = 5 * time.Second

// Observer is told about ledger writes that did not make it. monitor.Monitor
// satisfies it.
type Observer interface {
	LedgerDropped()
	LedgerFailed(op string)
}

type nopObserver struct{}

func (nopObserver) LedgerDropped()      {}
func (nopObserver) LedgerFailed(string) {}

// AsyncLedger 计分流水的异步写入工作池
// Append 不阻塞调用方，队列满时丢弃并记录；写入失败只记录，不重试
type AsyncLedger struct {
	store    ScoreStore
	observer Observer
	queue    chan models.ScoreEntry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncLedger starts workers goroutines draining a queue of queueSize.
func NewAsyncLedger(store ScoreStore, workers, queueSize int, observer Observer) *AsyncLedger {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}
	l := &AsyncLedger{
		store:    store,
		observer: observer,
		queue:    make(chan models.ScoreEntry, queueSize),
	}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Append 入队一条计分流水
func (l *AsyncLedger) Append(entry models.ScoreEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		logger.Log.Warnf("ledger closed, dropping score for %s in %s", entry.Player, entry.RoomID)
		l.observer.LedgerDropped()
		return
	}

	select {
	case l.queue <- entry:
	default:
		logger.Log.Warnf("ledger queue full, dropping score for %s in %s", entry.Player, entry.RoomID)
		l.observer.LedgerDropped()
	}
}

func (l *AsyncLedger) worker() {
	defer l.wg.Done()
	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := l.store.AppendScore(ctx, entry); err != nil {
			logger.Log.Errorf("append score for %s in %s failed: %v", entry.Player, entry.RoomID, err)
			l.observer.LedgerFailed("append_score")
		}
		cancel()
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// expire.
func (l *AsyncLedger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GameRecorder 游戏结束时保存最终得分
type GameRecorder struct {
	store    ScoreStore
	observer Observer
}

func NewGameRecorder(store ScoreStore, observer Observer) *GameRecorder {
	if observer == nil {
		observer = nopObserver{}
	}
	return &GameRecorder{store: store, observer: observer}
}

// Notify implements room.Notifier. Only game_finished events are persisted.
func (g *GameRecorder) Notify(evt room.Event) {
	if evt.Type != room.EventGameFinished {
		return
	}
	record, ok := evt.Data.(models.GameRecord)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := g.store.SaveGameRecord(ctx, record); err != nil {
		logger.Log.Errorf("save game record for %s failed: %v", record.RoomID, err)
		g.observer.LedgerFailed("save_game_record")
	}
}
