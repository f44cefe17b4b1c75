// room/room.go
package room

import (
	"strings"
	"sync"
	"time"

	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/state"
)

// activeRound 房间私有的回合副本，startedAt 只在回合开始时写入一次
type activeRound struct {
	models.Round
	startedAt time.Time
	deadline  time.Time
}

// Room 是一局游戏的核心状态机：成员、回合游标、计分和倒计时都在 mu 保护下修改
type Room struct {
	id        string
	capacity  int
	createdAt time.Time
	opts      options

	mu         sync.Mutex
	machine    *state.Machine
	roster     []string // join order
	scores     map[string]int
	host       string
	rounds     []activeRound
	cursor     int
	answered   map[string]struct{}
	scored     map[string]struct{}
	timerID    int64
	closed     bool
	emptySince time.Time

	// 在锁内收集，释放锁前交给 notifier
	pendingEvents []Event
	pendingScores []models.ScoreEntry
}

// NewRoom 创建一个空房间
func NewRoom(id string, capacity int, opts ...Option) *Room {
	o := buildOptions(opts)
	now := o.now()
	r := &Room{
		id:         id,
		capacity:   capacity,
		createdAt:  now,
		opts:       o,
		scores:     make(map[string]int),
		cursor:     -1,
		answered:   make(map[string]struct{}),
		scored:     make(map[string]struct{}),
		emptySince: now,
	}
	r.machine = r.newMachine()
	return r
}

func (r *Room) newMachine() *state.Machine {
	m := state.NewMachine(state.NotStarted)
	m.AddTransition(state.NotStarted, state.InProgress, func() bool {
		return len(r.roster) >= 2 && len(r.rounds) > 0
	})
	m.AddTransition(state.InProgress, state.RoundClosed, nil)
	m.AddTransition(state.RoundClosed, state.InProgress, func() bool {
		return r.cursor < len(r.rounds)
	})
	m.AddTransition(state.RoundClosed, state.Finished, func() bool {
		return r.cursor+1 >= len(r.rounds)
	})

	m.OnEnter(state.InProgress, func(state.Status) { r.beginRoundLocked() })
	m.OnEnter(state.Finished, func(state.Status) { r.finishLocked() })
	return m
}

func (r *Room) ID() string { return r.id }

func (r *Room) Capacity() int { return r.capacity }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// unlockAndFlush hands collected events to the notifier while mu is still
// held, so every room publishes in the order it changed, then releases mu
// and passes scores to the ledger.
func (r *Room) unlockAndFlush() {
	events := r.pendingEvents
	scores := r.pendingScores
	r.pendingEvents = nil
	r.pendingScores = nil
	for _, evt := range events {
		r.opts.notifier.Notify(evt)
	}
	r.mu.Unlock()

	for _, entry := range scores {
		r.opts.ledger.Append(entry)
	}
}

func (r *Room) emitLocked(typ, player string, data interface{}) {
	r.pendingEvents = append(r.pendingEvents, Event{
		Type:   typ,
		RoomID: r.id,
		Player: player,
		Data:   data,
		At:     r.opts.now(),
	})
}

// --- 成员管理 ---

// Join 加入房间。第一个加入的玩家成为房主。
func (r *Room) Join(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return ErrRoomClosed
	}
	if r.machine.Current() != state.NotStarted {
		return ErrAlreadyStarted
	}
	if len(r.roster) >= r.capacity {
		return ErrRoomFull
	}
	if _, exists := r.scores[name]; exists {
		return ErrNameTaken
	}

	r.roster = append(r.roster, name)
	r.scores[name] = 0
	if r.host == "" {
		r.host = name
	}
	r.emitLocked(EventPlayerJoined, name, nil)
	logger.Log.Infof("Player %s joined room %s (%d/%d)", name, r.id, len(r.roster), r.capacity)
	return nil
}

// Leave 离开房间，重复离开不报错
func (r *Room) Leave(name string) {
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.unlockAndFlush()

	if _, exists := r.scores[name]; !exists {
		return
	}

	for i, p := range r.roster {
		if p == name {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			break
		}
	}
	delete(r.scores, name)
	delete(r.answered, name)
	delete(r.scored, name)
	if len(r.roster) == 0 {
		r.emptySince = r.opts.now()
	}
	r.emitLocked(EventPlayerLeft, name, nil)
	logger.Log.Infof("Player %s left room %s", name, r.id)

	// 剩余玩家可能已经全部作答
	if r.machine.Current() == state.InProgress {
		r.checkDeadlineLocked()
		r.maybeCloseLocked(false)
	}
}

func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roster) >= r.capacity
}

func (r *Room) HasPlayer(name string) bool {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.scores[name]
	return exists
}

// Players returns a copy of the roster in join order.
func (r *Room) Players() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roster...)
}

// Host returns the player who created the room. It never changes, even if
// the host leaves.
func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// --- 回合生命周期 ---

// Start 开始游戏并进入第一回合
func (r *Room) Start(caller string, rounds []models.Round) (models.RoundView, error) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return models.RoundView{}, ErrRoomClosed
	}
	if r.machine.Current() != state.NotStarted {
		return models.RoundView{}, ErrAlreadyStarted
	}
	if r.opts.hostOnlyStart && strings.TrimSpace(caller) != r.host {
		return models.RoundView{}, ErrNotHost
	}
	if len(r.roster) < 2 {
		return models.RoundView{}, ErrNotEnoughPlayers
	}
	if len(rounds) == 0 {
		return models.RoundView{}, ErrNoRoundsAvailable
	}

	r.rounds = make([]activeRound, len(rounds))
	for i, def := range rounds {
		def.Images = append([]string(nil), def.Images...)
		r.rounds[i] = activeRound{Round: def}
	}
	r.cursor = 0

	r.emitLocked(EventGameStarted, caller, map[string]int{"rounds": len(r.rounds)})
	if err := r.machine.ChangeState(state.InProgress); err != nil {
		return models.RoundView{}, err
	}
	logger.Log.Infof("Room %s started with %d players and %d rounds", r.id, len(r.roster), len(r.rounds))
	return r.viewLocked(), nil
}

// Advance 进入下一回合。当前回合未结束时返回 ErrRoundNotClosed；
// 没有下一回合时进入 Finished 并返回 more=false。
func (r *Room) Advance() (view models.RoundView, more bool, err error) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return models.RoundView{}, false, ErrRoomClosed
	}
	r.checkDeadlineLocked()

	switch r.machine.Current() {
	case state.NotStarted:
		return models.RoundView{}, false, ErrNotStarted
	case state.InProgress:
		return models.RoundView{}, false, ErrRoundNotClosed
	case state.Finished:
		return models.RoundView{}, false, nil
	}

	if r.cursor+1 >= len(r.rounds) {
		if err := r.machine.ChangeState(state.Finished); err != nil {
			return models.RoundView{}, false, err
		}
		return models.RoundView{}, false, nil
	}

	r.cursor++
	if err := r.machine.ChangeState(state.InProgress); err != nil {
		return models.RoundView{}, false, err
	}
	return r.viewLocked(), true, nil
}

// beginRoundLocked runs on every entry into InProgress.
func (r *Room) beginRoundLocked() {
	now := r.opts.now()
	round := &r.rounds[r.cursor]
	round.startedAt = now
	round.deadline = now.Add(round.Duration())

	r.answered = make(map[string]struct{})
	r.scored = make(map[string]struct{})

	idx := r.cursor
	r.timerID = r.opts.scheduler.AddTimer(round.Duration(), 0, func() {
		r.expire(idx)
	})
	view := r.viewLocked()
	view.Word = ""
	r.emitLocked(EventRoundStarted, "", view)
}

// expire is the deadline callback for round idx.
func (r *Room) expire(idx int) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed || r.cursor != idx || r.machine.Current() != state.InProgress {
		return
	}
	r.timerID = 0 // already fired
	r.closeRoundLocked(ReasonDeadline)
}

// closeRoundLocked is the single close-once transition shared by the deadline
// and submission paths. Whoever gets here second finds the round closed.
func (r *Room) closeRoundLocked(reason string) {
	if err := r.machine.ChangeState(state.RoundClosed); err != nil {
		return
	}
	r.cancelTimerLocked()

	round := r.rounds[r.cursor]
	r.emitLocked(EventRoundClosed, "", RoundClosedData{
		Round:  r.cursor + 1,
		Word:   round.Word,
		Reason: reason,
	})
	logger.Log.Infof("Room %s round %d closed: %s", r.id, r.cursor+1, reason)
}

func (r *Room) cancelTimerLocked() {
	if r.timerID != 0 {
		r.opts.scheduler.RemoveTimer(r.timerID)
		r.timerID = 0
	}
}

// checkDeadlineLocked closes an expired round even if its timer was lost.
func (r *Room) checkDeadlineLocked() {
	if r.machine.Current() != state.InProgress {
		return
	}
	if !r.opts.now().Before(r.rounds[r.cursor].deadline) {
		r.closeRoundLocked(ReasonDeadline)
	}
}

// maybeCloseLocked applies the closing policy after a submission or a
// departure. lastCorrect reports whether the triggering submission scored.
func (r *Room) maybeCloseLocked(lastCorrect bool) {
	if r.machine.Current() != state.InProgress || len(r.roster) == 0 {
		return
	}
	switch r.opts.policy {
	case CloseWhenAllAnswered:
		if len(r.answered) == len(r.roster) {
			r.closeRoundLocked(ReasonAllAnswered)
		}
	case CloseOnFirstCorrect:
		if lastCorrect {
			r.closeRoundLocked(ReasonFirstCorrect)
		}
	case CloseWhenAllCorrect:
		if len(r.scored) == len(r.roster) {
			r.closeRoundLocked(ReasonAllCorrect)
		}
	}
}

func (r *Room) finishLocked() {
	r.cancelTimerLocked()
	r.emitLocked(EventGameFinished, "", models.GameRecord{
		RoomID:     r.id,
		Rounds:     len(r.rounds),
		Scores:     r.scoresLocked(),
		FinishedAt: r.opts.now(),
	})
	logger.Log.Infof("Room %s finished", r.id)
}

// CheckDeadline closes the current round if its deadline has passed. The
// registry sweep calls it so a lost timer cannot stall a room.
func (r *Room) CheckDeadline() {
	r.mu.Lock()
	defer r.unlockAndFlush()
	if !r.closed {
		r.checkDeadlineLocked()
	}
}

// --- 作答 ---

// Submit 提交答案。每个玩家每回合只有第一次提交会被评判。
func (r *Room) Submit(player, text string) (models.AnswerOutcome, error) {
	player = strings.TrimSpace(player)

	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return models.AnswerOutcome{}, ErrRoomClosed
	}
	if _, exists := r.scores[player]; !exists {
		return models.AnswerOutcome{}, ErrPlayerNotInRoom
	}
	r.checkDeadlineLocked()

	var word string
	if r.cursor >= 0 && r.cursor < len(r.rounds) {
		word = r.rounds[r.cursor].Word
	}
	if r.machine.Current() != state.InProgress {
		return models.AnswerOutcome{Word: word}, nil
	}
	if _, done := r.answered[player]; done {
		return models.AnswerOutcome{Word: word}, nil
	}

	round := r.rounds[r.cursor]
	now := r.opts.now()
	outcome := models.AnswerOutcome{
		Correct: strings.EqualFold(strings.TrimSpace(text), round.Word),
		Word:    round.Word,
	}
	if outcome.Correct {
		outcome.Points = Points(now.Sub(round.startedAt))
		r.scores[player] += outcome.Points
		r.scored[player] = struct{}{}
		r.pendingScores = append(r.pendingScores, models.ScoreEntry{
			Player:    player,
			Points:    outcome.Points,
			RoomID:    r.id,
			CreatedAt: now,
		})
	}
	r.answered[player] = struct{}{}

	r.emitLocked(EventAnswerSubmitted, player, AnswerData{
		Round:   r.cursor + 1,
		Correct: outcome.Correct,
		Points:  outcome.Points,
	})
	r.maybeCloseLocked(outcome.Correct)
	return outcome, nil
}

// --- 查询 ---

// Status returns the lifecycle status after applying any overdue deadline.
func (r *Room) Status() state.Status {
	r.mu.Lock()
	defer r.unlockAndFlush()
	r.checkDeadlineLocked()
	return r.machine.Current()
}

// CurrentRound returns the round being played. ok is false before the game
// starts, between rounds and after it finishes.
func (r *Room) CurrentRound() (view models.RoundView, ok bool) {
	r.mu.Lock()
	defer r.unlockAndFlush()
	r.checkDeadlineLocked()
	if r.machine.Current() != state.InProgress {
		return models.RoundView{}, false
	}
	return r.viewLocked(), true
}

// Snapshot 房间状态副本。回合结束后不再返回题目，避免提前泄露答案。
func (r *Room) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.unlockAndFlush()
	r.checkDeadlineLocked()

	status := r.machine.Current()
	snap := models.Snapshot{
		RoomID:   r.id,
		Host:     r.host,
		Capacity: r.capacity,
		Status:   status.String(),
		Started:  status != state.NotStarted,
		Scores:   r.scoresLocked(),
	}
	if status == state.InProgress {
		view := r.viewLocked()
		snap.Round = &view
	}
	return snap
}

// FinalResults returns the score table once the game has finished.
func (r *Room) FinalResults() ([]models.PlayerScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.machine.Current() != state.Finished {
		return nil, ErrGameNotFinished
	}
	return r.scoresLocked(), nil
}

// Summary is used by the admin surface.
func (r *Room) Summary() models.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RoomSummary{
		RoomID:    r.id,
		Players:   len(r.roster),
		Capacity:  r.capacity,
		Status:    r.machine.Current().String(),
		CreatedAt: r.createdAt,
	}
}

// IdleFor reports how long the room has been empty; zero if it has players.
func (r *Room) IdleFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.roster) > 0 {
		return 0
	}
	return now.Sub(r.emptySince)
}

// closeIfIdle closes the room if it has been empty for at least ttl.
func (r *Room) closeIfIdle(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.roster) > 0 || now.Sub(r.emptySince) < ttl {
		return false
	}
	r.closed = true
	r.cancelTimerLocked()
	return true
}

// Close 关闭房间并取消未触发的倒计时，之后的修改操作返回 ErrRoomClosed
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancelTimerLocked()
}

func (r *Room) scoresLocked() []models.PlayerScore {
	out := make([]models.PlayerScore, 0, len(r.roster))
	for _, name := range r.roster {
		out = append(out, models.PlayerScore{Name: name, Score: r.scores[name]})
	}
	return out
}

func (r *Room) viewLocked() models.RoundView {
	round := r.rounds[r.cursor]
	remaining := round.deadline.Sub(r.opts.now())
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return models.RoundView{
		Number:           r.cursor + 1,
		Total:            len(r.rounds),
		Word:             round.Word,
		Images:           append([]string(nil), round.Images...),
		TimeLimit:        round.TimeLimit,
		RemainingSeconds: secs,
	}
}
