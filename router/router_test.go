package router

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/picword/catalog"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/room"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu    sync.Mutex
	codes map[string][]string
}

func (o *recordingObserver) ObserveRequest(op, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string][]string)
	}
	o.codes[op] = append(o.codes[op], code)
}

type failingCatalog struct{}

func (failingCatalog) LoadRounds(context.Context) ([]models.Round, error) {
	return nil, catalog.ErrNoRounds
}

type fixture struct {
	clock    *clock
	observer *recordingObserver
	router   *Router
	ctx      context.Context
}

func newFixture(t *testing.T, cat catalog.Catalog, opts ...room.Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:    &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		observer: &recordingObserver{},
		ctx:      context.Background(),
	}
	if cat == nil {
		cat = catalog.Static{
			{Word: "sol", Images: []string{"s1.png", "s2.png"}, TimeLimit: 30},
			{Word: "luna", Images: []string{"l1.png"}, TimeLimit: 20},
		}
	}
	opts = append([]room.Option{room.WithClock(f.clock.Now)}, opts...)
	manager := room.NewRoomManager(room.ManagerConfig{MinCapacity: 2, MaxCapacity: 6}, opts...)
	f.router = New(manager, cat, WithDefaultCapacity(4), WithObserver(f.observer))
	return f
}

func (f *fixture) roomWith(t *testing.T, names ...string) string {
	t.Helper()
	created, err := f.router.CreateRoom(f.ctx, CreateRoomRequest{Capacity: 2, Name: names[0]})
	require.NoError(t, err)
	for _, n := range names[1:] {
		_, err := f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: created.RoomID, Name: n})
		require.NoError(t, err)
	}
	return created.RoomID
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.router.CreateRoom(f.ctx, CreateRoomRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Capacity)
	assert.Empty(t, resp.Host)
	assert.Regexp(t, `^ROOM_[0-9A-F]{6}$`, resp.RoomID)

	resp, err = f.router.CreateRoom(f.ctx, CreateRoomRequest{Capacity: 3, Name: "ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana", resp.Host)

	_, err = f.router.CreateRoom(f.ctx, CreateRoomRequest{Capacity: 9})
	assert.ErrorIs(t, err, room.ErrInvalidCapacity)

	_, err = f.router.CreateRoom(f.ctx, CreateRoomRequest{Capacity: -1})
	assert.Equal(t, CodeInvalidRequest, Code(err))

	// a creator name that cannot join leaves no room behind
	_, err = f.router.CreateRoom(f.ctx, CreateRoomRequest{Capacity: 2, Name: "   "})
	assert.ErrorIs(t, err, room.ErrInvalidName)
	assert.Equal(t, 2, f.router.rooms.Count())
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t, nil)
	id := f.roomWith(t, "ana")

	snap, err := f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: id, Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []models.PlayerScore{{Name: "ana"}, {Name: "bob"}}, snap.Scores)

	_, err = f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: id, Name: "cid"})
	assert.ErrorIs(t, err, room.ErrRoomFull)

	_, err = f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: "ROOM_NOPE00", Name: "cid"})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: id})
	assert.Equal(t, CodeInvalidRequest, Code(err))
}

func TestStartGame(t *testing.T) {
	f := newFixture(t, nil)
	id := f.roomWith(t, "ana")

	_, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id, Name: "ana"})
	assert.ErrorIs(t, err, room.ErrNotEnoughPlayers)

	_, err = f.router.JoinRoom(f.ctx, JoinRoomRequest{RoomID: id, Name: "bob"})
	require.NoError(t, err)

	view, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id, Name: "ana"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Number)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 30, view.RemainingSeconds)

	_, err = f.router.StartGame(f.ctx, StartGameRequest{RoomID: id})
	assert.ErrorIs(t, err, room.ErrAlreadyStarted)
}

func TestStartGame_CatalogFailure(t *testing.T) {
	f := newFixture(t, failingCatalog{})
	id := f.roomWith(t, "ana", "bob")

	_, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id})
	assert.ErrorIs(t, err, room.ErrNoRoundsAvailable)
	assert.ErrorIs(t, err, catalog.ErrNoRounds)
	assert.Equal(t, http.StatusUnprocessableEntity, Classify(err).Status)

	// the room is untouched and can still be started later
	status, err := f.router.GetStatus(f.ctx, StatusRequest{RoomID: id})
	require.NoError(t, err)
	assert.False(t, status.Started)
}

func TestStartGame_HostOnly(t *testing.T) {
	f := newFixture(t, nil, room.WithHostOnlyStart(true))
	id := f.roomWith(t, "ana", "bob")

	_, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id, Name: "bob"})
	assert.ErrorIs(t, err, room.ErrNotHost)
	assert.Equal(t, http.StatusForbidden, Classify(err).Status)

	_, err = f.router.StartGame(f.ctx, StartGameRequest{RoomID: id, Name: "ana"})
	assert.NoError(t, err)
}

func TestFullGame(t *testing.T) {
	f := newFixture(t, nil)
	id := f.roomWith(t, "ana", "bob")
	_, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id})
	require.NoError(t, err)

	_, err = f.router.AdvanceRound(f.ctx, AdvanceRoundRequest{RoomID: id})
	assert.ErrorIs(t, err, room.ErrRoundNotClosed)

	f.clock.Advance(5 * time.Second)
	out, err := f.router.SubmitAnswer(f.ctx, SubmitAnswerRequest{RoomID: id, Name: "ana", Answer: "SOL"})
	require.NoError(t, err)
	assert.Equal(t, models.AnswerOutcome{Correct: true, Points: 850, Word: "sol"}, *out)

	// status while the round is still open shows the round
	snap, err := f.router.GetStatus(f.ctx, StatusRequest{RoomID: id})
	require.NoError(t, err)
	require.NotNil(t, snap.Round)

	f.clock.Advance(time.Second)
	out, err = f.router.SubmitAnswer(f.ctx, SubmitAnswerRequest{RoomID: id, Name: "bob", Answer: "luna"})
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Points)
	// the round closed on this submission, so the word can be revealed
	assert.Equal(t, "sol", out.Word)

	next, err := f.router.AdvanceRound(f.ctx, AdvanceRoundRequest{RoomID: id})
	require.NoError(t, err)
	require.False(t, next.Finished)
	assert.Equal(t, 2, next.Round.Number)

	// second round times out
	f.clock.Advance(21 * time.Second)
	final, err := f.router.AdvanceRound(f.ctx, AdvanceRoundRequest{RoomID: id})
	require.NoError(t, err)
	assert.True(t, final.Finished)
	assert.Equal(t, []models.PlayerScore{{Name: "ana", Score: 850}, {Name: "bob", Score: 0}}, final.Results)

	again, err := f.router.AdvanceRound(f.ctx, AdvanceRoundRequest{RoomID: id})
	require.NoError(t, err)
	assert.Equal(t, final.Results, again.Results)
}

func TestSubmitAnswer_WrongAnswerCarriesWord(t *testing.T) {
	f := newFixture(t, nil)
	id := f.roomWith(t, "ana", "bob")
	_, err := f.router.StartGame(f.ctx, StartGameRequest{RoomID: id})
	require.NoError(t, err)

	out, err := f.router.SubmitAnswer(f.ctx, SubmitAnswerRequest{RoomID: id, Name: "ana", Answer: "mar"})
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Points)
	assert.Equal(t, "sol", out.Word)

	// the snapshot shows the same word while the round is open
	snap, err := f.router.GetStatus(f.ctx, StatusRequest{RoomID: id})
	require.NoError(t, err)
	require.NotNil(t, snap.Round)
	assert.Equal(t, out.Word, snap.Round.Word)

	_, err = f.router.SubmitAnswer(f.ctx, SubmitAnswerRequest{RoomID: id, Name: "zed", Answer: "sol"})
	assert.ErrorIs(t, err, room.ErrPlayerNotInRoom)
}

func TestLeaveRoom(t *testing.T) {
	f := newFixture(t, nil)
	id := f.roomWith(t, "ana", "bob")

	for i := 0; i < 2; i++ {
		resp, err := f.router.LeaveRoom(f.ctx, LeaveRoomRequest{RoomID: id, Name: "bob"})
		require.NoError(t, err)
		assert.True(t, resp.OK)
	}

	snap, err := f.router.GetStatus(f.ctx, StatusRequest{RoomID: id})
	require.NoError(t, err)
	assert.Equal(t, []models.PlayerScore{{Name: "ana"}}, snap.Scores)

	_, err = f.router.LeaveRoom(f.ctx, LeaveRoomRequest{RoomID: "ROOM_NOPE00", Name: "bob"})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestObserverSeesCodes(t *testing.T) {
	f := newFixture(t, nil)
	_, _ = f.router.GetStatus(f.ctx, StatusRequest{RoomID: "ROOM_NOPE00"})
	id := f.roomWith(t, "ana")
	_, _ = f.router.GetStatus(f.ctx, StatusRequest{RoomID: id})

	assert.Equal(t, []string{"room_not_found", "ok"}, f.observer.codes[OpGetStatus])
	assert.Equal(t, []string{"ok"}, f.observer.codes[OpCreateRoom])
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, CodeOK, Code(nil))

	e := Classify(room.ErrRoomFull)
	assert.Equal(t, "room_full", e.Code)
	assert.Equal(t, http.StatusConflict, e.Status)

	wrapped := Classify(errors.Join(errors.New("context"), room.ErrRoomNotFound))
	assert.Equal(t, http.StatusNotFound, wrapped.Status)

	internal := Classify(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.Status)

	bad := BadRequest("bad json: %s", "eof")
	assert.Same(t, bad, Classify(bad))

	err := validate.Struct(JoinRoomRequest{})
	v := Classify(err)
	assert.Equal(t, CodeInvalidRequest, v.Code)
	assert.Contains(t, v.Message, "roomid is required")
}
