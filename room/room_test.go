package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/state"
)

func startedRoom(t *testing.T, h *harness, players ...string) *Room {
	t.Helper()
	r := h.room(len(players))
	for _, p := range players {
		require.NoError(t, r.Join(p))
	}
	_, err := r.Start(players[0], testRounds())
	require.NoError(t, err)
	return r
}

func TestRoom_JoinUpToCapacity(t *testing.T) {
	for c := 2; c <= 6; c++ {
		t.Run(fmt.Sprintf("capacity_%d", c), func(t *testing.T) {
			r := newHarness().room(c)
			for i := 0; i < c; i++ {
				require.NoError(t, r.Join(fmt.Sprintf("player%d", i)))
			}
			assert.True(t, r.IsFull())
			assert.ErrorIs(t, r.Join("overflow"), ErrRoomFull)
			assert.Len(t, r.Players(), c)
		})
	}
}

func TestRoom_JoinNameTakenIsCaseSensitive(t *testing.T) {
	r := newHarness().room(4)
	require.NoError(t, r.Join("alice"))

	assert.ErrorIs(t, r.Join("alice"), ErrNameTaken)
	assert.ErrorIs(t, r.Join("  alice "), ErrNameTaken)
	assert.NoError(t, r.Join("Alice"))
	assert.Equal(t, []string{"alice", "Alice"}, r.Players())
}

func TestRoom_HasPlayerTrimsName(t *testing.T) {
	r := newHarness().room(2)
	require.NoError(t, r.Join("ana"))

	assert.True(t, r.HasPlayer("ana"))
	assert.True(t, r.HasPlayer(" ana\t"))
	assert.False(t, r.HasPlayer("Ana"))
}

func TestRoom_JoinRejectsEmptyName(t *testing.T) {
	r := newHarness().room(2)
	assert.ErrorIs(t, r.Join("   "), ErrInvalidName)
}

func TestRoom_FirstPlayerIsHostForever(t *testing.T) {
	h := newHarness()
	r := h.room(3)
	require.NoError(t, r.Join("ana"))
	require.NoError(t, r.Join("bruno"))
	assert.Equal(t, "ana", r.Host())

	r.Leave("ana")
	assert.Equal(t, "ana", r.Host())
	require.NoError(t, r.Join("carla"))
	assert.Equal(t, "ana", r.Host())
	assert.Equal(t, 3, h.notifier.Count(EventPlayerJoined))
}

func TestRoom_JoinAfterStart(t *testing.T) {
	h := newHarness()
	r := h.room(3)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))
	_, err := r.Start("a", testRounds())
	require.NoError(t, err)

	assert.ErrorIs(t, r.Join("c"), ErrAlreadyStarted)
}

func TestRoom_LeaveIsIdempotent(t *testing.T) {
	h := newHarness()
	r := h.room(3)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))

	r.Leave("a")
	r.Leave("a")
	r.Leave("nobody")

	assert.False(t, r.HasPlayer("a"))
	assert.Equal(t, []string{"b"}, r.Players())
	assert.Equal(t, 1, h.notifier.Count(EventPlayerLeft))
}

func TestRoom_LeaveKeepsOtherScores(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	h.clock.Advance(2 * time.Second)
	out, err := r.Submit("a", "sol")
	require.NoError(t, err)
	require.Equal(t, 940, out.Points)

	r.Leave("b")
	snap := r.Snapshot()
	assert.Equal(t, []models.PlayerScore{{Name: "a", Score: 940}, {Name: "c", Score: 0}}, snap.Scores)
}

func TestRoom_StartRequiresTwoPlayers(t *testing.T) {
	h := newHarness()
	r := h.room(4)

	_, err := r.Start("", testRounds())
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	require.NoError(t, r.Join("a"))
	_, err = r.Start("a", testRounds())
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	assert.Equal(t, state.NotStarted, r.Status())

	require.NoError(t, r.Join("b"))
	view, err := r.Start("a", testRounds())
	require.NoError(t, err)
	assert.Equal(t, 1, view.Number)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "sol", view.Word)
	assert.Equal(t, 30, view.TimeLimit)
	assert.Equal(t, 30, view.RemainingSeconds)
	assert.Equal(t, state.InProgress, r.Status())

	_, err = r.Start("a", testRounds())
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	assert.Equal(t, 1, h.scheduler.Pending())
	assert.Equal(t, 30*time.Second, h.scheduler.delays[h.scheduler.LastID()])
}

func TestRoom_StartWithoutRounds(t *testing.T) {
	r := newHarness().room(2)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))

	_, err := r.Start("a", nil)
	assert.ErrorIs(t, err, ErrNoRoundsAvailable)
	assert.Equal(t, state.NotStarted, r.Status())
}

func TestRoom_HostOnlyStart(t *testing.T) {
	h := newHarness()
	r := h.room(2, WithHostOnlyStart(true))
	require.NoError(t, r.Join("host"))
	require.NoError(t, r.Join("guest"))

	_, err := r.Start("guest", testRounds())
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = r.Start("host", testRounds())
	assert.NoError(t, err)
}

func TestRoom_StartCopiesRounds(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))

	rounds := testRounds()
	_, err := r.Start("a", rounds)
	require.NoError(t, err)
	rounds[0].Word = "mutated"
	rounds[0].Images[0] = "mutated.png"

	view, ok := r.CurrentRound()
	require.True(t, ok)
	assert.Equal(t, "sol", view.Word)
	assert.Equal(t, "sun1.png", view.Images[0])
}

func TestPoints(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1000},
		{999 * time.Millisecond, 1000},
		{time.Second, 970},
		{5 * time.Second, 850},
		{20 * time.Second, 400},
		{30 * time.Second, 100},
		{40 * time.Second, 100},
		{-time.Second, 1000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Points(c.elapsed), "elapsed %v", c.elapsed)
	}
}

func TestRoom_SubmitScoresByElapsedTime(t *testing.T) {
	for _, tc := range []struct {
		elapsed time.Duration
		points  int
	}{
		{0, 1000},
		{20 * time.Second, 400},
		{29*time.Second + 900*time.Millisecond, 130},
	} {
		h := newHarness()
		r := startedRoom(t, h, "a", "b")
		h.clock.Advance(tc.elapsed)

		out, err := r.Submit("a", "SOL")
		require.NoError(t, err)
		assert.True(t, out.Correct)
		assert.Equal(t, tc.points, out.Points)
		assert.Equal(t, "sol", out.Word)

		entries := h.ledger.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, models.ScoreEntry{Player: "a", Points: tc.points, RoomID: "ROOM_TEST", CreatedAt: h.clock.Now()}, entries[0])
	}
}

func TestRoom_MinimumAwardNearDeadline(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))
	_, err := r.Start("a", []models.Round{{Word: "mar", Images: []string{"x"}, TimeLimit: 60}})
	require.NoError(t, err)

	h.clock.Advance(40 * time.Second)
	out, err := r.Submit("b", "mar")
	require.NoError(t, err)
	assert.Equal(t, 100, out.Points)
}

func TestRoom_ResubmissionNeverRescored(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	first, err := r.Submit("a", "sol")
	require.NoError(t, err)
	assert.Equal(t, 1000, first.Points)

	second, err := r.Submit("a", "sol")
	require.NoError(t, err)
	assert.False(t, second.Correct)
	assert.Zero(t, second.Points)
	assert.Equal(t, "sol", second.Word)

	assert.Len(t, h.ledger.Entries(), 1)
	assert.Equal(t, 1000, r.Snapshot().Scores[0].Score)
}

func TestRoom_WrongFirstAnswerLocksPlayerOut(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	out, err := r.Submit("a", "luna")
	require.NoError(t, err)
	assert.False(t, out.Correct)

	out, err = r.Submit("a", "sol")
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Points)
	assert.Empty(t, h.ledger.Entries())
}

func TestRoom_SubmitUnknownPlayer(t *testing.T) {
	r := startedRoom(t, newHarness(), "a", "b")
	_, err := r.Submit("ghost", "sol")
	assert.ErrorIs(t, err, ErrPlayerNotInRoom)
}

func TestRoom_SubmitBeforeStart(t *testing.T) {
	r := newHarness().room(2)
	require.NoError(t, r.Join("a"))
	out, err := r.Submit("a", "sol")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerOutcome{}, out)
}

func TestRoom_AllAnsweredClosesRoundAndDeadlineIsNoop(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")
	timerID := h.scheduler.LastID()

	_, err := r.Submit("a", "nope")
	require.NoError(t, err)
	assert.Equal(t, state.InProgress, r.Status())

	_, err = r.Submit("b", "sol")
	require.NoError(t, err)
	assert.Equal(t, state.RoundClosed, r.Status())
	assert.Zero(t, h.scheduler.Pending(), "deadline should be cancelled")

	// deadline raced the cancellation and fires anyway
	h.scheduler.Fire(timerID)
	assert.Equal(t, state.RoundClosed, r.Status())
	assert.Equal(t, 1, h.notifier.Count(EventRoundClosed))

	evt, ok := h.notifier.Last(EventRoundClosed)
	require.True(t, ok)
	assert.Equal(t, RoundClosedData{Round: 1, Word: "sol", Reason: ReasonAllAnswered}, evt.Data)
}

func TestRoom_DeadlineClosesRound(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	_, err := r.Submit("a", "sol")
	require.NoError(t, err)

	_, _, err = r.Advance()
	assert.ErrorIs(t, err, ErrRoundNotClosed)

	h.clock.Advance(30 * time.Second)
	h.scheduler.Fire(h.scheduler.LastID())
	assert.Equal(t, state.RoundClosed, r.Status())

	evt, ok := h.notifier.Last(EventRoundClosed)
	require.True(t, ok)
	assert.Equal(t, ReasonDeadline, evt.Data.(RoundClosedData).Reason)

	// a late answer after closure is not scored
	out, err := r.Submit("b", "sol")
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Len(t, h.ledger.Entries(), 1)

	view, more, err := r.Advance()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 2, view.Number)
	assert.Equal(t, "luna", view.Word)
}

func TestRoom_LazyDeadlineWithoutTimer(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")

	h.clock.Advance(29 * time.Second)
	assert.Equal(t, state.InProgress, r.Status())

	h.clock.Advance(time.Second)
	// timer never fires; the next query closes the round
	snap := r.Snapshot()
	assert.Equal(t, "round_closed", snap.Status)
	assert.Nil(t, snap.Round)
	assert.Zero(t, h.scheduler.Pending())

	_, more, err := r.Advance()
	require.NoError(t, err)
	assert.True(t, more)
}

func TestRoom_CheckDeadline(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")
	h.clock.Advance(31 * time.Second)
	r.CheckDeadline()
	assert.Equal(t, 1, h.notifier.Count(EventRoundClosed))
}

func TestRoom_StaleTimerFromPreviousRound(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")
	firstTimer := h.scheduler.LastID()

	_, _ = r.Submit("a", "x")
	_, _ = r.Submit("b", "x")
	_, more, err := r.Advance()
	require.NoError(t, err)
	require.True(t, more)

	h.scheduler.Fire(firstTimer)
	assert.Equal(t, state.InProgress, r.Status(), "round 1 timer must not close round 2")
}

func TestRoom_AdvanceStates(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))

	_, _, err := r.Advance()
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = r.Start("a", testRounds())
	require.NoError(t, err)
	_, _, err = r.Advance()
	assert.ErrorIs(t, err, ErrRoundNotClosed)
}

func TestRoom_AdvancePastLastRoundFinishes(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")

	_, err := r.FinalResults()
	assert.ErrorIs(t, err, ErrGameNotFinished)

	for round := 0; round < 2; round++ {
		_, _ = r.Submit("a", []string{"sol", "luna"}[round])
		_, _ = r.Submit("b", "wrong")
		_, more, err := r.Advance()
		require.NoError(t, err)
		assert.Equal(t, round == 0, more)
	}

	assert.Equal(t, state.Finished, r.Status())
	assert.Zero(t, h.scheduler.Pending())

	results, err := r.FinalResults()
	require.NoError(t, err)
	assert.Equal(t, []models.PlayerScore{{Name: "a", Score: 2000}, {Name: "b", Score: 0}}, results)

	// advancing a finished game keeps reporting no more rounds
	_, more, err := r.Advance()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, 1, h.notifier.Count(EventGameFinished))

	evt, _ := h.notifier.Last(EventGameFinished)
	record := evt.Data.(models.GameRecord)
	assert.Equal(t, "ROOM_TEST", record.RoomID)
	assert.Equal(t, 2, record.Rounds)
	assert.Equal(t, results, record.Scores)
}

func TestRoom_FinalResultsMatchFinalRoster(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	r.Leave("b")
	_, _ = r.Submit("a", "sol")
	_, _ = r.Submit("c", "sol")
	_, _, err := r.Advance()
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, more, err := r.Advance()
	require.NoError(t, err)
	require.False(t, more)

	results, err := r.FinalResults()
	require.NoError(t, err)
	names := make([]string, 0, len(results))
	for _, s := range results {
		names = append(names, s.Name)
	}
	assert.Equal(t, r.Players(), names)
}

func TestRoom_LeaveCompletesAnsweredSet(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b", "c")

	_, _ = r.Submit("a", "sol")
	_, _ = r.Submit("b", "x")
	assert.Equal(t, state.InProgress, r.Status())

	r.Leave("c")
	assert.Equal(t, state.RoundClosed, r.Status())
}

func TestRoom_SnapshotHidesClosedRound(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	require.NoError(t, r.Join("a"))
	require.NoError(t, r.Join("b"))

	snap := r.Snapshot()
	assert.False(t, snap.Started)
	assert.Nil(t, snap.Round)
	assert.Equal(t, "a", snap.Host)

	_, err := r.Start("a", testRounds())
	require.NoError(t, err)
	h.clock.Advance(10 * time.Second)

	snap = r.Snapshot()
	require.NotNil(t, snap.Round)
	assert.True(t, snap.Started)
	assert.Equal(t, 20, snap.Round.RemainingSeconds)
	assert.Equal(t, "sol", snap.Round.Word)

	// the snapshot is a copy
	snap.Round.Images[0] = "changed"
	snap.Scores[0].Score = 99
	again := r.Snapshot()
	assert.Equal(t, "sun1.png", again.Round.Images[0])
	assert.Zero(t, again.Scores[0].Score)

	_, _ = r.Submit("a", "x")
	_, _ = r.Submit("b", "x")
	snap = r.Snapshot()
	assert.Equal(t, "round_closed", snap.Status)
	assert.Nil(t, snap.Round)

	_, ok := r.CurrentRound()
	assert.False(t, ok)
}

func TestRoom_ClosingPolicies(t *testing.T) {
	t.Run("first_correct", func(t *testing.T) {
		h := newHarness()
		r := h.room(3, WithClosingPolicy(CloseOnFirstCorrect))
		for _, p := range []string{"a", "b", "c"} {
			require.NoError(t, r.Join(p))
		}
		_, err := r.Start("a", testRounds())
		require.NoError(t, err)

		_, _ = r.Submit("a", "wrong")
		assert.Equal(t, state.InProgress, r.Status())
		_, _ = r.Submit("b", "sol")
		assert.Equal(t, state.RoundClosed, r.Status())
	})

	t.Run("all_correct", func(t *testing.T) {
		h := newHarness()
		r := h.room(2, WithClosingPolicy(CloseWhenAllCorrect))
		require.NoError(t, r.Join("a"))
		require.NoError(t, r.Join("b"))
		_, err := r.Start("a", testRounds())
		require.NoError(t, err)

		_, _ = r.Submit("a", "wrong")
		_, _ = r.Submit("b", "sol")
		assert.Equal(t, state.InProgress, r.Status(), "a never scored")

		h.clock.Advance(30 * time.Second)
		assert.Equal(t, state.RoundClosed, r.Status())
	})

	t.Run("timeout_only", func(t *testing.T) {
		h := newHarness()
		r := h.room(2, WithClosingPolicy(CloseOnTimeoutOnly))
		require.NoError(t, r.Join("a"))
		require.NoError(t, r.Join("b"))
		_, err := r.Start("a", testRounds())
		require.NoError(t, err)

		_, _ = r.Submit("a", "sol")
		_, _ = r.Submit("b", "sol")
		assert.Equal(t, state.InProgress, r.Status())

		h.scheduler.Fire(h.scheduler.LastID())
		assert.Equal(t, state.RoundClosed, r.Status())
	})
}

func TestParseClosingPolicy(t *testing.T) {
	for _, p := range []ClosingPolicy{CloseWhenAllAnswered, CloseOnFirstCorrect, CloseWhenAllCorrect, CloseOnTimeoutOnly} {
		parsed, err := ParseClosingPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParseClosingPolicy("sometimes")
	assert.Error(t, err)
}

func TestRoom_Scenario(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	require.NoError(t, r.Join("A"))
	require.NoError(t, r.Join("B"))
	_, err := r.Start("A", []models.Round{{Word: "sol", Images: []string{"1", "2", "3", "4"}, TimeLimit: 30}})
	require.NoError(t, err)

	h.clock.Advance(5 * time.Second)
	out, err := r.Submit("A", "SOL")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerOutcome{Correct: true, Points: 850, Word: "sol"}, out)
	assert.Equal(t, state.InProgress, r.Status(), "waits for B")

	h.clock.Advance(time.Second)
	out, err = r.Submit("B", "luna")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerOutcome{Correct: false, Points: 0, Word: "sol"}, out)
	assert.Equal(t, state.RoundClosed, r.Status())

	_, more, err := r.Advance()
	require.NoError(t, err)
	assert.False(t, more)
	results, err := r.FinalResults()
	require.NoError(t, err)
	assert.Equal(t, []models.PlayerScore{{Name: "A", Score: 850}, {Name: "B", Score: 0}}, results)
}

func TestRoom_ConcurrentCorrectAnswersScoreOncePerPlayer(t *testing.T) {
	h := newHarness()
	const players = 40
	r := h.room(players)
	for i := 0; i < players; i++ {
		require.NoError(t, r.Join(fmt.Sprintf("p%02d", i)))
	}
	_, err := r.Start("p00", testRounds())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_, _ = r.Submit(name, "sol")
			}(fmt.Sprintf("p%02d", i))
		}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.scheduler.Fire(1)
	}()
	wg.Wait()

	assert.Equal(t, state.RoundClosed, r.Status())
	assert.Equal(t, 1, h.notifier.Count(EventRoundClosed))

	scored := make(map[string]int)
	for _, e := range h.ledger.Entries() {
		scored[e.Player]++
	}
	for player, n := range scored {
		assert.Equal(t, 1, n, "player %s scored %d times", player, n)
	}
}

func TestRoom_CloseCancelsDeadline(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")
	require.Equal(t, 1, h.scheduler.Pending())

	r.Close()
	assert.Zero(t, h.scheduler.Pending())

	h.scheduler.Fire(h.scheduler.LastID())
	assert.Zero(t, h.notifier.Count(EventRoundClosed))

	_, err := r.Submit("a", "sol")
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, r.Join("c"), ErrRoomClosed)
	_, _, err = r.Advance()
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestRoom_EventsNeverCarryWordBeforeClose(t *testing.T) {
	h := newHarness()
	r := startedRoom(t, h, "a", "b")

	evt, ok := h.notifier.Last(EventRoundStarted)
	require.True(t, ok)
	assert.Empty(t, evt.Data.(models.RoundView).Word)

	_, _ = r.Submit("a", "sol")
	evt, ok = h.notifier.Last(EventAnswerSubmitted)
	require.True(t, ok)
	assert.Equal(t, AnswerData{Round: 1, Correct: true, Points: 1000}, evt.Data)
	assert.Equal(t, "a", evt.Player)
}

func TestRoom_IdleFor(t *testing.T) {
	h := newHarness()
	r := h.room(2)
	h.clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, r.IdleFor(h.clock.Now()))

	require.NoError(t, r.Join("a"))
	assert.Zero(t, r.IdleFor(h.clock.Now()))

	r.Leave("a")
	h.clock.Advance(time.Second)
	assert.Equal(t, time.Second, r.IdleFor(h.clock.Now()))
}
