// Package router is the transport-independent request boundary. Every
// externally reachable action goes through exactly one Router method; the
// HTTP and WebSocket servers only decode, call and encode.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wfunc/picword/catalog"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/room"
	"github.com/wfunc/picword/state"
)

// 操作名，用于指标和日志
const (
	OpCreateRoom   = "create_room"
	OpJoinRoom     = "join_room"
	OpStartGame    = "start_game"
	OpSubmitAnswer = "submit_answer"
	OpAdvanceRound = "advance_round"
	OpGetStatus    = "get_status"
	OpLeaveRoom    = "leave_room"
)

// Observer records request outcomes. monitor.Monitor satisfies it.
type Observer interface {
	ObserveRequest(op, code string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, time.Duration) {}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Router struct {
	rooms           *room.Manager
	catalog         catalog.Catalog
	defaultCapacity int
	observer        Observer
}

type Option func(*Router)

// WithDefaultCapacity is used when CreateRoom asks for capacity 0.
func WithDefaultCapacity(c int) Option {
	return func(r *Router) { r.defaultCapacity = c }
}

func WithObserver(o Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observer = o
		}
	}
}

func New(rooms *room.Manager, cat catalog.Catalog, opts ...Option) *Router {
	r := &Router{
		rooms:           rooms,
		catalog:         cat,
		defaultCapacity: 6,
		observer:        nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) observe(op string, start time.Time, err error) {
	code := Code(err)
	r.observer.ObserveRequest(op, code, time.Since(start))
	if err != nil && code == CodeInternal {
		logger.Log.Errorf("%s failed: %v", op, err)
	}
}

func (r *Router) lookup(id string) (*room.Room, error) {
	return r.rooms.GetRoom(strings.TrimSpace(id))
}

// CreateRoom 创建房间；提供名字时创建者直接加入并成为房主
func (r *Router) CreateRoom(ctx context.Context, req CreateRoomRequest) (resp *CreateRoomResponse, err error) {
	defer func(start time.Time) { r.observe(OpCreateRoom, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = r.defaultCapacity
	}
	rm, err := r.rooms.CreateRoom(capacity)
	if err != nil {
		return nil, err
	}

	resp = &CreateRoomResponse{RoomID: rm.ID(), Capacity: rm.Capacity()}
	if req.Name != "" {
		if err := rm.Join(req.Name); err != nil {
			_ = r.rooms.RemoveRoom(rm.ID())
			return nil, err
		}
		resp.Host = rm.Host()
	}
	return resp, nil
}

// JoinRoom 加入房间，返回加入后的快照
func (r *Router) JoinRoom(ctx context.Context, req JoinRoomRequest) (snap *models.Snapshot, err error) {
	defer func(start time.Time) { r.observe(OpJoinRoom, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := rm.Join(req.Name); err != nil {
		return nil, err
	}
	s := rm.Snapshot()
	return &s, nil
}

// StartGame 加载题库并开始游戏。题库在房间锁之外加载。
func (r *Router) StartGame(ctx context.Context, req StartGameRequest) (view *models.RoundView, err error) {
	defer func(start time.Time) { r.observe(OpStartGame, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	// 先做廉价检查，避免为注定失败的请求读取题库
	if rm.Status() != state.NotStarted {
		return nil, room.ErrAlreadyStarted
	}
	if len(rm.Players()) < 2 {
		return nil, room.ErrNotEnoughPlayers
	}

	rounds, err := r.catalog.LoadRounds(ctx)
	if err != nil {
		logger.Log.Warnf("Loading rounds for room %s failed: %v", rm.ID(), err)
		return nil, fmt.Errorf("%w: %w", room.ErrNoRoundsAvailable, err)
	}

	v, err := rm.Start(req.Name, rounds)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SubmitAnswer 提交答案，结果总是带上本回合的目标词
func (r *Router) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (outcome *models.AnswerOutcome, err error) {
	defer func(start time.Time) { r.observe(OpSubmitAnswer, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	out, err := rm.Submit(req.Name, req.Answer)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceRound 进入下一回合；没有下一回合时返回最终得分
func (r *Router) AdvanceRound(ctx context.Context, req AdvanceRoundRequest) (resp *AdvanceRoundResponse, err error) {
	defer func(start time.Time) { r.observe(OpAdvanceRound, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	next, more, err := rm.Advance()
	if err != nil {
		return nil, err
	}
	if more {
		return &AdvanceRoundResponse{Round: &next}, nil
	}

	results, err := rm.FinalResults()
	if err != nil {
		return nil, err
	}
	return &AdvanceRoundResponse{Finished: true, Results: results}, nil
}

// GetStatus 房间快照
func (r *Router) GetStatus(ctx context.Context, req StatusRequest) (snap *models.Snapshot, err error) {
	defer func(start time.Time) { r.observe(OpGetStatus, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	s := rm.Snapshot()
	return &s, nil
}

// LeaveRoom 离开房间，重复离开也返回成功
func (r *Router) LeaveRoom(ctx context.Context, req LeaveRoomRequest) (resp *LeaveRoomResponse, err error) {
	defer func(start time.Time) { r.observe(OpLeaveRoom, start, err) }(time.Now())
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	rm, err := r.lookup(req.RoomID)
	if err != nil {
		return nil, err
	}
	rm.Leave(req.Name)
	return &LeaveRoomResponse{OK: true}, nil
}
