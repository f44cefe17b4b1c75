package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/room"
	"github.com/wfunc/picword/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server listening on addr.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register exposes rcvr's exported methods, following net/rpc rules.
func (s *Server) Register(rcvr interface{}) error {
	return s.rpc.Register(rcvr)
}

func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests. It returns once the listener is
// closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

const callTimeout = 5 * time.Second

// AdminService is the struct that exposes administrative RPC methods.
// Methods follow the net/rpc signature: exported method, exported
// arguments, second argument is a pointer, return type is error.
type AdminService struct {
	rooms  *room.Manager
	scores *services.ScoreService
}

// NewAdminService creates a new AdminService.
func NewAdminService(rooms *room.Manager, scores *services.ScoreService) *AdminService {
	return &AdminService{rooms: rooms, scores: scores}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.rooms.List()
	return nil
}

type RemoveRoomArgs struct {
	RoomID string
}

type RemoveRoomReply struct {
	Removed bool
}

// RemoveRoom discards a room and cancels its pending deadline.
func (a *AdminService) RemoveRoom(args *RemoveRoomArgs, reply *RemoveRoomReply) error {
	if err := a.rooms.RemoveRoom(args.RoomID); err != nil {
		return err
	}
	logger.Log.Infof("Room %s removed by admin", args.RoomID)
	reply.Removed = true
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type LeaderboardReply struct {
	Totals []models.PlayerTotal
}

func (a *AdminService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	totals, err := a.scores.Leaderboard(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Totals = totals
	return nil
}
