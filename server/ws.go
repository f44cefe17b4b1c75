package server

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/network"
	"github.com/wfunc/picword/router"
	"github.com/wfunc/picword/session"
)

// ErrorMessage is the body of a MsgTypeError packet.
type ErrorMessage struct {
	Request uint16 `json:"request"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *GameServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(wsConn network.Connection) {
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.conns.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.conns.DecOnlinePlayers()
		// 断线即离开房间
		if roomID, player := sess.Unbind(); roomID != "" {
			_, _ = s.router.LeaveRoom(context.Background(), router.LeaveRoomRequest{RoomID: roomID, Name: player})
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	ctx := context.Background()
	sess.Touch()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		var req router.CreateRoomRequest
		if s.decode(sess, packet, &req) {
			resp, err := s.router.CreateRoom(ctx, req)
			if err == nil && resp.Host != "" {
				s.rebind(ctx, sess, resp.RoomID, resp.Host)
			}
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeJoinRoom:
		var req router.JoinRoomRequest
		if s.decode(sess, packet, &req) {
			resp, err := s.router.JoinRoom(ctx, req)
			if err == nil {
				s.rebind(ctx, sess, resp.RoomID, req.Name)
			}
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeStartGame:
		var req router.StartGameRequest
		if s.decode(sess, packet, &req) {
			s.fill(sess, &req.RoomID, &req.Name)
			resp, err := s.router.StartGame(ctx, req)
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeSubmitAnswer:
		var req router.SubmitAnswerRequest
		if s.decode(sess, packet, &req) {
			s.fill(sess, &req.RoomID, &req.Name)
			resp, err := s.router.SubmitAnswer(ctx, req)
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeAdvanceRound:
		var req router.AdvanceRoundRequest
		if s.decode(sess, packet, &req) {
			s.fill(sess, &req.RoomID, nil)
			resp, err := s.router.AdvanceRound(ctx, req)
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeGetStatus:
		var req router.StatusRequest
		if s.decode(sess, packet, &req) {
			s.fill(sess, &req.RoomID, nil)
			resp, err := s.router.GetStatus(ctx, req)
			s.respond(sess, packet.MsgID, resp, err)
		}
	case network.MsgTypeLeaveRoom:
		var req router.LeaveRoomRequest
		if s.decode(sess, packet, &req) {
			s.fill(sess, &req.RoomID, &req.Name)
			resp, err := s.router.LeaveRoom(ctx, req)
			if err == nil {
				if roomID, player := sess.Binding(); roomID == req.RoomID && player == req.Name {
					sess.Unbind()
				}
			}
			s.respond(sess, packet.MsgID, resp, err)
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.respond(sess, packet.MsgID, nil, router.BadRequest("unknown message type %d", packet.MsgID))
	}
}

// rebind moves the session to a new room, leaving the one it was in.
func (s *GameServer) rebind(ctx context.Context, sess *session.Session, roomID, player string) {
	if oldRoom, oldPlayer := sess.Unbind(); oldRoom != "" && oldRoom != roomID {
		_, _ = s.router.LeaveRoom(ctx, router.LeaveRoomRequest{RoomID: oldRoom, Name: oldPlayer})
	}
	sess.Bind(roomID, player)
}

// fill defaults room id and player name from the session binding.
func (s *GameServer) fill(sess *session.Session, roomID, name *string) {
	boundRoom, boundPlayer := sess.Binding()
	if roomID != nil && *roomID == "" {
		*roomID = boundRoom
	}
	if name != nil && *name == "" {
		*name = boundPlayer
	}
}

func (s *GameServer) decode(sess *session.Session, packet *network.Packet, v interface{}) bool {
	if len(packet.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(packet.Data, v); err != nil {
		s.respond(sess, packet.MsgID, nil, router.BadRequest("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *GameServer) respond(sess *session.Session, msgID uint16, body interface{}, err error) {
	if err != nil {
		e := router.Classify(err)
		body = ErrorMessage{Request: msgID, Code: e.Code, Message: e.Message}
		msgID = network.MsgTypeError
	}
	data, merr := json.Marshal(body)
	if merr != nil {
		logger.Log.Errorf("marshal response for message %d: %v", msgID, merr)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Debugf("send to session %s failed: %v", sess.GetID(), err)
	}
}
