// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/network"
	"github.com/wfunc/picword/room"
	"github.com/wfunc/picword/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// 基于房间的广播器，房间成员由会话绑定决定
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.InRoom(roomID) {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败由读循环发现断线后清理
			logger.Log.Debugf("broadcast to session %s failed: %v", s.ID, err)
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("broadcast to session %s failed: %v", s.ID, err)
			continue
		}
	}
	return nil
}

// Notify implements room.Notifier by pushing the event to every session
// bound to the room. Sessions of a removed room are unbound afterwards.
func (b *RoomBroadcaster) Notify(evt room.Event) {
	if evt.RoomID == "" || evt.Type == room.EventRoomCreated {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Errorf("marshal %s event: %v", evt.Type, err)
		return
	}
	b.BroadcastToRoom(evt.RoomID, network.MsgTypeRoomEvent, data)

	if evt.Type == room.EventRoomRemoved {
		for _, s := range b.sessionManager.InRoom(evt.RoomID) {
			s.Unbind()
		}
	}
}
