package room

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
)

const maxIDAttempts = 16

// ManagerConfig bounds the rooms a Manager will create.
type ManagerConfig struct {
	MinCapacity int
	MaxCapacity int
	// NewID overrides room id generation; used by tests.
	NewID func() string
}

// Manager 管理所有房间，是显式构造的房间注册表
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	cfg      ManagerConfig
	roomOpts []Option
	opts     options
}

// NewRoomManager 创建一个新的房间管理器，opts 会应用到它创建的每个房间
func NewRoomManager(cfg ManagerConfig, opts ...Option) *Manager {
	if cfg.MinCapacity < 2 {
		cfg.MinCapacity = 2
	}
	if cfg.MaxCapacity < cfg.MinCapacity {
		cfg.MaxCapacity = cfg.MinCapacity
	}
	if cfg.NewID == nil {
		cfg.NewID = NewRoomID
	}
	return &Manager{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		roomOpts: opts,
		opts:     buildOptions(opts),
	}
}

// NewRoomID returns an id of the form ROOM_XXXXXX.
func NewRoomID() string {
	return "ROOM_" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
}

// CreateRoom 创建一个新房间并添加到管理器
func (m *Manager) CreateRoom(capacity int) (*Room, error) {
	if capacity < m.cfg.MinCapacity || capacity > m.cfg.MaxCapacity {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidCapacity, capacity, m.cfg.MinCapacity, m.cfg.MaxCapacity)
	}

	m.mutex.Lock()
	var room *Room
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := m.cfg.NewID()
		if _, exists := m.rooms[id]; exists {
			continue
		}
		room = NewRoom(id, capacity, m.roomOpts...)
		m.rooms[id] = room
		break
	}
	count := len(m.rooms)
	if room != nil {
		// 在注册表锁内入队，保证 room_created 排在该房间的其它事件之前
		m.opts.notifier.Notify(Event{
			Type:   EventRoomCreated,
			RoomID: room.ID(),
			Data:   map[string]int{"active_rooms": count},
			At:     m.opts.now(),
		})
	}
	m.mutex.Unlock()

	if room == nil {
		return nil, ErrIDExhausted
	}

	logger.Log.Infof("Room %s created (capacity %d, %d active)", room.ID(), capacity, count)
	return room, nil
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return room, nil
}

// RemoveRoom 从管理器中移除并关闭一个房间，取消它未触发的倒计时
func (m *Manager) RemoveRoom(id string) error {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	if !exists {
		m.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room.Close()
	count := m.detachLocked(id)
	m.mutex.Unlock()

	logger.Log.Infof("Room %s removed (%d active)", id, count)
	return nil
}

// removeIfIdle removes id only if it is still empty and has been for at
// least ttl. The emptiness check and the close happen under the room lock,
// so a player joining concurrently either keeps the room or gets
// ErrRoomClosed.
func (m *Manager) removeIfIdle(id string, ttl time.Duration, now time.Time) bool {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	if !exists || !room.closeIfIdle(now, ttl) {
		m.mutex.Unlock()
		return false
	}
	count := m.detachLocked(id)
	m.mutex.Unlock()

	logger.Log.Infof("Idle room %s removed (%d active)", id, count)
	return true
}

// detachLocked drops id from the registry and queues room_removed.
// Caller holds m.mutex.
func (m *Manager) detachLocked(id string) int {
	delete(m.rooms, id)
	count := len(m.rooms)
	m.opts.notifier.Notify(Event{
		Type:   EventRoomRemoved,
		RoomID: id,
		Data:   map[string]int{"active_rooms": count},
		At:     m.opts.now(),
	})
	return count
}

// Count returns the number of active rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

func (m *Manager) all() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// List returns a summary of every room, oldest first.
func (m *Manager) List() []models.RoomSummary {
	rooms := m.all()
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Sweep applies overdue deadlines in every room and removes rooms that have
// been empty for at least idleTTL. A non-positive idleTTL keeps empty rooms.
// It returns the ids of removed rooms.
func (m *Manager) Sweep(idleTTL time.Duration) []string {
	now := m.opts.now()
	var removed []string
	for _, room := range m.all() {
		room.CheckDeadline()
		if idleTTL > 0 && m.removeIfIdle(room.ID(), idleTTL, now) {
			removed = append(removed, room.ID())
		}
	}
	return removed
}

// Shutdown closes every room. The manager is empty afterwards.
func (m *Manager) Shutdown() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	for _, room := range rooms {
		room.Close()
	}
	logger.Log.Infof("Room manager shut down, closed %d rooms", len(rooms))
}
