package room

import "errors"

// 房间相关的错误，均可由调用方恢复
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrNameTaken         = errors.New("name already taken in this room")
	ErrInvalidName       = errors.New("player name must not be empty")
	ErrInvalidCapacity   = errors.New("room capacity out of range")
	ErrAlreadyStarted    = errors.New("game already started")
	ErrNotStarted        = errors.New("game not started")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrNotHost           = errors.New("only the host can start the game")
	ErrRoundNotClosed    = errors.New("current round is still in progress")
	ErrNoRoundsAvailable = errors.New("no rounds available")
	ErrPlayerNotInRoom   = errors.New("player is not in this room")
	ErrGameNotFinished   = errors.New("game not finished")
	ErrRoomClosed        = errors.New("room is closed")
	ErrIDExhausted       = errors.New("could not allocate a unique room id")
)
