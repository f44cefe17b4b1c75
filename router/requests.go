package router

import "github.com/wfunc/picword/models"

// 请求与响应结构，HTTP 与 WebSocket 共用

type CreateRoomRequest struct {
	Capacity int    `json:"capacity" validate:"gte=0"` // 0 表示使用默认容量
	Name     string `json:"name" validate:"omitempty,max=32"`
}

type CreateRoomResponse struct {
	RoomID   string `json:"room_id"`
	Capacity int    `json:"capacity"`
	Host     string `json:"host,omitempty"`
}

type JoinRoomRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
	Name   string `json:"name" validate:"required,max=32"`
}

type StartGameRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
	Name   string `json:"name" validate:"max=32"` // caller, checked when host-only start is on
}

type SubmitAnswerRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
	Name   string `json:"name" validate:"required,max=32"`
	Answer string `json:"answer" validate:"max=128"`
}

type AdvanceRoundRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
}

// AdvanceRoundResponse carries either the next round or the final results.
type AdvanceRoundResponse struct {
	Finished bool                 `json:"finished"`
	Round    *models.RoundView    `json:"round,omitempty"`
	Results  []models.PlayerScore `json:"results,omitempty"`
}

type StatusRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"room_id" validate:"required,max=32"`
	Name   string `json:"name" validate:"required,max=32"`
}

type LeaveRoomResponse struct {
	OK bool `json:"ok"`
}
