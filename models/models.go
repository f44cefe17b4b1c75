// models/models.go
package models

import (
	"time"
)

// Round 一轮猜词题目的定义，由题库加载，开局后不再修改
type Round struct {
	Word      string   `json:"word" yaml:"word" validate:"required"`
	Images    []string `json:"images" yaml:"images" validate:"min=1,dive,required"`
	TimeLimit int      `json:"time_limit" yaml:"time_limit" validate:"gt=0"` // 秒
}

// Duration returns the round's time limit.
func (r Round) Duration() time.Duration {
	return time.Duration(r.TimeLimit) * time.Second
}

// RoundView 当前进行中回合的对外视图
type RoundView struct {
	Number           int      `json:"number"` // 1-based
	Total            int      `json:"total"`
	Word             string   `json:"word"`
	Images           []string `json:"images"`
	TimeLimit        int      `json:"time_limit"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

// AnswerOutcome 提交答案的结果
type AnswerOutcome struct {
	Correct bool   `json:"correct"`
	Points  int    `json:"points"`
	Word    string `json:"word"`
}

// PlayerScore 玩家得分，按加入顺序排列
type PlayerScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Snapshot 房间状态快照，是副本而不是视图
type Snapshot struct {
	RoomID   string        `json:"room_id"`
	Host     string        `json:"host"`
	Capacity int           `json:"capacity"`
	Status   string        `json:"status"`
	Started  bool          `json:"started"`
	Round    *RoundView    `json:"round,omitempty"`
	Scores   []PlayerScore `json:"scores"`
}

// ScoreEntry 计分流水，一次正确作答对应一条
type ScoreEntry struct {
	Player    string    `json:"player"`
	Points    int       `json:"points"`
	RoomID    string    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GameRecord 一局游戏的最终结果
type GameRecord struct {
	RoomID     string        `json:"room_id"`
	Rounds     int           `json:"rounds"`
	Scores     []PlayerScore `json:"scores"`
	FinishedAt time.Time     `json:"finished_at"`
}

// PlayerTotal 玩家历史累计得分
type PlayerTotal struct {
	Player string `json:"player"`
	Points int64  `json:"points"`
	Wins   int64  `json:"wins"` // number of correct answers
}

// RoomSummary 管理接口使用的房间摘要
type RoomSummary struct {
	RoomID    string    `json:"room_id"`
	Players   int       `json:"players"`
	Capacity  int       `json:"capacity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
