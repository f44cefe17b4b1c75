// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormRound 题库表
type GormRound struct {
	gorm.Model
	Word      string         `gorm:"not null"`
	Images    pq.StringArray `gorm:"type:text[];not null"`
	TimeLimit int            `gorm:"not null"`
	Position  int            `gorm:"index;default:0"` // 出题顺序
	Enabled   bool           `gorm:"default:true"`
}

func (GormRound) TableName() string { return "rounds" }

// ToRound converts the row into a catalog round.
func (r GormRound) ToRound() Round {
	return Round{
		Word:      r.Word,
		Images:    append([]string(nil), r.Images...),
		TimeLimit: r.TimeLimit,
	}
}

// GormScoreEntry 计分流水表，只追加
type GormScoreEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Player    string    `gorm:"index;not null"`
	Points    int       `gorm:"not null"`
	RoomID    string    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (GormScoreEntry) TableName() string { return "score_entries" }

// GormGameRecord 游戏记录表
type GormGameRecord struct {
	ID         uint          `gorm:"primaryKey"`
	RoomID     string        `gorm:"index;not null"`
	Rounds     int           `gorm:"not null"`
	Scores     []PlayerScore `gorm:"type:jsonb;serializer:json"`
	FinishedAt time.Time     `gorm:"index"`
}

func (GormGameRecord) TableName() string { return "game_records" }
