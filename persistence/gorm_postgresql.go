// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/picword/catalog"
	"github.com/wfunc/picword/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现，同时充当计分账本和数据库题库
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second, // 慢SQL阈值
			LogLevel:      logger.Warn, // 日志级别
			Colorful:      false,       // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormPostgreSQL, error) {
	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRound{},
		&models.GormScoreEntry{},
		&models.GormGameRecord{},
	)
}

// AppendScore 追加计分流水
func (p *GormPostgreSQL) AppendScore(ctx context.Context, entry models.ScoreEntry) error {
	row := models.GormScoreEntry{
		Player:    entry.Player,
		Points:    entry.Points,
		RoomID:    entry.RoomID,
		CreatedAt: entry.CreatedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	row := models.GormGameRecord{
		RoomID:     record.RoomID,
		Rounds:     record.Rounds,
		Scores:     record.Scores,
		FinishedAt: record.FinishedAt,
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

// PlayerTotals 排行榜
func (p *GormPostgreSQL) PlayerTotals(ctx context.Context, limit int) ([]models.PlayerTotal, error) {
	if limit <= 0 {
		limit = 10
	}
	var totals []models.PlayerTotal
	err := p.db.WithContext(ctx).
		Model(&models.GormScoreEntry{}).
		Select("player, SUM(points) AS points, COUNT(*) AS wins").
		Group("player").
		Order("points DESC, player ASC").
		Limit(limit).
		Scan(&totals).Error
	return totals, err
}

// LoadRounds 从 rounds 表按顺序读取启用的题目
func (p *GormPostgreSQL) LoadRounds(ctx context.Context) ([]models.Round, error) {
	var rows []models.GormRound
	if err := p.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("position ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load rounds: %w", err)
	}

	rounds := make([]models.Round, 0, len(rows))
	for _, row := range rows {
		rounds = append(rounds, row.ToRound())
	}
	return catalog.Sanitize(rounds)
}

// SeedRounds 题库为空时写入初始题目
func (p *GormPostgreSQL) SeedRounds(ctx context.Context, rounds []models.Round) (int, error) {
	seeded := 0
	err := p.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&models.GormRound{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for i, r := range rounds {
			row := models.GormRound{
				Word:      r.Word,
				Images:    r.Images,
				TimeLimit: r.TimeLimit,
				Position:  i,
				Enabled:   true,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
			seeded++
		}
		return nil
	})
	return seeded, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}
