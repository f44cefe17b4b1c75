// services/score_service.go
package services

import (
	"context"
	"fmt"

	"github.com/wfunc/picword/models"
	"github.com/wfunc/picword/persistence"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type ScoreService struct {
	store persistence.ScoreStore
}

func NewScoreService(store persistence.ScoreStore) *ScoreService {
	return &ScoreService{store: store}
}

// Leaderboard 获取累计得分排行榜，limit 超出范围时取默认值或上限
func (s *ScoreService) Leaderboard(ctx context.Context, limit int) ([]models.PlayerTotal, error) {
	switch {
	case limit <= 0:
		limit = defaultLeaderboardSize
	case limit > maxLeaderboardSize:
		limit = maxLeaderboardSize
	}

	totals, err := s.store.PlayerTotals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if totals == nil {
		totals = []models.PlayerTotal{}
	}
	return totals, nil
}

// PlayerTotal 查询单个玩家的累计得分，没有记录时返回 persistence.ErrRecordNotFound
func (s *ScoreService) PlayerTotal(ctx context.Context, player string) (models.PlayerTotal, error) {
	totals, err := s.store.PlayerTotals(ctx, maxLeaderboardSize)
	if err != nil {
		return models.PlayerTotal{}, err
	}
	for _, t := range totals {
		if t.Player == player {
			return t, nil
		}
	}
	return models.PlayerTotal{}, persistence.ErrRecordNotFound
}
