// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/picword/models"
)

// ScoreStore 计分流水的持久化接口，只追加
type ScoreStore interface {
	AppendScore(ctx context.Context, entry models.ScoreEntry) error
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
	PlayerTotals(ctx context.Context, limit int) ([]models.PlayerTotal, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// NopStore discards everything. Used when the ledger backend is "none".
type NopStore struct{}

func (NopStore) AppendScore(context.Context, models.ScoreEntry) error    { return nil }
func (NopStore) SaveGameRecord(context.Context, models.GameRecord) error { return nil }
func (NopStore) PlayerTotals(context.Context, int) ([]models.PlayerTotal, error) {
	return nil, nil
}
func (NopStore) Close() error { return nil }
