// persistence/sql_store.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/picword/models"

	_ "github.com/lib/pq"  // PostgreSQL 驱动
	_ "modernc.org/sqlite" // SQLite 驱动
)

const queryTimeout = 5 * time.Second

// SQLStore 基于 database/sql 的计分账本，支持 PostgreSQL 和 SQLite
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*SQLStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	return openSQL("postgres", connStr, func(db *sql.DB) {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	})
}

// NewSQLite opens (or creates) a SQLite ledger file. ":memory:" is accepted.
func NewSQLite(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return openSQL("sqlite", dsn, func(db *sql.DB) {
		// 单连接：内存库每个连接都是独立的数据库，文件库也避免写锁竞争
		db.SetMaxOpenConns(1)
	})
}

func openSQL(driver, dsn string, tune func(*sql.DB)) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	tune(db)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.initTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init %s tables: %w", driver, err)
	}
	return s, nil
}

// initTables 初始化数据库表结构
func (s *SQLStore) initTables(ctx context.Context) error {
	var stmts []string
	if s.driver == "postgres" {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS score_entries (
				id SERIAL PRIMARY KEY,
				player VARCHAR(255) NOT NULL,
				points INTEGER NOT NULL,
				room_id VARCHAR(64) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS game_records (
				id SERIAL PRIMARY KEY,
				room_id VARCHAR(64) NOT NULL,
				rounds INTEGER NOT NULL,
				scores JSONB NOT NULL,
				finished_at TIMESTAMPTZ NOT NULL
			)`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS score_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				player TEXT NOT NULL,
				points INTEGER NOT NULL,
				room_id TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS game_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				room_id TEXT NOT NULL,
				rounds INTEGER NOT NULL,
				scores TEXT NOT NULL,
				finished_at TIMESTAMP NOT NULL
			)`,
		}
	}
	stmts = append(stmts,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_player ON score_entries(player)`,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_room_id ON score_entries(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_records_room_id ON game_records(room_id)`,
	)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AppendScore 追加一条计分流水
func (s *SQLStore) AppendScore(ctx context.Context, entry models.ScoreEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := s.rebind(`INSERT INTO score_entries (player, points, room_id, created_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, entry.Player, entry.Points, entry.RoomID, entry.CreatedAt.UTC())
	return err
}

// SaveGameRecord 保存一局游戏的最终得分
func (s *SQLStore) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`INSERT INTO game_records (room_id, rounds, scores, finished_at) VALUES (?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, record.RoomID, record.Rounds, string(scores), record.FinishedAt.UTC())
	return err
}

// PlayerTotals 按累计得分排序的排行榜
func (s *SQLStore) PlayerTotals(ctx context.Context, limit int) ([]models.PlayerTotal, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`
		SELECT player, SUM(points) AS total, COUNT(*) AS wins
		FROM score_entries
		GROUP BY player
		ORDER BY total DESC, player ASC
		LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []models.PlayerTotal
	for rows.Next() {
		var t models.PlayerTotal
		if err := rows.Scan(&t.Player, &t.Points, &t.Wins); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// GameRecords returns the stored records for one room, oldest first.
func (s *SQLStore) GameRecords(ctx context.Context, roomID string) ([]models.GameRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := s.rebind(`SELECT rounds, scores FROM game_records WHERE room_id = ? ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var (
			rec    = models.GameRecord{RoomID: roomID}
			scores []byte
		)
		if err := rows.Scan(&rec.Rounds, &scores); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(scores, &rec.Scores); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return records, nil
}

// Close 关闭数据库连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}
