// persistence/xml_store.go
package persistence

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/picword/models"
)

// xmlDocument 分数文件结构
//
//	<scores>
//	  <entry player="ana" room="ROOM_1A2B3C" points="850" at="..."/>
//	  <game room="ROOM_1A2B3C" rounds="4" at="...">
//	    <player name="ana" score="850"/>
//	  </game>
//	</scores>
type xmlDocument struct {
	XMLName xml.Name    `xml:"scores"`
	Entries []xmlEntry  `xml:"entry"`
	Games   []xmlRecord `xml:"game"`
}

type xmlEntry struct {
	Player string    `xml:"player,attr"`
	Room   string    `xml:"room,attr"`
	Points int       `xml:"points,attr"`
	At     time.Time `xml:"at,attr"`
}

type xmlRecord struct {
	Room    string      `xml:"room,attr"`
	Rounds  int         `xml:"rounds,attr"`
	At      time.Time   `xml:"at,attr"`
	Players []xmlPlayer `xml:"player"`
}

type xmlPlayer struct {
	Name  string `xml:"name,attr"`
	Score int    `xml:"score,attr"`
}

// XMLStore keeps the ledger in a single XML file. Every write rewrites the
// file through a temp file and rename; it is meant for single-node setups.
type XMLStore struct {
	mu   sync.Mutex
	path string
	doc  xmlDocument
}

// NewXMLStore 打开分数文件，不存在时创建
func NewXMLStore(path string) (*XMLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("xml ledger path is required")
	}
	s := &XMLStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := xml.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return s, nil
}

// AppendScore 追加一条计分流水
func (s *XMLStore) AppendScore(ctx context.Context, entry models.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Entries = append(s.doc.Entries, xmlEntry{
		Player: entry.Player,
		Room:   entry.RoomID,
		Points: entry.Points,
		At:     entry.CreatedAt.UTC(),
	})
	if err := s.flushLocked(); err != nil {
		s.doc.Entries = s.doc.Entries[:len(s.doc.Entries)-1]
		return err
	}
	return nil
}

// SaveGameRecord 保存一局游戏的最终得分
func (s *XMLStore) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := xmlRecord{Room: record.RoomID, Rounds: record.Rounds, At: record.FinishedAt.UTC()}
	for _, ps := range record.Scores {
		rec.Players = append(rec.Players, xmlPlayer{Name: ps.Name, Score: ps.Score})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Games = append(s.doc.Games, rec)
	if err := s.flushLocked(); err != nil {
		s.doc.Games = s.doc.Games[:len(s.doc.Games)-1]
		return err
	}
	return nil
}

// PlayerTotals 按累计得分排序的排行榜
func (s *XMLStore) PlayerTotals(ctx context.Context, limit int) ([]models.PlayerTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	byPlayer := make(map[string]*models.PlayerTotal)
	for _, e := range s.doc.Entries {
		t, ok := byPlayer[e.Player]
		if !ok {
			t = &models.PlayerTotal{Player: e.Player}
			byPlayer[e.Player] = t
		}
		t.Points += int64(e.Points)
		t.Wins++
	}
	s.mu.Unlock()

	totals := make([]models.PlayerTotal, 0, len(byPlayer))
	for _, t := range byPlayer {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Points != totals[j].Points {
			return totals[i].Points > totals[j].Points
		}
		return totals[i].Player < totals[j].Player
	})
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// Close flushes the document one last time.
func (s *XMLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *XMLStore) flushLocked() error {
	data, err := xml.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(xml.Header), data...), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
