// Package catalog loads round definitions for new games.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
)

// ErrNoRounds is returned when a source yields no usable round.
var ErrNoRounds = errors.New("catalog: no valid rounds")

// Catalog supplies the ordered rounds for a new game.
type Catalog interface {
	LoadRounds(ctx context.Context) ([]models.Round, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Sanitize trims every round, drops the ones that fail validation and
// returns ErrNoRounds if nothing is left.
func Sanitize(rounds []models.Round) ([]models.Round, error) {
	out := make([]models.Round, 0, len(rounds))
	for i, r := range rounds {
		r.Word = strings.TrimSpace(r.Word)
		images := make([]string, 0, len(r.Images))
		for _, img := range r.Images {
			if img = strings.TrimSpace(img); img != "" {
				images = append(images, img)
			}
		}
		r.Images = images

		if err := validate.Struct(r); err != nil {
			logger.Log.Warnf("Skipping round %d (%q): %v", i+1, r.Word, err)
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNoRounds
	}
	return out, nil
}

// Selector narrows another catalog: optional shuffle, then at most Limit rounds.
type Selector struct {
	Source  Catalog
	Limit   int // 0 keeps every round
	Shuffle bool
}

func (s Selector) LoadRounds(ctx context.Context) ([]models.Round, error) {
	rounds, err := s.Source.LoadRounds(ctx)
	if err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, ErrNoRounds
	}
	if s.Shuffle {
		rand.Shuffle(len(rounds), func(i, j int) { rounds[i], rounds[j] = rounds[j], rounds[i] })
	}
	if s.Limit > 0 && len(rounds) > s.Limit {
		rounds = rounds[:s.Limit]
	}
	return rounds, nil
}

// Static serves a fixed list; useful for tests and demos.
type Static []models.Round

func (s Static) LoadRounds(ctx context.Context) ([]models.Round, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Round, len(s))
	for i, r := range s {
		r.Images = append([]string(nil), r.Images...)
		out[i] = r
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("static catalog: %w", ErrNoRounds)
	}
	return out, nil
}
