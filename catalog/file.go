package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/models"
)

// FileCatalog reads rounds from an XML or YAML file on every load, so edits
// apply to the next game without a restart.
type FileCatalog struct {
	path string
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

type xmlRounds struct {
	XMLName xml.Name   `xml:"rounds"`
	Rounds  []xmlRound `xml:"round"`
}

type xmlRound struct {
	Word   string   `xml:"word"`
	Images []string `xml:"images>img"`
	Time   string   `xml:"time"`
}

type yamlRounds struct {
	Rounds []models.Round `yaml:"rounds"`
}

func (c *FileCatalog) LoadRounds(ctx context.Context) ([]models.Round, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read round catalog: %w", err)
	}

	var rounds []models.Round
	switch strings.ToLower(filepath.Ext(c.path)) {
	case ".xml":
		rounds, err = parseXML(data)
	case ".yaml", ".yml":
		rounds, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported round catalog format %q", c.path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return Sanitize(rounds)
}

func parseXML(data []byte) ([]models.Round, error) {
	var doc xmlRounds
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	rounds := make([]models.Round, 0, len(doc.Rounds))
	for i, r := range doc.Rounds {
		limit, err := strconv.Atoi(strings.TrimSpace(r.Time))
		if err != nil {
			logger.Log.Warnf("Skipping round %d: bad time %q", i+1, r.Time)
			continue
		}
		rounds = append(rounds, models.Round{Word: r.Word, Images: r.Images, TimeLimit: limit})
	}
	return rounds, nil
}

func parseYAML(data []byte) ([]models.Round, error) {
	var doc yamlRounds
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rounds, nil
}
