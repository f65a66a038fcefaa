package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
)

// The catalog is challenge content: read-only input to the progress pipeline.
// Definitions live in YAML files (one challenge per file) and are loaded once
// at startup; the pipeline never mutates them.

const defaultXpReward = 50

var validCategories = map[string]bool{
	"status":       true,
	"log":          true,
	"event":        true,
	"metrics":      true,
	"rbac":         true,
	"connectivity": true,
}

type Objective struct {
	Key          string `yaml:"key" json:"key"`
	Title        string `yaml:"title" json:"title"`
	Description  string `yaml:"description" json:"description"`
	Category     string `yaml:"category" json:"category"`
	DisplayOrder int    `yaml:"displayOrder" json:"display_order"`
}

type Challenge struct {
	Slug        string      `yaml:"slug" json:"slug"`
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description" json:"description"`
	XpReward    int         `yaml:"xpReward" json:"xp_reward"`
	Demo        bool        `yaml:"demo" json:"demo"`
	Objectives  []Objective `yaml:"objectives" json:"objectives"`
}

func (ch *Challenge) ObjectiveKeys() []string {
	keys := make([]string, 0, len(ch.Objectives))
	for _, o := range ch.Objectives {
		keys = append(keys, o.Key)
	}
	return keys
}

type Catalog struct {
	log        *logger.Logger
	challenges map[string]*Challenge
	demo       *Challenge
}

func Load(dir string, log *logger.Logger) (*Catalog, error) {
	catalogLog := log.With("component", "Catalog")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir %q: %w", dir, err)
	}

	cat := &Catalog{log: catalogLog, challenges: make(map[string]*Challenge)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read challenge file %q: %w", entry.Name(), err)
		}
		var ch Challenge
		if err := yaml.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("parse challenge file %q: %w", entry.Name(), err)
		}
		if err := cat.add(&ch); err != nil {
			return nil, fmt.Errorf("challenge file %q: %w", entry.Name(), err)
		}
	}

	catalogLog.Info("Challenge catalog loaded", "challenges", len(cat.challenges), "hasDemo", cat.demo != nil)
	return cat, nil
}

func (c *Catalog) add(ch *Challenge) error {
	if strings.TrimSpace(ch.Slug) == "" {
		return fmt.Errorf("missing slug")
	}
	if _, exists := c.challenges[ch.Slug]; exists {
		return fmt.Errorf("duplicate challenge slug %q", ch.Slug)
	}
	if len(ch.Objectives) == 0 {
		return fmt.Errorf("challenge %q has no objectives", ch.Slug)
	}
	seen := make(map[string]bool, len(ch.Objectives))
	for _, o := range ch.Objectives {
		if strings.TrimSpace(o.Key) == "" {
			return fmt.Errorf("challenge %q has an objective with no key", ch.Slug)
		}
		if seen[o.Key] {
			return fmt.Errorf("challenge %q has duplicate objective key %q", ch.Slug, o.Key)
		}
		seen[o.Key] = true
		if o.Category != "" && !validCategories[o.Category] {
			return fmt.Errorf("challenge %q objective %q has unknown category %q", ch.Slug, o.Key, o.Category)
		}
	}
	sort.SliceStable(ch.Objectives, func(i, j int) bool {
		return ch.Objectives[i].DisplayOrder < ch.Objectives[j].DisplayOrder
	})
	if ch.XpReward <= 0 {
		ch.XpReward = defaultXpReward
	}
	if ch.Demo {
		if c.demo != nil {
			return fmt.Errorf("more than one demo challenge (%q and %q)", c.demo.Slug, ch.Slug)
		}
		c.demo = ch
	}
	c.challenges[ch.Slug] = ch
	return nil
}

// Get returns the challenge for slug, or false if none is defined.
func (c *Catalog) Get(slug string) (*Challenge, bool) {
	ch, ok := c.challenges[slug]
	return ch, ok
}

// Demo returns the single challenge flagged as the anonymous trial, if any.
func (c *Catalog) Demo() (*Challenge, bool) {
	if c.demo == nil {
		return nil, false
	}
	return c.demo, true
}

func (c *Catalog) Len() int { return len(c.challenges) }
