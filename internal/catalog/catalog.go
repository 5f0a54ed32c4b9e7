package catalog

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Presenter is one half of a show's duo.
type Presenter struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Voice string `yaml:"voice"`
	Style string `yaml:"style"`
}

// Schedule is a show's recurring weekly window. Times are UTC.
type Schedule struct {
	Days          []string `yaml:"days"`  // "Mon","Tue",...
	Start         string   `yaml:"start"` // "HH:MM"
	DurationHours int      `yaml:"duration_hours"`
}

// CommentaryPolicy bounds the length of generated commentary scripts.
type CommentaryPolicy struct {
	MinWords int `yaml:"min_words"`
	MaxWords int `yaml:"max_words"`
}

// Override carries seasonal or holiday adjustments applied on top of a base
// show config. Merge rules: array fields are unioned, scalar fields replace
// when set, nested fields merge recursively.
type Override struct {
	Topics         []string          `yaml:"topics"`
	Tone           []string          `yaml:"tone"`
	ToneAdjustment string            `yaml:"tone_adjustment"`
	Commentary     *CommentaryPolicy `yaml:"commentary"`
}

// ShowConfig is the full definition of a programming block.
type ShowConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	Schedule Schedule `yaml:"schedule"`

	MusicFraction float64 `yaml:"music_fraction"`
	TalkFraction  float64 `yaml:"talk_fraction"`

	Presenters     []Presenter `yaml:"presenters"`
	DuoProbability float64     `yaml:"duo_probability"`

	Tone          []string         `yaml:"tone"`
	TopicsPrimary []string         `yaml:"topics"`
	TopicsBanned  []string         `yaml:"banned_topics"`
	Commentary    CommentaryPolicy `yaml:"commentary"`

	HandoverSeconds int `yaml:"handover_seconds"`

	Seasonal map[string]Override `yaml:"seasonal"`
	Holiday  map[string]Override `yaml:"holiday"`
}

// StartMinute returns the show's start as minute-of-day, or -1 when the
// configured time is malformed.
func (s *Schedule) StartMinute() int {
	parts := strings.SplitN(s.Start, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return -1
	}
	return h*60 + m
}

// EndMinute returns the minute-of-day the show ends, wrapped past midnight.
func (s *Schedule) EndMinute() int {
	start := s.StartMinute()
	if start < 0 {
		return -1
	}
	return (start + s.DurationHours*60) % (24 * 60)
}

// HasDay reports whether the schedule includes the given weekday.
func (s *Schedule) HasDay(d time.Weekday) bool {
	want := d.String()[:3]
	for _, day := range s.Days {
		if strings.EqualFold(strings.TrimSpace(day), want) {
			return true
		}
	}
	return false
}

// Duration returns the show's length.
func (s *Schedule) Duration() time.Duration {
	return time.Duration(s.DurationHours) * time.Hour
}

type catalogFile struct {
	Shows []ShowConfig `yaml:"shows"`
}

// Catalog loads show definitions from a YAML file and caches them with an
// explicit TTL. It is constructed once and passed to dependents; there is no
// ambient global. The control loop is single-worker so no locking is needed.
type Catalog struct {
	path     string
	ttl      time.Duration
	loadedAt time.Time
	shows    []ShowConfig
}

const DefaultTTL = 5 * time.Minute

// New creates a catalog for the given file. The first load happens on the
// first Shows() call (or via ForceReload).
func New(path string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{path: path, ttl: ttl}
}

// Shows returns the cached show list, reloading when the TTL has expired.
// A failed reload keeps serving the previous cache rather than going dark.
func (c *Catalog) Shows(now time.Time) ([]ShowConfig, error) {
	if c.shows != nil && now.Sub(c.loadedAt) < c.ttl {
		return c.shows, nil
	}
	if err := c.reload(now); err != nil {
		if c.shows != nil {
			log.Printf("⚠️ Catalog reload failed, serving stale cache: %v", err)
			return c.shows, nil
		}
		return nil, err
	}
	return c.shows, nil
}

// ForceReload drops the cache and reloads immediately.
func (c *Catalog) ForceReload(now time.Time) error {
	return c.reload(now)
}

// Lookup finds a show by id in the cached set.
func (c *Catalog) Lookup(now time.Time, id string) (*ShowConfig, error) {
	shows, err := c.Shows(now)
	if err != nil {
		return nil, err
	}
	for i := range shows {
		if shows[i].ID == id {
			return &shows[i], nil
		}
	}
	return nil, fmt.Errorf("show %q not found in catalog", id)
}

func (c *Catalog) reload(now time.Time) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	for i := range file.Shows {
		if err := file.Shows[i].Validate(); err != nil {
			return fmt.Errorf("show %q: %w", file.Shows[i].ID, err)
		}
	}

	c.shows = file.Shows
	c.loadedAt = now
	log.Printf("📅 Catalog Loaded: %d shows from %s", len(file.Shows), c.path)
	return nil
}
