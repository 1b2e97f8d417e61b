package trace

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prune cadence: at most every pruneEvery saves or pruneInterval, whichever
// comes first.
const (
	pruneEvery    = 50
	pruneInterval = 60 * time.Second
)

// SinkConfig controls the session directory and its retention.
type SinkConfig struct {
	Dir        string
	MaxAgeDays int
	MaxCount   int
	Location   *time.Location
}

// Sink owns the sessions directory. Filenames embed a timestamp and an 8-hex
// id, so concurrent writers never conflict; pruning is serialized by a mutex
// and may race with a concurrent save harmlessly (prunes target older files
// by name sort).
type Sink struct {
	dir        string
	maxAgeDays int
	maxCount   int
	location   *time.Location
	logger     *zap.Logger

	mu        sync.Mutex
	saves     int
	lastPrune time.Time
}

// NewSink creates the sessions directory if needed.
func NewSink(cfg SinkConfig, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Sink{
		dir:        cfg.Dir,
		maxAgeDays: cfg.MaxAgeDays,
		maxCount:   cfg.MaxCount,
		location:   loc,
		logger:     logger,
		lastPrune:  time.Now(),
	}, nil
}

// Dir returns the sessions directory path.
func (s *Sink) Dir() string { return s.dir }

func (s *Sink) afterSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saves < pruneEvery && time.Since(s.lastPrune) < pruneInterval {
		return
	}
	s.saves = 0
	s.lastPrune = time.Now()
	s.pruneLocked()
}

// Prune applies the retention policy immediately (exposed for tests and the
// shutdown path).
func (s *Sink) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

func (s *Sink) pruneLocked() {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		s.logger.Warn("Session prune glob failed", zap.Error(err))
		return
	}
	sort.Strings(files)

	removed := 0
	if s.maxCount > 0 && len(files) > s.maxCount {
		for _, f := range files[:len(files)-s.maxCount] {
			if err := os.Remove(f); err == nil {
				removed++
			}
		}
		files = files[len(files)-s.maxCount:]
	}

	if s.maxAgeDays > 0 {
		cutoff := time.Now().Add(-time.Duration(s.maxAgeDays) * 24 * time.Hour)
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(f); err == nil {
					removed++
				}
			}
		}
	}

	if removed > 0 {
		s.logger.Info("Pruned session files", zap.Int("removed", removed))
	}
}
