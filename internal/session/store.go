package session

import (
	"time"

	"scraper-console/internal/model"
)

const logTimeFormat = "15:04:05"

// Store folds telemetry into the three job streams.
type Store struct {
	now       func() time.Time
	retention int

	progress model.ProgressSnapshot
	logs     []model.LogEntry
	results  []model.ResultRecord
	index    map[int]int
}

func NewStore(now func() time.Time, retention int) *Store {
	if now == nil {
		now = time.Now
	}
	if retention < 0 {
		retention = 0
	}
	return &Store{now: now, retention: retention, index: make(map[int]int)}
}

func (s *Store) SetProgress(p model.ProgressSnapshot) {
	s.progress = p
}

func (s *Store) AppendLog(level model.LogLevel, message string) model.LogEntry {
	if level == "" {
		level = model.LevelInfo
	}
	entry := model.LogEntry{
		Timestamp: s.now().Format(logTimeFormat),
		Message:   message,
		Level:     level,
	}
	s.logs = append(s.logs, entry)
	if s.retention > 0 && len(s.logs) > s.retention {
		drop := len(s.logs) - s.retention
		s.logs = append(s.logs[:0:0], s.logs[drop:]...)
	}
	return entry
}

// UpsertResult appends a new id or replaces the earlier record in place.
// It reports whether the id was new.
func (s *Store) UpsertResult(rec model.ResultRecord) bool {
	if pos, ok := s.index[rec.ID]; ok {
		s.results[pos] = rec
		return false
	}
	s.index[rec.ID] = len(s.results)
	s.results = append(s.results, rec)
	return true
}

// Reset clears progress, logs and results.
func (s *Store) Reset() {
	s.progress = model.ProgressSnapshot{}
	s.logs = nil
	s.ClearResults()
}

func (s *Store) ClearResults() {
	s.results = nil
	s.index = make(map[int]int)
}

func (s *Store) Progress() model.ProgressSnapshot { return s.progress }

func (s *Store) Logs() []model.LogEntry {
	out := make([]model.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Store) Results() []model.ResultRecord {
	out := make([]model.ResultRecord, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Store) LogCount() int    { return len(s.logs) }
func (s *Store) ResultCount() int { return len(s.results) }
