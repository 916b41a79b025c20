package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"azusa-imp/internal/impression"
)

// FileJournal appends entries as JSON lines.
type FileJournal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileJournal(path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to init journal file: %w", err)
	}
	_ = f.Close()
	return &FileJournal{path: path, now: time.Now}, nil
}

// Record implements impression.Journal.
func (j *FileJournal) Record(_ context.Context, c impression.Change) error {
	return j.AppendEntry(Entry{
		ID:        uuid.NewString(),
		Timestamp: j.now().UTC(),
		UserID:    c.UserID,
		GroupID:   c.GroupID,
		Source:    c.Source,
		Fields:    c.Fields,
	})
}

func (j *FileJournal) AppendEntry(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			log.Warn("failed to close journal", "err", err)
		}
	}(f)
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("encode append: %w", err)
	}
	return nil
}

// LoadEntries skips lines that fail to decode.
func (j *FileJournal) LoadEntries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) { _ = f.Close() }(f)
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 10*1024*1024)
	var entries []Entry
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return entries, nil
}

// EntriesFor returns the journal of one user.
func (j *FileJournal) EntriesFor(userID string) ([]Entry, error) {
	all, err := j.LoadEntries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
