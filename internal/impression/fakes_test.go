package impression

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEvent struct {
	sender string
	name   string
	group  string
	ts     int64
}

func (e fakeEvent) SenderID() string   { return e.sender }
func (e fakeEvent) SenderName() string { return e.name }
func (e fakeEvent) GroupID() string    { return e.group }
func (e fakeEvent) Timestamp() int64   { return e.ts }

type fakeAdapter struct {
	stranger    StrangerInfo
	member      MemberInfo
	strangerErr error
	memberErr   error
	calls       int
}

func (a *fakeAdapter) StrangerInfo(_ context.Context, _ string) (StrangerInfo, error) {
	a.calls++
	return a.stranger, a.strangerErr
}

func (a *fakeAdapter) GroupMemberInfo(_ context.Context, _, _ string) (MemberInfo, error) {
	return a.member, a.memberErr
}

type memJournal struct {
	mu      sync.Mutex
	changes []Change
}

func (j *memJournal) Record(_ context.Context, c Change) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.changes = append(j.changes, c)
	return nil
}

var errAdapterDown = errors.New("adapter down")

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "user_info.json"), filepath.Join(dir, "group_info.json"))
	require.NoError(t, err)
	return s
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}
