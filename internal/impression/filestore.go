package impression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type userFile map[string]UserRecord

type groupFile map[string]map[string]GroupMemberRecord

// FileStore keeps both dictionaries as whole-file JSON snapshots. Every
// operation is a full load-mutate-save cycle under one mutex.
type FileStore struct {
	usersPath  string
	groupsPath string
	mu         sync.Mutex
}

func NewFileStore(usersPath, groupsPath string) (*FileStore, error) {
	for _, p := range []string{usersPath, groupsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("ensure dir: %w", err)
		}
	}
	return &FileStore{usersPath: usersPath, groupsPath: groupsPath}, nil
}

func (s *FileStore) GetUser(_ context.Context, userID string) (UserRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.loadUsersUnlocked()
	rec, ok := users[userID]
	return rec, ok, nil
}

func (s *FileStore) PutUser(_ context.Context, rec UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.loadUsersUnlocked()
	users[rec.UserID] = rec
	return s.saveUnlocked(s.usersPath, users)
}

func (s *FileStore) UpdateUser(_ context.Context, userID string, fn func(*UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.loadUsersUnlocked()
	rec, ok := users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if err := fn(&rec); err != nil {
		return err
	}
	rec.UserID = userID
	users[userID] = rec
	return s.saveUnlocked(s.usersPath, users)
}

func (s *FileStore) ListUsers(_ context.Context) ([]UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.loadUsersUnlocked()
	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *FileStore) GetMember(_ context.Context, groupID, userID string) (GroupMemberRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.loadGroupsUnlocked()[groupID][userID]
	return rec, ok, nil
}

func (s *FileStore) PutMember(_ context.Context, rec GroupMemberRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.loadGroupsUnlocked()
	members, ok := groups[rec.GroupID]
	if !ok {
		members = make(map[string]GroupMemberRecord)
		groups[rec.GroupID] = members
	}
	members[rec.UserID] = rec
	return s.saveUnlocked(s.groupsPath, groups)
}

func (s *FileStore) ListMembers(_ context.Context, groupID string) ([]GroupMemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.loadGroupsUnlocked()[groupID]
	out := make([]GroupMemberRecord, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Backup copies both files into dir/<timestamp>/.
func (s *FileStore) Backup(_ context.Context, dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := filepath.Join(dir, time.Now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup dir: %w", err)
	}
	for _, p := range []string{s.usersPath, s.groupsPath} {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		if err := os.WriteFile(filepath.Join(dst, filepath.Base(p)), data, 0o644); err != nil {
			return "", fmt.Errorf("write backup: %w", err)
		}
	}
	return dst, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadUsersUnlocked() userFile {
	users := userFile{}
	if err := s.loadUnlocked(s.usersPath, &users); err != nil {
		log.Error("failed to load user info, starting empty", "path", s.usersPath, "err", err)
		return userFile{}
	}
	return users
}

func (s *FileStore) loadGroupsUnlocked() groupFile {
	groups := groupFile{}
	if err := s.loadUnlocked(s.groupsPath, &groups); err != nil {
		log.Error("failed to load group info, starting empty", "path", s.groupsPath, "err", err)
		return groupFile{}
	}
	return groups
}

// loadUnlocked treats a missing or empty file as an empty store.
func (s *FileStore) loadUnlocked(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *FileStore) saveUnlocked(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
