package auth

import (
	"errors"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// ErrSuperAdmin is returned when removing the configured super admin.
var ErrSuperAdmin = errors.New("the super admin cannot be removed")

// Admin is a user allowed to run elevated impression commands.
type Admin struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Repository interface {
	LoadAll() ([]Admin, error)
	Upsert(admin Admin) error
	Remove(userID int64) error
}

type Service struct {
	mu     sync.RWMutex
	repo   Repository
	super  int64
	admins map[int64]Admin
}

// NewWithRepo preloads admins from repo and merges the env-configured IDs.
// The first initial ID is treated as the super admin.
func NewWithRepo(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, admins: make(map[int64]Admin)}
	if repo != nil {
		admins, err := repo.LoadAll()
		if err != nil {
			log.Warn("failed to load admins", "err", err)
		}
		for _, a := range admins {
			s.admins[a.ID] = a
		}
	}
	for _, id := range initial {
		if _, ok := s.admins[id]; !ok {
			s.admins[id] = Admin{ID: id}
		}
	}
	if len(initial) > 0 {
		s.super = initial[0]
	}
	return s, nil
}

func (s *Service) IsAdmin(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok
}

func (s *Service) IsSuperAdmin(userID int64) bool {
	return s.super != 0 && s.super == userID
}

func (s *Service) Upsert(admin Admin) error {
	s.mu.Lock()
	s.admins[admin.ID] = admin
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(admin)
	}
	return nil
}

func (s *Service) Remove(userID int64) error {
	if s.IsSuperAdmin(userID) {
		return ErrSuperAdmin
	}
	s.mu.Lock()
	delete(s.admins, userID)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

// List returns admins ordered by ID.
func (s *Service) List() []Admin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.admins)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
