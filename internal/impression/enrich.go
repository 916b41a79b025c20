package impression

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto"
)

// StrangerInfo is the platform's public profile of a user. Birthday parts are
// zero when the platform does not expose them.
type StrangerInfo struct {
	Nickname      string
	Sex           string
	BirthdayYear  int
	BirthdayMonth int
	BirthdayDay   int
}

// MemberInfo is the platform's view of a user inside a group.
type MemberInfo struct {
	Card     string
	Nickname string
	Role     string
	Title    string
}

// Adapter talks to the chat platform.
type Adapter interface {
	StrangerInfo(ctx context.Context, userID string) (StrangerInfo, error)
	GroupMemberInfo(ctx context.Context, groupID, userID string) (MemberInfo, error)
}

// Enricher builds records from events plus whatever the adapter can tell.
// A nil adapter is allowed; records then carry event data only.
type Enricher struct {
	adapter Adapter
	cache   *ristretto.Cache
	ttl     time.Duration
}

func NewEnricher(adapter Adapter, cacheTTL time.Duration) (*Enricher, error) {
	e := &Enricher{adapter: adapter, ttl: cacheTTL}
	if adapter == nil || cacheTTL <= 0 {
		return e, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init enrich cache: %w", err)
	}
	e.cache = cache
	return e, nil
}

// UserRecord returns a record for userID seeded with the default impression.
// With refresh set, nickname comes from the event and gender/birthday from
// the adapter. Adapter errors are logged and never returned.
func (e *Enricher) UserRecord(ctx context.Context, ev Event, userID string, refresh bool) UserRecord {
	rec := UserRecord{
		UserID:    userID,
		Timestamp: ev.Timestamp(),
	}
	if refresh {
		rec.Nickname = ev.SenderName()
		if e.adapter != nil {
			info, err := e.strangerInfo(ctx, userID)
			if err != nil {
				log.Error("failed to fetch stranger info", "user", userID, "err", err)
			} else {
				rec.Gender = GenderText(info.Sex)
				rec.Birthday = FormatBirthday(info)
				if rec.Nickname == "" {
					rec.Nickname = info.Nickname
				}
				log.Info("fetched basic user info", "user", userID)
			}
		}
	}
	rec.ApplyDefaultImpression(ev.GroupID() != "")
	return rec
}

// GroupMember returns the membership record of userID in the event's group.
func (e *Enricher) GroupMember(ctx context.Context, ev Event, userID string) GroupMemberRecord {
	rec := GroupMemberRecord{
		GroupID:   ev.GroupID(),
		UserID:    userID,
		Timestamp: ev.Timestamp(),
	}
	if e.adapter == nil || rec.GroupID == "" {
		return rec
	}
	info, err := e.adapter.GroupMemberInfo(ctx, rec.GroupID, userID)
	if err != nil {
		log.Error("failed to fetch group member info", "group", rec.GroupID, "user", userID, "err", err)
		return rec
	}
	rec.Role = RoleText(info.Role)
	rec.Title = info.Title
	if rec.Title == "" {
		rec.Title = NoTitle
	}
	rec.DisplayName = info.Card
	if rec.DisplayName == "" {
		rec.DisplayName = info.Nickname
	}
	return rec
}

func (e *Enricher) strangerInfo(ctx context.Context, userID string) (StrangerInfo, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(userID); ok {
			if info, ok := v.(StrangerInfo); ok {
				return info, nil
			}
		}
	}
	info, err := e.adapter.StrangerInfo(ctx, userID)
	if err != nil {
		return StrangerInfo{}, err
	}
	if e.cache != nil {
		e.cache.SetWithTTL(userID, info, 1, e.ttl)
	}
	return info, nil
}

// FormatBirthday needs all three parts, otherwise the unknown sentinel.
func FormatBirthday(info StrangerInfo) string {
	if info.BirthdayYear == 0 || info.BirthdayMonth == 0 || info.BirthdayDay == 0 {
		return UnknownBirthday
	}
	return fmt.Sprintf("%d-%d-%d", info.BirthdayYear, info.BirthdayMonth, info.BirthdayDay)
}

// Close releases the cache goroutines.
func (e *Enricher) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}
