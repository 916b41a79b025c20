package impression

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
)

// Event is the slice of an inbound message the plugin needs.
type Event interface {
	SenderID() string
	SenderName() string
	// GroupID is empty for direct messages.
	GroupID() string
	// Timestamp is the message time in unix seconds.
	Timestamp() int64
}

// ProviderRequest is the outgoing LLM request as seen by the before-request hook.
type ProviderRequest struct {
	SystemPrompt string
	Prompt       string
}

// LLMResponse is the model reply as seen by the after-response hook.
type LLMResponse struct {
	CompletionText string
}

// Change describes one merged update of a user's impression fields.
type Change struct {
	UserID  string
	GroupID string
	Source  string
	Fields  map[string]string
}

const (
	SourceLLM     = "llm"
	SourceCommand = "command"
)

// Journal receives every applied change. Implementations must be safe for
// concurrent use.
type Journal interface {
	Record(ctx context.Context, c Change) error
}

// Plugin wires the store, the enricher and the prompt protocol into the
// host's request/response hooks.
type Plugin struct {
	store    Store
	enricher *Enricher
	journal  Journal
	now      func() time.Time
}

type Option func(*Plugin)

func WithJournal(j Journal) Option { return func(p *Plugin) { p.journal = j } }

func WithClock(now func() time.Time) Option { return func(p *Plugin) { p.now = now } }

func NewPlugin(store Store, enricher *Enricher, opts ...Option) *Plugin {
	p := &Plugin{store: store, enricher: enricher, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if p.enricher == nil {
		p.enricher = &Enricher{}
	}
	return p
}

func (p *Plugin) Store() Store { return p.store }

// OnLLMRequest records first contact, refreshes group membership and
// prepends the user's memory to the system prompt. Failures are logged and
// leave req untouched where the data is missing.
func (p *Plugin) OnLLMRequest(ctx context.Context, ev Event, req *ProviderRequest) {
	userID := ev.SenderID()
	user, ok, err := p.store.GetUser(ctx, userID)
	if err != nil {
		log.Error("failed to load user record", "user", userID, "err", err)
		return
	}
	if !ok {
		user = p.enricher.UserRecord(ctx, ev, userID, true)
		if err := p.store.PutUser(ctx, user); err != nil {
			log.Error("failed to save new user record", "user", userID, "err", err)
		} else {
			log.Info("recorded new user", "user", userID)
		}
	}

	var member GroupMemberRecord
	if ev.GroupID() != "" {
		member = p.enricher.GroupMember(ctx, ev, userID)
		if err := p.store.PutMember(ctx, member); err != nil {
			log.Error("failed to save group member", "group", member.GroupID, "user", userID, "err", err)
		}
	}

	block := BuildBlock(user, member, p.now())
	req.SystemPrompt = InjectSystemPrompt(block, req.SystemPrompt)
	log.Debug("injected user memory into system prompt", "user", userID)
}

// OnLLMResponse strips the status block from the reply and merges its
// fields into the sender's record.
func (p *Plugin) OnLLMResponse(ctx context.Context, ev Event, resp *LLMResponse) {
	cleaned, fields := ParseStatusBlock(resp.CompletionText)
	resp.CompletionText = cleaned
	if len(fields) == 0 {
		return
	}
	userID := ev.SenderID()
	var changed []string
	err := p.store.UpdateUser(ctx, userID, func(rec *UserRecord) error {
		changed = ApplyFields(rec, fields)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("status block for unknown user ignored", "user", userID)
			return
		}
		log.Error("failed to merge status block", "user", userID, "err", err)
		return
	}
	if len(changed) == 0 {
		return
	}
	log.Info("impression updated", "user", userID, "fields", changed)
	p.record(ctx, Change{
		UserID:  userID,
		GroupID: ev.GroupID(),
		Source:  SourceLLM,
		Fields:  lo.PickByKeys(fields, changed),
	})
}

func (p *Plugin) record(ctx context.Context, c Change) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(ctx, c); err != nil {
		log.Error("failed to journal impression change", "user", c.UserID, "err", err)
	}
}

// GroupMembersTool is the name the LLM calls GroupMembersJSON by.
const GroupMembersTool = "get_group_members"

type memberView struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role,omitempty"`
	Title        string `json:"title,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Age          int    `json:"age,omitempty"`
	Address      string `json:"address,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Impression   string `json:"impression,omitempty"`
	Attitude     string `json:"attitude,omitempty"`
	Interest     string `json:"interest,omitempty"`
}

type membersPayload struct {
	GroupID string       `json:"group_id"`
	Count   int          `json:"count"`
	Members []memberView `json:"members"`
}

// GroupMembersJSON describes every recorded member of the event's group for
// the model's own reasoning. Errors are reported as {"error": ...}.
func (p *Plugin) GroupMembersJSON(ctx context.Context, ev Event) string {
	groupID := ev.GroupID()
	if groupID == "" {
		return errorJSON("not in a group chat")
	}
	members, err := p.store.ListMembers(ctx, groupID)
	if err != nil {
		log.Error("failed to list group members", "group", groupID, "err", err)
		return errorJSON("failed to load group members")
	}
	if len(members) == 0 {
		return errorJSON("no members recorded for this group")
	}
	now := p.now()
	views := lo.Map(members, func(m GroupMemberRecord, _ int) memberView {
		v := memberView{UserID: m.UserID, DisplayName: m.DisplayName, Role: m.Role}
		if m.Title != NoTitle {
			v.Title = m.Title
		}
		u, ok, err := p.store.GetUser(ctx, m.UserID)
		if err != nil || !ok {
			return v
		}
		v.Nickname = u.Nickname
		if u.Gender != GenderUnknown {
			v.Gender = u.Gender
		}
		v.Age = Age(u.Birthday, now)
		if v.Age < 0 {
			v.Age = 0
		}
		v.Address = u.Address
		v.Relationship = u.Relationship
		v.Impression = u.Impression
		v.Attitude = u.Attitude
		v.Interest = u.Interest
		return v
	})
	out, err := json.Marshal(membersPayload{GroupID: groupID, Count: len(views), Members: views})
	if err != nil {
		return errorJSON("failed to encode group members")
	}
	return string(out)
}

func errorJSON(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
