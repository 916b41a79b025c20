package impression

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlugin(t *testing.T, adapter Adapter) (*Plugin, *FileStore, *memJournal) {
	t.Helper()
	s := newTestFileStore(t)
	e, err := NewEnricher(adapter, 0)
	require.NoError(t, err)
	j := &memJournal{}
	return NewPlugin(s, e, WithJournal(j), WithClock(fixedClock(2026, time.October, 18))), s, j
}

func TestOnLLMRequest_FirstContactWithFailingAdapter(t *testing.T) {
	p, s, _ := newTestPlugin(t, &fakeAdapter{strangerErr: errAdapterDown})
	ctx := context.Background()
	ev := fakeEvent{sender: "7", name: "Kiki", ts: 1700000000}

	req := &ProviderRequest{SystemPrompt: "You are Azusa."}
	p.OnLLMRequest(ctx, ev, req)

	rec, ok, err := s.GetUser(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), rec.Timestamp)
	assert.Equal(t, DefaultRelationship, rec.Relationship)
	assert.Equal(t, DefaultImpression, rec.Impression)
	assert.Equal(t, DefaultAttitude, rec.Attitude)

	assert.True(t, strings.HasPrefix(req.SystemPrompt, "Current user info: user id: 7, nickname: Kiki"), req.SystemPrompt)
	assert.True(t, strings.HasSuffix(req.SystemPrompt, StatusInstruction+"\n\nYou are Azusa."))
}

func TestOnLLMRequest_ExistingUserNotOverwritten(t *testing.T) {
	p, s, _ := newTestPlugin(t, &fakeAdapter{})
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, UserRecord{UserID: "7", Nickname: "Kiki", Attitude: "warm"}))

	req := &ProviderRequest{}
	p.OnLLMRequest(ctx, fakeEvent{sender: "7", name: "Other"}, req)

	rec, _, _ := s.GetUser(ctx, "7")
	assert.Equal(t, "Kiki", rec.Nickname)
	assert.Equal(t, "warm", rec.Attitude)
	assert.Contains(t, req.SystemPrompt, "your attitude toward the user: warm.")
}

func TestOnLLMRequest_GroupRefreshesMember(t *testing.T) {
	a := &fakeAdapter{member: MemberInfo{Card: "K", Role: "owner", Title: "boss"}}
	p, s, _ := newTestPlugin(t, a)
	ctx := context.Background()
	ev := fakeEvent{sender: "7", name: "Kiki", group: "g1", ts: 1}

	req := &ProviderRequest{}
	p.OnLLMRequest(ctx, ev, req)
	assert.Contains(t, req.SystemPrompt, "group nickname: K, group role: owner, group title: boss")

	rec, _, _ := s.GetUser(ctx, "7")
	assert.Equal(t, DefaultGroupRelationship, rec.Relationship)

	a.member.Title = ""
	p.OnLLMRequest(ctx, ev, &ProviderRequest{})
	m, ok, err := s.GetMember(ctx, "g1", "7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NoTitle, m.Title)
}

func TestOnLLMResponse_MergesAndStrips(t *testing.T) {
	p, s, j := newTestPlugin(t, nil)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, UserRecord{UserID: "7", Address: "Kiki", Attitude: "polite"}))

	resp := &LLMResponse{CompletionText: "Nice to meet you! [Address: , Attitude: warm, Interest: cats]"}
	p.OnLLMResponse(ctx, fakeEvent{sender: "7"}, resp)

	assert.Equal(t, "Nice to meet you!", resp.CompletionText)
	rec, _, _ := s.GetUser(ctx, "7")
	assert.Equal(t, "Kiki", rec.Address)
	assert.Equal(t, "warm", rec.Attitude)
	assert.Equal(t, "cats", rec.Interest)

	require.Len(t, j.changes, 1)
	assert.Equal(t, SourceLLM, j.changes[0].Source)
	assert.Equal(t, map[string]string{"attitude": "warm", "interest": "cats"}, j.changes[0].Fields)
}

func TestOnLLMResponse_NoBlockLeavesTextAndStore(t *testing.T) {
	p, s, j := newTestPlugin(t, nil)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, UserRecord{UserID: "7", Attitude: "polite"}))

	resp := &LLMResponse{CompletionText: "plain reply"}
	p.OnLLMResponse(ctx, fakeEvent{sender: "7"}, resp)
	assert.Equal(t, "plain reply", resp.CompletionText)
	assert.Empty(t, j.changes)
}

func TestOnLLMResponse_UnknownUserStillStripped(t *testing.T) {
	p, _, j := newTestPlugin(t, nil)
	resp := &LLMResponse{CompletionText: "hey [Attitude: warm]"}
	p.OnLLMResponse(context.Background(), fakeEvent{sender: "404"}, resp)
	assert.Equal(t, "hey", resp.CompletionText)
	assert.Empty(t, j.changes)
}

func TestGroupMembersJSON(t *testing.T) {
	p, s, _ := newTestPlugin(t, nil)
	ctx := context.Background()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.GroupMembersJSON(ctx, fakeEvent{sender: "7"})), &out))
	assert.Contains(t, out, "error")

	out = nil
	require.NoError(t, json.Unmarshal([]byte(p.GroupMembersJSON(ctx, fakeEvent{sender: "7", group: "g1"})), &out))
	assert.Contains(t, out, "error")
	assert.NotContains(t, out, "members")

	require.NoError(t, s.PutUser(ctx, UserRecord{UserID: "7", Nickname: "Kiki", Birthday: "2000-06-15", Attitude: "warm"}))
	require.NoError(t, s.PutMember(ctx, GroupMemberRecord{GroupID: "g1", UserID: "7", Role: RoleOwner, Title: NoTitle}))
	require.NoError(t, s.PutMember(ctx, GroupMemberRecord{GroupID: "g1", UserID: "8", Role: RoleMember, Title: "newbie"}))

	var payload membersPayload
	require.NoError(t, json.Unmarshal([]byte(p.GroupMembersJSON(ctx, fakeEvent{sender: "7", group: "g1"})), &payload))
	assert.Equal(t, "g1", payload.GroupID)
	require.Len(t, payload.Members, 2)
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "Kiki", payload.Members[0].Nickname)
	assert.Equal(t, 26, payload.Members[0].Age)
	assert.Empty(t, payload.Members[0].Title)
	assert.Equal(t, "newbie", payload.Members[1].Title)
}
