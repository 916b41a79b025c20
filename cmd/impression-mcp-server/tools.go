package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"

	"azusa-imp/internal/impression"
)

type GroupMembersParams struct {
	GroupID string `json:"group_id" mcp:"chat id of the group"`
}

type UserImpressionParams struct {
	UserID  string `json:"user_id" mcp:"user id"`
	GroupID string `json:"group_id,omitempty" mcp:"optional group id to include membership details"`
}

type ListUsersParams struct {
	Relationship string `json:"relationship,omitempty" mcp:"optional relationship to filter by"`
}

// toolEvent stands in for an inbound message when tools are called directly.
type toolEvent struct {
	userID  string
	groupID string
}

func (e toolEvent) SenderID() string   { return e.userID }
func (e toolEvent) SenderName() string { return "" }
func (e toolEvent) GroupID() string    { return e.groupID }
func (e toolEvent) Timestamp() int64   { return time.Now().Unix() }

type impressionTools struct {
	store  impression.Store
	plugin *impression.Plugin
	now    func() time.Time
}

func newImpressionTools(store impression.Store) (*impressionTools, error) {
	enricher, err := impression.NewEnricher(nil, 0)
	if err != nil {
		return nil, err
	}
	return &impressionTools{
		store:  store,
		plugin: impression.NewPlugin(store, enricher),
		now:    time.Now,
	}, nil
}

func (t *impressionTools) GroupMembers(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[GroupMembersParams]) (*mcp.CallToolResultFor[any], error) {
	groupID := strings.TrimSpace(params.Arguments.GroupID)
	if groupID == "" {
		return errorResult("group_id is required"), nil
	}
	out := t.plugin.GroupMembersJSON(ctx, toolEvent{groupID: groupID})
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}, nil
}

type userImpression struct {
	User   impression.UserRecord         `json:"user"`
	Member *impression.GroupMemberRecord `json:"member,omitempty"`
	Age    int                           `json:"age"`
	Prompt string                        `json:"prompt"`
}

func (t *impressionTools) UserImpression(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[UserImpressionParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	userID := strings.TrimSpace(args.UserID)
	if userID == "" {
		return errorResult("user_id is required"), nil
	}
	user, ok, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load user %s: %v", userID, err)), nil
	}
	if !ok {
		return errorResult(fmt.Sprintf("no record for user %s", userID)), nil
	}

	out := userImpression{User: user, Age: impression.Age(user.Birthday, t.now())}
	var member impression.GroupMemberRecord
	if groupID := strings.TrimSpace(args.GroupID); groupID != "" {
		m, found, err := t.store.GetMember(ctx, groupID, userID)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to load membership: %v", err)), nil
		}
		if found {
			member = m
			out.Member = &m
		}
	}
	out.Prompt = impression.FormatBasicInfo(user, member, t.now()) + "\n" + impression.FormatImpression(user)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

type userSummary struct {
	UserID       string `json:"user_id"`
	Nickname     string `json:"nickname,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Attitude     string `json:"attitude,omitempty"`
}

func (t *impressionTools) ListUsers(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ListUsersParams]) (*mcp.CallToolResultFor[any], error) {
	users, err := t.store.ListUsers(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list users: %v", err)), nil
	}
	if rel := strings.TrimSpace(params.Arguments.Relationship); rel != "" {
		users = lo.Filter(users, func(u impression.UserRecord, _ int) bool {
			return strings.EqualFold(u.Relationship, rel)
		})
	}
	out := lo.Map(users, func(u impression.UserRecord, _ int) userSummary {
		return userSummary{UserID: u.UserID, Nickname: u.Nickname, Relationship: u.Relationship, Attitude: u.Attitude}
	})
	data, err := json.Marshal(out)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
