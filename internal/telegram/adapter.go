package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"azusa-imp/internal/impression"
)

// Adapter exposes Telegram chat lookups as an impression.Adapter.
// Telegram publishes neither gender nor birthday, so those stay unknown.
type Adapter struct {
	api chatLookup
}

func NewAdapter(api chatLookup) *Adapter {
	return &Adapter{api: api}
}

func (a *Adapter) StrangerInfo(_ context.Context, userID string) (impression.StrangerInfo, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return impression.StrangerInfo{}, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	chat, err := a.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return impression.StrangerInfo{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	return impression.StrangerInfo{Nickname: displayName(chat.FirstName, chat.LastName, chat.UserName)}, nil
}

func (a *Adapter) GroupMemberInfo(_ context.Context, groupID, userID string) (impression.MemberInfo, error) {
	gid, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return impression.MemberInfo{}, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return impression.MemberInfo{}, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	m, err := a.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: gid, UserID: uid},
	})
	if err != nil {
		return impression.MemberInfo{}, fmt.Errorf("get chat member %d/%d: %w", gid, uid, err)
	}
	info := impression.MemberInfo{Role: m.Status, Title: m.CustomTitle}
	if m.User != nil {
		info.Nickname = displayName(m.User.FirstName, m.User.LastName, m.User.UserName)
	}
	return info, nil
}

func displayName(first, last, username string) string {
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return username
}
