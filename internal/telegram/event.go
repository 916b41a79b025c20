package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageEvent adapts an inbound message to impression.Event.
type messageEvent struct {
	msg *tgbotapi.Message
}

func (e messageEvent) SenderID() string {
	return strconv.FormatInt(e.msg.From.ID, 10)
}

func (e messageEvent) SenderName() string {
	return displayName(e.msg.From.FirstName, e.msg.From.LastName, e.msg.From.UserName)
}

func (e messageEvent) GroupID() string {
	if !isGroupChat(e.msg.Chat) {
		return ""
	}
	return strconv.FormatInt(e.msg.Chat.ID, 10)
}

func (e messageEvent) Timestamp() int64 {
	return int64(e.msg.Date)
}

func isGroupChat(c *tgbotapi.Chat) bool {
	return c != nil && (c.IsGroup() || c.IsSuperGroup())
}

// historyKey scopes a conversation to the chat, and to the sender inside groups.
func historyKey(msg *tgbotapi.Message) string {
	chat := strconv.FormatInt(msg.Chat.ID, 10)
	if isGroupChat(msg.Chat) {
		return chat + ":" + strconv.FormatInt(msg.From.ID, 10)
	}
	return chat
}
