package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"azusa-imp/internal/auth"
	"azusa-imp/internal/history"
	"azusa-imp/internal/impression"
	"azusa-imp/internal/llm"
	"azusa-imp/internal/storage"
)

const resetCmd = "reset_ctx"

type Bot struct {
	api          *tgbotapi.BotAPI
	s            sender
	botUserName  string
	authSvc      *auth.Service
	llmClient    llm.Client
	plugin       *impression.Plugin
	commands     []impression.Command
	journal      storage.Recorder
	systemPrompt string
	history      *history.Manager
	now          func() time.Time
}

type Options struct {
	SystemPrompt string
	HistoryLimit int
	Journal      storage.Recorder
}

func New(api *tgbotapi.BotAPI, authSvc *auth.Service, llmClient llm.Client, plugin *impression.Plugin, opts Options) *Bot {
	b := &Bot{
		api:          api,
		s:            botAPISender{api: api},
		botUserName:  api.Self.UserName,
		authSvc:      authSvc,
		llmClient:    llmClient,
		plugin:       plugin,
		commands:     plugin.Commands(),
		journal:      opts.Journal,
		systemPrompt: opts.SystemPrompt,
		history:      history.NewManager(opts.HistoryLimit),
		now:          func() time.Time { return time.Now().UTC() },
	}
	return b
}

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Info("bot started", "username", b.botUserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
			return
		}
		b.handleIncomingMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Data != resetCmd || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	b.history.Reset(historyKey(&tgbotapi.Message{Chat: cb.Message.Chat, From: cb.From}))
	b.sendMessage(cb.Message.Chat.ID, "Context cleared.")
}

// NotifyAdmins sends text to every known admin in a private chat.
func (b *Bot) NotifyAdmins(text string) {
	for _, a := range b.authSvc.List() {
		b.sendMessage(a.ID, text)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Error("failed to send message", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) reply(to *tgbotapi.Message, text string) {
	b.send(b.replyConfig(to, text))
}

// replyWithReset replies with an inline button that clears the sender's context.
func (b *Bot) replyWithReset(to *tgbotapi.Message, text string) {
	msg := b.replyConfig(to, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reset context", resetCmd),
		),
	)
	b.send(msg)
}

func (b *Bot) replyConfig(to *tgbotapi.Message, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(to.Chat.ID, text)
	if isGroupChat(to.Chat) {
		msg.ReplyToMessageID = to.MessageID
	}
	return msg
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	to := msg.ChatID
	if _, err := b.s.Send(msg); err != nil {
		log.Error("failed to send reply", "chat_id", to, "err", err)
	}
}

// addressedToBot reports whether a group message mentions or replies to the bot.
func (b *Bot) addressedToBot(msg *tgbotapi.Message) bool {
	if !isGroupChat(msg.Chat) {
		return true
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.UserName == b.botUserName && b.botUserName != "" {
		return true
	}
	return b.botUserName != "" && strings.Contains(msg.Text, "@"+b.botUserName)
}
