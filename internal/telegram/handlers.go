package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"azusa-imp/internal/analytics"
	"azusa-imp/internal/auth"
	"azusa-imp/internal/impression"
)

const (
	msgAdminOnly      = "This command is only available to admins."
	msgSuperAdminOnly = "This command is only available to the super admin."
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	ev := messageEvent{msg: msg}
	log.Info("command", "name", msg.Command(), "user_id", msg.From.ID, "chat_id", msg.Chat.ID)

	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		b.reply(msg, b.helpText())
	case resetCmd:
		b.history.Reset(historyKey(msg))
		b.reply(msg, "Context cleared.")
	case impression.GroupSetInfo, "update_info":
		b.runGroup(ctx, msg, ev, impression.GroupSetInfo, args)
	case "my_info", "myinfo":
		b.runCommand(ctx, msg, ev, "", "my_info", args)
	case impression.GroupImp:
		if len(args) > 0 && strings.EqualFold(args[0], "stats") {
			b.handleStats(msg, args[1:])
			return
		}
		b.runGroup(ctx, msg, ev, impression.GroupImp, args)
	case "admins":
		b.handleAdmins(msg)
	case "admin_add":
		b.handleAdminAdd(msg, args)
	case "admin_remove":
		b.handleAdminRemove(msg, args)
	}
}

func (b *Bot) runGroup(ctx context.Context, msg *tgbotapi.Message, ev messageEvent, group string, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.groupUsage(group))
		return
	}
	b.runCommand(ctx, msg, ev, group, args[0], args[1:])
}

func (b *Bot) runCommand(ctx context.Context, msg *tgbotapi.Message, ev messageEvent, group, name string, args []string) {
	cmd, ok := impression.LookupCommand(b.commands, group, name)
	if !ok {
		b.reply(msg, b.groupUsage(group))
		return
	}
	if cmd.Elevated && !b.authSvc.IsAdmin(msg.From.ID) {
		log.Warn("elevated command denied", "user_id", msg.From.ID, "command", cmd.Name)
		b.reply(msg, msgAdminOnly)
		return
	}
	b.reply(msg, cmd.Run(ctx, impression.Invocation{Event: ev, Args: args}))
}

func (b *Bot) groupUsage(group string) string {
	var bld strings.Builder
	bld.WriteString("Usage:\n")
	for _, c := range b.commands {
		if c.Group == group {
			bld.WriteString(c.Usage + "\n")
		}
	}
	if group == impression.GroupImp {
		bld.WriteString("/imp stats [user_id]\n")
	}
	return strings.TrimSpace(bld.String())
}

func (b *Bot) helpText() string {
	var bld strings.Builder
	bld.WriteString("Commands:\n")
	for _, c := range b.commands {
		bld.WriteString(c.Usage)
		if c.Elevated {
			bld.WriteString(" (admin)")
		}
		bld.WriteString("\n")
	}
	bld.WriteString("/imp stats [user_id] (admin)\n")
	bld.WriteString("/" + resetCmd + "\n")
	return strings.TrimSpace(bld.String())
}

// statsUserLimit caps the entries listed by /imp stats <user_id>.
const statsUserLimit = 10

func (b *Bot) handleStats(msg *tgbotapi.Message, args []string) {
	if !b.authSvc.IsAdmin(msg.From.ID) {
		b.reply(msg, msgAdminOnly)
		return
	}
	if b.journal == nil {
		b.reply(msg, "The impression journal is disabled.")
		return
	}
	if len(args) > 0 {
		b.handleUserStats(msg, args[0])
		return
	}
	entries, err := b.journal.LoadEntries()
	if err != nil {
		log.Error("failed to load journal", "err", err)
		b.reply(msg, "Failed to load the impression journal.")
		return
	}
	b.reply(msg, analytics.AnalyzeDailyEntries(entries, b.now()).Summary())
}

// handleUserStats lists the latest journal entries of one user, newest first.
func (b *Bot) handleUserStats(msg *tgbotapi.Message, userID string) {
	entries, err := b.journal.EntriesFor(userID)
	if err != nil {
		log.Error("failed to load journal", "user", userID, "err", err)
		b.reply(msg, "Failed to load the impression journal.")
		return
	}
	if len(entries) == 0 {
		b.reply(msg, fmt.Sprintf("No recorded changes for user %s.", userID))
		return
	}
	var bld strings.Builder
	bld.WriteString(fmt.Sprintf("Changes for user %s: %d\n", userID, len(entries)))
	for i := len(entries) - 1; i >= 0 && i >= len(entries)-statsUserLimit; i-- {
		e := entries[i]
		keys := lo.Keys(e.Fields)
		sort.Strings(keys)
		parts := lo.Map(keys, func(k string, _ int) string { return k + "=" + e.Fields[k] })
		bld.WriteString(fmt.Sprintf("- %s %s: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Source, strings.Join(parts, ", ")))
	}
	b.reply(msg, strings.TrimSpace(bld.String()))
}

func (b *Bot) handleAdmins(msg *tgbotapi.Message) {
	if !b.authSvc.IsAdmin(msg.From.ID) {
		b.reply(msg, msgAdminOnly)
		return
	}
	var bld strings.Builder
	bld.WriteString("Admins:\n")
	for _, a := range b.authSvc.List() {
		bld.WriteString(fmt.Sprintf("- id=%d, @%s %s %s\n", a.ID, a.Username, a.FirstName, a.LastName))
	}
	b.reply(msg, strings.TrimSpace(bld.String()))
}

// handleAdminAdd grants admin to the given id, or to the author of the
// replied-to message.
func (b *Bot) handleAdminAdd(msg *tgbotapi.Message, args []string) {
	if !b.authSvc.IsSuperAdmin(msg.From.ID) {
		b.reply(msg, msgSuperAdminOnly)
		return
	}
	admin, ok := adminFromArgs(msg, args)
	if !ok {
		b.reply(msg, "Usage: /admin_add <user_id> (or reply to a message)")
		return
	}
	if err := b.authSvc.Upsert(admin); err != nil {
		log.Error("failed to add admin", "user_id", admin.ID, "err", err)
		b.reply(msg, fmt.Sprintf("Failed to add admin: %v", err))
		return
	}
	b.reply(msg, fmt.Sprintf("User %d is now an admin.", admin.ID))
}

func (b *Bot) handleAdminRemove(msg *tgbotapi.Message, args []string) {
	if !b.authSvc.IsSuperAdmin(msg.From.ID) {
		b.reply(msg, msgSuperAdminOnly)
		return
	}
	admin, ok := adminFromArgs(msg, args)
	if !ok {
		b.reply(msg, "Usage: /admin_remove <user_id>")
		return
	}
	if err := b.authSvc.Remove(admin.ID); err != nil {
		b.reply(msg, fmt.Sprintf("Failed to remove admin: %v", err))
		return
	}
	b.reply(msg, fmt.Sprintf("User %d is no longer an admin.", admin.ID))
}

func adminFromArgs(msg *tgbotapi.Message, args []string) (auth.Admin, bool) {
	if len(args) == 1 {
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || uid == 0 {
			return auth.Admin{}, false
		}
		return auth.Admin{ID: uid}, true
	}
	if len(args) == 0 && msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		u := msg.ReplyToMessage.From
		return auth.Admin{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}, true
	}
	return auth.Admin{}, false
}
