package impression

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	GroupSetInfo = "set_info"
	GroupImp     = "imp"
)

// Invocation is one parsed command call.
type Invocation struct {
	Event Event
	Args  []string
}

// Command is a single text command. Elevated commands must only be run after
// the host has checked the caller's admin capability.
type Command struct {
	Group    string
	Name     string
	Aliases  []string
	Elevated bool
	Usage    string
	Run      func(ctx context.Context, inv Invocation) string
}

func (c Command) matches(name string) bool {
	if strings.EqualFold(c.Name, name) {
		return true
	}
	for _, a := range c.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Commands returns the plugin's command table.
func (p *Plugin) Commands() []Command {
	return []Command{
		{Group: GroupSetInfo, Name: "nickname", Aliases: []string{"name"}, Usage: "/set_info nickname <new nickname>", Run: p.setNickname},
		{Group: GroupSetInfo, Name: "birthday", Aliases: []string{"birth"}, Usage: "/set_info birthday <YYYY-MM-DD>", Run: p.setBirthday},
		{Group: GroupSetInfo, Name: "gender", Aliases: []string{"sex"}, Usage: "/set_info gender <male|female>", Run: p.setGender},
		{Name: "my_info", Aliases: []string{"myinfo"}, Usage: "/my_info", Run: p.showMyInfo},
		{Group: GroupImp, Name: FieldRelationship, Elevated: true, Usage: "/imp relationship [user_id] <text>", Run: p.fieldSetter(FieldRelationship)},
		{Group: GroupImp, Name: FieldImpression, Elevated: true, Usage: "/imp impression [user_id] <text>", Run: p.fieldSetter(FieldImpression)},
		{Group: GroupImp, Name: FieldAttitude, Elevated: true, Usage: "/imp attitude [user_id] <text>", Run: p.fieldSetter(FieldAttitude)},
		{Group: GroupImp, Name: FieldInterest, Elevated: true, Usage: "/imp interest [user_id] <text>", Run: p.fieldSetter(FieldInterest)},
		{Group: GroupImp, Name: "view", Aliases: []string{"show"}, Elevated: true, Usage: "/imp view [user_id]", Run: p.viewImpression},
		{Group: GroupImp, Name: "reset", Elevated: true, Usage: "/imp reset [user_id]", Run: p.resetImpression},
	}
}

// LookupCommand finds a command by group and name or alias.
func LookupCommand(cmds []Command, group, name string) (Command, bool) {
	for _, c := range cmds {
		if strings.EqualFold(c.Group, group) && c.matches(name) {
			return c, true
		}
	}
	return Command{}, false
}

func missingSelf() string {
	return "Your user info does not exist yet. Send me a message first so it can be recorded."
}

func missingTarget(id string) string {
	return fmt.Sprintf("No record for user %s yet. They need to talk to me first.", id)
}

// update overwrites one record and maps store errors to replies.
func (p *Plugin) update(ctx context.Context, callerID, target string, fn func(*UserRecord)) (UserRecord, string, bool) {
	var after UserRecord
	err := p.store.UpdateUser(ctx, target, func(rec *UserRecord) error {
		fn(rec)
		after = *rec
		return nil
	})
	if errors.Is(err, ErrUserNotFound) {
		if target == callerID {
			return UserRecord{}, missingSelf(), false
		}
		return UserRecord{}, missingTarget(target), false
	}
	if err != nil {
		log.Error("failed to update user record", "user", target, "err", err)
		return UserRecord{}, "Failed to save: " + err.Error(), false
	}
	return after, "", true
}

func (p *Plugin) setNickname(ctx context.Context, inv Invocation) string {
	nickname := strings.TrimSpace(strings.Join(inv.Args, " "))
	if nickname == "" {
		return "Usage: /set_info nickname <new nickname>"
	}
	id := inv.Event.SenderID()
	var old string
	if _, msg, ok := p.update(ctx, id, id, func(r *UserRecord) { old, r.Nickname = r.Nickname, nickname }); !ok {
		return msg
	}
	log.Info("nickname updated", "user", id, "old", old, "new", nickname)
	return "Your nickname is now: " + nickname
}

func (p *Plugin) setBirthday(ctx context.Context, inv Invocation) string {
	if len(inv.Args) != 1 {
		return "Usage: /set_info birthday <YYYY-MM-DD>"
	}
	birthday := strings.TrimSpace(inv.Args[0])
	id := inv.Event.SenderID()
	if _, ok, err := p.store.GetUser(ctx, id); err == nil && !ok {
		return missingSelf()
	}
	if err := ValidateBirthday(birthday, p.now()); err != nil {
		return "Invalid birthday, please use the YYYY-MM-DD format: " + err.Error()
	}
	var old string
	if _, msg, ok := p.update(ctx, id, id, func(r *UserRecord) { old, r.Birthday = r.Birthday, birthday }); !ok {
		return msg
	}
	log.Info("birthday updated", "user", id, "old", old, "new", birthday)
	return "Your birthday is now: " + birthday
}

func (p *Plugin) setGender(ctx context.Context, inv Invocation) string {
	if len(inv.Args) != 1 {
		return "Usage: /set_info gender <male|female>"
	}
	gender := GenderText(inv.Args[0])
	if gender == GenderUnknown {
		return "Gender must be one of: male, female"
	}
	id := inv.Event.SenderID()
	var old string
	if _, msg, ok := p.update(ctx, id, id, func(r *UserRecord) { old, r.Gender = r.Gender, gender }); !ok {
		return msg
	}
	log.Info("gender updated", "user", id, "old", old, "new", gender)
	return "Your gender is now: " + gender
}

func (p *Plugin) showMyInfo(ctx context.Context, inv Invocation) string {
	id := inv.Event.SenderID()
	rec, ok, err := p.store.GetUser(ctx, id)
	if err != nil {
		log.Error("failed to load user record", "user", id, "err", err)
		return "Failed to load your info: " + err.Error()
	}
	if !ok {
		return missingSelf()
	}
	return formatBasicCard("Your info", rec, p.now)
}

// fieldSetter builds the elevated setter for one impression field.
func (p *Plugin) fieldSetter(field string) func(context.Context, Invocation) string {
	return func(ctx context.Context, inv Invocation) string {
		caller := inv.Event.SenderID()
		target, rest := splitTarget(inv.Args, caller, true)
		value := strings.TrimSpace(strings.Join(rest, " "))
		if value == "" {
			return fmt.Sprintf("Usage: /imp %s [user_id] <text>", field)
		}
		var old string
		if _, msg, ok := p.update(ctx, caller, target, func(r *UserRecord) {
			ptr := fieldPtr(r, field)
			old, *ptr = *ptr, value
		}); !ok {
			return msg
		}
		log.Info("impression field set by command", "user", target, "field", field, "old", old, "new", value, "by", caller)
		p.record(ctx, Change{
			UserID:  target,
			GroupID: inv.Event.GroupID(),
			Source:  SourceCommand,
			Fields:  map[string]string{field: value},
		})
		return fmt.Sprintf("Updated %s of user %s: %s", field, target, value)
	}
}

func (p *Plugin) viewImpression(ctx context.Context, inv Invocation) string {
	caller := inv.Event.SenderID()
	target, _ := splitTarget(inv.Args, caller, false)
	rec, ok, err := p.store.GetUser(ctx, target)
	if err != nil {
		log.Error("failed to load user record", "user", target, "err", err)
		return "Failed to load user info: " + err.Error()
	}
	if !ok {
		if target == caller {
			return missingSelf()
		}
		return missingTarget(target)
	}
	var b strings.Builder
	b.WriteString(formatBasicCard("User info", rec, p.now))
	fmt.Fprintf(&b, "\nAddress: %s\nRelationship: %s\nImpression: %s\nAttitude: %s\nInterest: %s",
		orDefault(rec.Address, "-"),
		orDefault(rec.Relationship, "-"),
		orDefault(rec.Impression, "-"),
		orDefault(rec.Attitude, "-"),
		orDefault(rec.Interest, "-"))
	return b.String()
}

func (p *Plugin) resetImpression(ctx context.Context, inv Invocation) string {
	caller := inv.Event.SenderID()
	target, _ := splitTarget(inv.Args, caller, false)
	defaults := p.enricher.UserRecord(ctx, inv.Event, target, false)
	after, msg, ok := p.update(ctx, caller, target, func(r *UserRecord) { r.CopyImpression(defaults) })
	if !ok {
		return msg
	}
	log.Info("impression reset", "user", target, "by", caller)
	p.record(ctx, Change{
		UserID:  target,
		GroupID: inv.Event.GroupID(),
		Source:  SourceCommand,
		Fields: map[string]string{
			FieldAddress:      after.Address,
			FieldRelationship: after.Relationship,
			FieldImpression:   after.Impression,
			FieldAttitude:     after.Attitude,
			FieldInterest:     after.Interest,
		},
	})
	return fmt.Sprintf("Impression of user %s has been reset.", target)
}

// splitTarget takes a leading numeric id as the target. When needValue is
// set the id is only taken if something follows it.
func splitTarget(args []string, caller string, needValue bool) (string, []string) {
	if len(args) == 0 {
		return caller, args
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return caller, args
	}
	if needValue && len(args) < 2 {
		return caller, args
	}
	return args[0], args[1:]
}

func formatBasicCard(title string, rec UserRecord, now func() time.Time) string {
	birthday := orDefault(rec.Birthday, UnknownBirthday)
	s := fmt.Sprintf("%s:\nID: %s\nNickname: %s\nGender: %s\nBirthday: %s",
		title, rec.UserID, orUnknown(rec.Nickname), orDefault(rec.Gender, GenderUnknown), birthday)
	if age := Age(birthday, now()); age > 0 {
		s += fmt.Sprintf("\nAge: %d", age)
	}
	return s
}
