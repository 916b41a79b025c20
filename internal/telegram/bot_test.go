package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azusa-imp/internal/auth"
	"azusa-imp/internal/history"
	"azusa-imp/internal/impression"
	"azusa-imp/internal/llm"
	"azusa-imp/internal/storage"
)

const (
	superAdminID = int64(1)
	botName      = "azusa_bot"
)

type sentMessage struct {
	chatID  int64
	text    string
	replyTo int
	markup  interface{}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sw := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sentMessage{chatID: sw.ChatID, text: sw.Text, replyTo: sw.ReplyToMessageID, markup: sw.ReplyMarkup})
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.text)
	}
	return out
}

type fakeLLM struct {
	responses []llm.Response
	err       error
	calls     [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	return f.next(msgs)
}

func (f *fakeLLM) next(msgs []llm.Message) (llm.Response, error) {
	f.calls = append(f.calls, append([]llm.Message(nil), msgs...))
	if f.err != nil {
		return llm.Response{}, f.err
	}
	if len(f.responses) == 0 {
		return llm.Response{Content: "ok"}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

type fakeToolLLM struct {
	fakeLLM
	toolCalls int
}

func (f *fakeToolLLM) GenerateWithTools(ctx context.Context, msgs []llm.Message, tools []llm.Tool) (llm.Response, error) {
	f.toolCalls++
	return f.next(msgs)
}

type testBot struct {
	*Bot
	sender  *fakeSender
	store   *impression.FileStore
	journal *storage.FileJournal
}

func newTestBot(t *testing.T, client llm.Client) testBot {
	t.Helper()
	dir := t.TempDir()
	store, err := impression.NewFileStore(filepath.Join(dir, "user_info.json"), filepath.Join(dir, "group_info.json"))
	require.NoError(t, err)
	enricher, err := impression.NewEnricher(nil, 0)
	require.NoError(t, err)
	journal, err := storage.NewFileJournal(filepath.Join(dir, "impressions.jsonl"))
	require.NoError(t, err)
	authSvc, err := auth.NewWithRepo(nil, []int64{superAdminID})
	require.NoError(t, err)

	plugin := impression.NewPlugin(store, enricher, impression.WithJournal(journal))
	fs := &fakeSender{}
	b := &Bot{
		s:            fs,
		botUserName:  botName,
		authSvc:      authSvc,
		llmClient:    client,
		plugin:       plugin,
		commands:     plugin.Commands(),
		journal:      journal,
		systemPrompt: "You are Azusa.",
		history:      history.NewManager(10),
		now:          func() time.Time { return time.Now().UTC() },
	}
	return testBot{Bot: b, sender: fs, store: store, journal: journal}
}

func privateMsg(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: userID, FirstName: "Kiki"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Date:      1700000000,
		Text:      text,
	}
}

func groupMsg(userID, groupID int64, text string) *tgbotapi.Message {
	m := privateMsg(userID, text)
	m.Chat = &tgbotapi.Chat{ID: groupID, Type: "supergroup"}
	return m
}

func commandMsg(m *tgbotapi.Message) *tgbotapi.Message {
	n := strings.IndexByte(m.Text, ' ')
	if n < 0 {
		n = len(m.Text)
	}
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}}
	return m
}

func TestHandleIncomingMessage_InjectsAndStripsStatusBlock(t *testing.T) {
	client := &fakeLLM{responses: []llm.Response{{Content: "Hello Kiki! [Attitude: warm, Interest: cats]", Model: "m"}}}
	tb := newTestBot(t, client)
	ctx := context.Background()

	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})

	assert.Equal(t, []string{"Hello Kiki!"}, tb.sender.texts())
	require.Len(t, client.calls, 1)
	sys := client.calls[0][0]
	assert.Equal(t, llm.RoleSystem, sys.Role)
	assert.True(t, strings.HasPrefix(sys.Content, "Current user info: user id: 42, nickname: Kiki"), sys.Content)
	assert.True(t, strings.HasSuffix(sys.Content, "You are Azusa."))

	rec, ok, err := tb.store.GetUser(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "warm", rec.Attitude)
	assert.Equal(t, "cats", rec.Interest)

	hist := tb.history.Get("42")
	require.Len(t, hist, 2)
	assert.Equal(t, "Hello Kiki!", hist[1].Content)

	entries, err := tb.journal.LoadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, impression.SourceLLM, entries[0].Source)
}

func TestHandleIncomingMessage_GroupRequiresMention(t *testing.T) {
	client := &fakeLLM{}
	tb := newTestBot(t, client)

	tb.handleUpdate(context.Background(), tgbotapi.Update{Message: groupMsg(42, -100, "just chatting")})
	assert.Empty(t, client.calls)
	assert.Empty(t, tb.sender.texts())

	tb.handleUpdate(context.Background(), tgbotapi.Update{Message: groupMsg(42, -100, "@"+botName+" hello")})
	require.Len(t, client.calls, 1)
	last := client.calls[0][len(client.calls[0])-1]
	assert.Equal(t, "hello", last.Content)
	require.Len(t, tb.sender.sent, 1)
	assert.Equal(t, 5, tb.sender.sent[0].replyTo)
}

func TestHandleIncomingMessage_GroupMembersToolLoop(t *testing.T) {
	client := &fakeToolLLM{fakeLLM: fakeLLM{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: llm.GroupMembersToolName}}}},
		{Content: "There is one of you here."},
	}}}
	tb := newTestBot(t, client)

	tb.handleUpdate(context.Background(), tgbotapi.Update{Message: groupMsg(42, -100, "@"+botName+" who is here?")})

	assert.Equal(t, 2, client.toolCalls)
	require.Len(t, client.calls, 2)
	second := client.calls[1]
	toolMsg := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"group_id":"-100"`)
	assert.Equal(t, []string{"There is one of you here."}, tb.sender.texts())
}

func TestHandleIncomingMessage_LLMError(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{err: errors.New("boom")})
	tb.handleUpdate(context.Background(), tgbotapi.Update{Message: privateMsg(42, "hi")})
	assert.Equal(t, []string{"Sorry, something went wrong."}, tb.sender.texts())
	assert.Empty(t, tb.history.Get("42"))
}

func TestCommands_SetInfoAndElevation(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	ctx := context.Background()
	require.NoError(t, tb.store.PutUser(ctx, impression.UserRecord{UserID: "42", Nickname: "old"}))

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/set_info nickname Kiki Chan"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/imp attitude 42 adoring"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/imp attitude 42 warm"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/set_info"))})

	texts := tb.sender.texts()
	require.Len(t, texts, 4)
	assert.Equal(t, "Your nickname is now: Kiki Chan", texts[0])
	assert.Equal(t, msgAdminOnly, texts[1])
	assert.Equal(t, "Updated attitude of user 42: warm", texts[2])
	assert.Contains(t, texts[3], "/set_info birthday <YYYY-MM-DD>")

	rec, _, _ := tb.store.GetUser(ctx, "42")
	assert.Equal(t, "Kiki Chan", rec.Nickname)
	assert.Equal(t, "warm", rec.Attitude)
}

func TestCommands_Stats(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{responses: []llm.Response{{Content: "hey [Impression: curious]"}}})
	ctx := context.Background()
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/imp stats"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/imp stats"))})

	texts := tb.sender.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, msgAdminOnly, texts[1])
	assert.Contains(t, texts[2], "- total updates: 1")
	assert.Contains(t, texts[2], "- impression: 1")
}

func TestCommands_StatsForUser(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{responses: []llm.Response{
		{Content: "hey [Impression: curious]"},
		{Content: "again [Interest: maps, Attitude: warm]"},
	}})
	ctx := context.Background()
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi again")})

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/imp stats 42"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/imp stats 99"))})

	texts := tb.sender.texts()
	require.Len(t, texts, 4)
	lines := strings.Split(texts[2], "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Changes for user 42: 2", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "llm: attitude=warm, interest=maps"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "llm: impression=curious"), lines[2])
	assert.Equal(t, "No recorded changes for user 99.", texts[3])
}

func TestCommands_AdminManagement(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	ctx := context.Background()

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/admin_add 42"))})
	assert.False(t, tb.authSvc.IsAdmin(42))

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/admin_add 42"))})
	assert.True(t, tb.authSvc.IsAdmin(42))

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/admins"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/admin_remove 1"))})
	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(superAdminID, "/admin_remove 42"))})
	assert.False(t, tb.authSvc.IsAdmin(42))

	texts := tb.sender.texts()
	require.Len(t, texts, 5)
	assert.Equal(t, msgSuperAdminOnly, texts[0])
	assert.Equal(t, "User 42 is now an admin.", texts[1])
	assert.Contains(t, texts[2], "id=42")
	assert.Contains(t, texts[3], auth.ErrSuperAdmin.Error())
	assert.Equal(t, "User 42 is no longer an admin.", texts[4])
}

func TestCommands_ResetContext(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	ctx := context.Background()
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})
	require.NotEmpty(t, tb.history.Get("42"))

	tb.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(privateMsg(42, "/reset_ctx"))})
	assert.Empty(t, tb.history.Get("42"))
}

func TestCallback_ResetContext(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	ctx := context.Background()
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})
	require.NotEmpty(t, tb.history.Get("42"))

	require.Len(t, tb.sender.sent, 1)
	kb, ok := tb.sender.sent[0].markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 1)
	button := kb.InlineKeyboard[0][0]
	require.NotNil(t, button.CallbackData)

	tb.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    *button.CallbackData,
	}})
	assert.Empty(t, tb.history.Get("42"))
	assert.Equal(t, "Context cleared.", tb.sender.texts()[1])
}

func TestCallback_IgnoresUnknownData(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	ctx := context.Background()
	tb.handleUpdate(ctx, tgbotapi.Update{Message: privateMsg(42, "hi")})

	tb.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    "other",
	}})
	assert.NotEmpty(t, tb.history.Get("42"))
	assert.Len(t, tb.sender.sent, 1)
}

func TestCommands_ReplyHasNoResetButton(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	tb.handleUpdate(context.Background(), tgbotapi.Update{Message: commandMsg(privateMsg(42, "/help"))})
	require.NotEmpty(t, tb.sender.sent)
	assert.Nil(t, tb.sender.sent[0].markup)
}

func TestNotifyAdmins(t *testing.T) {
	tb := newTestBot(t, &fakeLLM{})
	require.NoError(t, tb.authSvc.Upsert(auth.Admin{ID: 7}))
	tb.NotifyAdmins("digest")
	require.Len(t, tb.sender.sent, 2)
	assert.Equal(t, superAdminID, tb.sender.sent[0].chatID)
	assert.Equal(t, int64(7), tb.sender.sent[1].chatID)
}

func TestToolNamesAgree(t *testing.T) {
	assert.Equal(t, impression.GroupMembersTool, llm.GroupMembersToolName)
}
