package telegram

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"azusa-imp/internal/impression"
	"azusa-imp/internal/llm"
)

const maxToolRounds = 3

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || !b.addressedToBot(msg) {
		return
	}
	if b.botUserName != "" {
		text = strings.TrimSpace(strings.ReplaceAll(text, "@"+b.botUserName, ""))
	}

	ev := messageEvent{msg: msg}
	log.Info("incoming message", "user_id", msg.From.ID, "chat_id", msg.Chat.ID, "username", msg.From.UserName)

	req := &impression.ProviderRequest{SystemPrompt: b.systemPrompt, Prompt: text}
	b.plugin.OnLLMRequest(ctx, ev, req)

	key := historyKey(msg)
	var contextMsgs []llm.Message
	if req.SystemPrompt != "" {
		contextMsgs = append(contextMsgs, llm.Message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	contextMsgs = append(contextMsgs, b.history.Get(key)...)
	contextMsgs = append(contextMsgs, llm.Message{Role: llm.RoleUser, Content: req.Prompt})

	resp, err := b.generate(ctx, ev, contextMsgs)
	if err != nil {
		log.Error("failed to generate reply", "user_id", msg.From.ID, "err", err)
		b.reply(msg, "Sorry, something went wrong.")
		return
	}
	log.Info("llm response", "model", resp.Model, "prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens, "total_tokens", resp.TotalTokens)

	out := &impression.LLMResponse{CompletionText: resp.Content}
	b.plugin.OnLLMResponse(ctx, ev, out)

	b.history.AppendUser(key, req.Prompt)
	b.history.AppendAssistant(key, out.CompletionText)

	if strings.TrimSpace(out.CompletionText) == "" {
		return
	}
	b.replyWithReset(msg, out.CompletionText)
}

// generate runs the completion, resolving group-member tool calls for
// group chats when the client supports tools.
func (b *Bot) generate(ctx context.Context, ev messageEvent, msgs []llm.Message) (llm.Response, error) {
	tc, ok := b.llmClient.(llm.ToolClient)
	if !ok || ev.GroupID() == "" {
		return b.llmClient.Generate(ctx, msgs)
	}

	tools := llm.GetImpressionTools()
	for round := 0; round < maxToolRounds; round++ {
		resp, err := tc.GenerateWithTools(ctx, msgs, tools)
		if err != nil {
			return llm.Response{}, err
		}
		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    b.runTool(ctx, ev, call),
			})
		}
	}
	return tc.Generate(ctx, msgs)
}

func (b *Bot) runTool(ctx context.Context, ev messageEvent, call llm.ToolCall) string {
	log.Debug("tool call", "name", call.Function.Name, "group_id", ev.GroupID())
	switch call.Function.Name {
	case impression.GroupMembersTool:
		return b.plugin.GroupMembersJSON(ctx, ev)
	default:
		log.Warn("unknown tool call", "name", call.Function.Name)
		data, _ := json.Marshal(map[string]string{"error": "unknown tool " + call.Function.Name})
		return string(data)
	}
}
