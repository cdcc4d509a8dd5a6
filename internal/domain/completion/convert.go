package completion

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/mcpserver"
)

// ToProviderMessages converts stored messages into the provider wire shape.
// A system instruction is prepended unless the conversation already starts with a system message.
func ToProviderMessages(systemInstruction string, messages []*chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(systemInstruction) != "" && (len(messages) == 0 || messages[0].Role != chat.RoleSystem) {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemInstruction})
	}
	for _, m := range messages {
		if m == nil {
			continue
		}
		out = append(out, toProviderMessage(m)...)
	}
	return out
}

func toProviderMessage(m *chat.Message) []openai.ChatCompletionMessage {
	if m.Role == chat.RoleAssistant {
		return assistantMessages(m)
	}

	msg := openai.ChatCompletionMessage{Role: string(m.Role)}
	if hasImages(m) {
		msg.MultiContent = multiContent(m)
	} else {
		msg.Content = m.Text()
	}
	return []openai.ChatCompletionMessage{msg}
}

func hasImages(m *chat.Message) bool {
	for _, p := range m.Parts {
		if p.Type == chat.PartImage && p.ImageURL != "" {
			return true
		}
	}
	return false
}

func multiContent(m *chat.Message) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
	sawText := false
	for _, p := range m.Parts {
		switch p.Type {
		case chat.PartText:
			if p.Text == "" {
				continue
			}
			sawText = true
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
		case chat.PartImage:
			if p.ImageURL == "" {
				continue
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL, Detail: openai.ImageURLDetailAuto},
			})
		}
	}
	if !sawText && strings.TrimSpace(m.Content) != "" {
		parts = append([]openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}, parts...)
	}
	return parts
}

// assistantMessages expands executed tool invocations into the assistant tool_calls message
// followed by one tool message per result.
func assistantMessages(m *chat.Message) []openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text()}
	var results []openai.ChatCompletionMessage
	for _, p := range m.Parts {
		inv := p.ToolInvocation
		if p.Type != chat.PartToolInvocation || inv == nil || inv.State != ToolStateResult {
			continue
		}
		args, err := json.Marshal(inv.Args)
		if err != nil || inv.Args == nil {
			args = []byte("{}")
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   inv.ToolCallID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      inv.ToolName,
				Arguments: string(args),
			},
		})
		results = append(results, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: inv.ToolCallID,
			Content:    resultText(inv.Result),
		})
	}
	return append([]openai.ChatCompletionMessage{msg}, results...)
}

func resultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// ToProviderTools exposes MCP tools as function tools, ordered by name.
func ToProviderTools(tools map[string]mcpserver.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t := tools[name]
		var params any = t.Parameters
		if t.Parameters == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
