package completion

import (
	"strings"

	"chatlima-server/internal/domain/chat"
)

// assistantAccumulator builds the persisted assistant message across steps, keeping part order.
type assistantAccumulator struct {
	parts   []chat.Part
	content strings.Builder
}

func (a *assistantAccumulator) appendText(delta string) {
	if delta == "" {
		return
	}
	a.content.WriteString(delta)
	if n := len(a.parts); n > 0 && a.parts[n-1].Type == chat.PartText {
		a.parts[n-1].Text += delta
		return
	}
	a.parts = append(a.parts, chat.Part{Type: chat.PartText, Text: delta})
}

func (a *assistantAccumulator) appendReasoning(delta string) {
	if delta == "" {
		return
	}
	if n := len(a.parts); n > 0 && a.parts[n-1].Type == chat.PartReasoning {
		a.parts[n-1].Reasoning += delta
		return
	}
	a.parts = append(a.parts, chat.Part{Type: chat.PartReasoning, Reasoning: delta})
}

func (a *assistantAccumulator) addToolInvocation(inv chat.ToolInvocation) {
	a.parts = append(a.parts, chat.Part{Type: chat.PartToolInvocation, ToolInvocation: &inv})
}

func (a *assistantAccumulator) text() string {
	return a.content.String()
}

func (a *assistantAccumulator) empty() bool {
	return len(a.parts) == 0
}
