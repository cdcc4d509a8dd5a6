package completion

import (
	"bytes"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/mcpserver"
)

type flushBuffer struct {
	bytes.Buffer
	flushes int
}

func (b *flushBuffer) Flush() { b.flushes++ }

func TestDataStreamWriterLines(t *testing.T) {
	buf := &flushBuffer{}
	w := NewDataStreamWriter(buf)

	require.NoError(t, w.StartStep("msg-1"))
	require.NoError(t, w.Reasoning("thinking"))
	require.NoError(t, w.Text("line \"quoted\"\n"))
	require.NoError(t, w.Error("boom"))

	assert.Equal(t, "f:{\"messageId\":\"msg-1\"}\n"+
		"g:\"thinking\"\n"+
		"0:\"line \\\"quoted\\\"\\n\"\n"+
		"3:\"boom\"\n", buf.String())
	assert.Equal(t, 4, buf.flushes)
}

func TestClientFinishReason(t *testing.T) {
	assert.Equal(t, ClientFinishStop, ClientFinishReason("stop"))
	assert.Equal(t, ClientFinishToolCalls, ClientFinishReason("tool_calls"))
	assert.Equal(t, ClientFinishContentFilter, ClientFinishReason("content_filter"))
	assert.Equal(t, ClientFinishLength, ClientFinishReason("length"))
	assert.Equal(t, ClientFinishUnknown, ClientFinishReason(""))
}

func TestToProviderMessages(t *testing.T) {
	messages := []*chat.Message{
		{Role: chat.RoleUser, Content: "What is in this picture?", Parts: []chat.Part{
			{Type: chat.PartImage, ImageURL: "data:image/png;base64,AAAA"},
		}},
		{Role: chat.RoleAssistant, Content: "Let me look.", Parts: []chat.Part{
			{Type: chat.PartToolInvocation, ToolInvocation: &chat.ToolInvocation{
				ToolCallID: "c1", ToolName: "vision", Args: map[string]any{"q": "x"}, Result: "a cat", State: ToolStateResult,
			}},
			{Type: chat.PartToolInvocation, ToolInvocation: &chat.ToolInvocation{ToolCallID: "c2", ToolName: "vision", State: ToolStateCall}},
		}},
	}

	out := ToProviderMessages("Be brief.", messages)
	require.Len(t, out, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)

	require.Len(t, out[1].MultiContent, 2)
	assert.Empty(t, out[1].Content)
	assert.Equal(t, "What is in this picture?", out[1].MultiContent[0].Text)
	assert.Equal(t, "data:image/png;base64,AAAA", out[1].MultiContent[1].ImageURL.URL)

	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, `{"q":"x"}`, out[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, out[3].Role)
	assert.Equal(t, "c1", out[3].ToolCallID)
	assert.Equal(t, "a cat", out[3].Content)
}

func TestToProviderToolsSortedWithDefaultSchema(t *testing.T) {
	tools := ToProviderTools(map[string]mcpserver.Tool{
		"zeta":  {Name: "zeta"},
		"alpha": {Name: "alpha", Parameters: map[string]any{"type": "object"}},
	})
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha", tools[0].Function.Name)
	assert.Equal(t, "zeta", tools[1].Function.Name)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, tools[1].Function.Parameters)
}
