package completion

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// DataStreamHeader marks a response as an AI SDK data stream.
const (
	DataStreamHeader        = "X-Vercel-AI-Data-Stream"
	DataStreamHeaderVersion = "v1"
)

// Client-side finish reasons.
const (
	ClientFinishStop          = "stop"
	ClientFinishLength        = "length"
	ClientFinishToolCalls     = "tool-calls"
	ClientFinishContentFilter = "content-filter"
	ClientFinishError         = "error"
	ClientFinishUnknown       = "unknown"
)

// EventSink receives the client-facing stream.
type EventSink interface {
	StartStep(messageID string) error
	Text(delta string) error
	Reasoning(delta string) error
	ToolCall(id, name string, args any) error
	ToolResult(id string, result any) error
	FinishStep(reason string, usage Usage, isContinued bool) error
	Finish(reason string, usage Usage) error
	Error(message string) error
}

// DataStreamWriter writes events as "<prefix>:<json>\n" lines.
type DataStreamWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDataStreamWriter(w io.Writer) *DataStreamWriter {
	return &DataStreamWriter{w: w}
}

type stepStart struct {
	MessageID string `json:"messageId"`
}

type toolCallPart struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Args       any    `json:"args"`
}

type toolResultPart struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

type finishStepPart struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

type finishPart struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

func (d *DataStreamWriter) StartStep(messageID string) error {
	return d.write('f', stepStart{MessageID: messageID})
}

func (d *DataStreamWriter) Text(delta string) error {
	return d.write('0', delta)
}

func (d *DataStreamWriter) Reasoning(delta string) error {
	return d.write('g', delta)
}

func (d *DataStreamWriter) ToolCall(id, name string, args any) error {
	return d.write('9', toolCallPart{ToolCallID: id, ToolName: name, Args: args})
}

func (d *DataStreamWriter) ToolResult(id string, result any) error {
	return d.write('a', toolResultPart{ToolCallID: id, Result: result})
}

func (d *DataStreamWriter) FinishStep(reason string, usage Usage, isContinued bool) error {
	return d.write('e', finishStepPart{FinishReason: reason, Usage: usage, IsContinued: isContinued})
}

func (d *DataStreamWriter) Finish(reason string, usage Usage) error {
	return d.write('d', finishPart{FinishReason: reason, Usage: usage})
}

func (d *DataStreamWriter) Error(message string) error {
	return d.write('3', message)
}

func (d *DataStreamWriter) write(prefix byte, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %c part: %w", prefix, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	line := make([]byte, 0, len(data)+3)
	line = append(line, prefix, ':')
	line = append(line, data...)
	line = append(line, '\n')
	if _, err := d.w.Write(line); err != nil {
		return err
	}
	if f, ok := d.w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}

// ClientFinishReason maps an upstream finish reason to the data stream vocabulary.
func ClientFinishReason(reason string) string {
	switch reason {
	case FinishReasonStop, "end_turn":
		return ClientFinishStop
	case FinishReasonLength, "max_tokens":
		return ClientFinishLength
	case FinishReasonToolCalls, "function_call":
		return ClientFinishToolCalls
	case FinishReasonContentFilter:
		return ClientFinishContentFilter
	case FinishReasonError:
		return ClientFinishError
	default:
		return ClientFinishUnknown
	}
}
