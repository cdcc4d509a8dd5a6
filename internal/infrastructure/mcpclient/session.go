package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"chatlima-server/internal/domain/mcpserver"
)

type session struct {
	cs    *mcp.ClientSession
	label string
	log   zerolog.Logger
}

var _ mcpserver.Session = (*session)(nil)

// ListTools follows pagination cursors until the server reports no more tools.
func (s *session) ListTools(ctx context.Context) ([]mcpserver.RemoteTool, error) {
	var out []mcpserver.RemoteTool
	params := &mcp.ListToolsParams{}
	for {
		res, err := s.cs.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			if t == nil || t.Name == "" {
				continue
			}
			out = append(out, mcpserver.RemoteTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: toSchemaMap(t.InputSchema),
			})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	text := contentText(res)
	if res.IsError {
		if text == "" {
			text = "tool " + name + " failed"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func (s *session) Close() error {
	err := s.cs.Close()
	s.log.Debug().Str("server", s.label).Err(err).Msg("MCP session closed")
	return err
}

// contentText joins text content; structured content is used when there is no text.
func contentText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			return string(raw)
		}
	}
	return strings.Join(parts, "\n")
}

type noArguments struct{}

var emptyObjectSchema = func() map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true, AllowAdditionalProperties: true}
	out := map[string]any{}
	if raw, err := json.Marshal(r.Reflect(&noArguments{})); err == nil {
		_ = json.Unmarshal(raw, &out)
	}
	delete(out, "$schema")
	delete(out, "$id")
	out["type"] = "object"
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}()

// toSchemaMap returns the tool input schema as a JSON object, falling back to an empty object schema.
func toSchemaMap(schema any) map[string]any {
	var m map[string]any
	switch v := schema.(type) {
	case map[string]any:
		m = v
	case nil:
	default:
		if raw, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(raw, &m)
		}
	}
	if len(m) == 0 {
		return cloneSchema(emptyObjectSchema)
	}
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	return m
}

func cloneSchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner, ok := v.(map[string]any); ok {
			v = cloneSchema(inner)
		}
		out[k] = v
	}
	return out
}
