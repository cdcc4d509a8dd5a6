package chat

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"chatlima-server/internal/utils/platformerrors"
)

type ChatModelClient struct {
	client  *resty.Client
	baseURL string
	name    string
}

func NewChatModelClient(client *resty.Client, name, baseURL string) *ChatModelClient {
	return &ChatModelClient{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		name:    name,
	}
}

// ListModelsRaw returns the undecoded /models body. Catalog parsing is provider specific.
func (c *ChatModelClient) ListModelsRaw(ctx context.Context, apiKey string) ([]byte, error) {
	req := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}
	resp, err := req.Get(joinEndpoint(c.baseURL, "/models"))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "list models request failed", err, "f4ea9b1a-e011-47f5-8704-4552e4901532")
	}
	if resp.IsError() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("list models request failed with status %d: %s", resp.StatusCode(), resp.String()), nil, "1d3cd5df-956e-46e7-80de-8dca838b91eb")
	}
	body := resp.Bytes()
	if len(body) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "list models returned an empty body", nil, "0d526244-69a7-4d93-82f5-8bfbcb3dbf57")
	}
	return body, nil
}
