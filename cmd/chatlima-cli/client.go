package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"resty.dev/v3"

	"chatlima-server/internal/interfaces/httpserver/middlewares"
	"chatlima-server/internal/interfaces/httpserver/responses"
	"chatlima-server/internal/utils/httpclients"
)

const requestTimeout = 2 * time.Minute

// adminClient calls the admin API of a running server.
type adminClient struct {
	client  *resty.Client
	out     io.Writer
	verbose bool
}

func newAdminClient(cmd *cobra.Command) (*adminClient, error) {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	verbose, _ := cmd.Flags().GetBool("verbose")

	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return nil, fmt.Errorf("--server is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("--token or CHATLIMA_ADMIN_TOKEN is required")
	}

	client := httpclients.NewClient("chatlima-cli").
		SetBaseURL(server).
		SetAuthToken(token).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")
	return &adminClient{client: client, out: cmd.OutOrStdout(), verbose: verbose}, nil
}

// asCron sends requests the way the platform scheduler does. The token is then the CRON_SECRET.
func (a *adminClient) asCron() {
	a.client.SetHeader(middlewares.CronHeader, "1")
}

// call sends the request and decodes a 2xx body into result. 206 counts as success.
func (a *adminClient) call(cmd *cobra.Command, method, path string, query map[string]string, body, result any) (int, error) {
	req := a.client.R().SetContext(cmd.Context())
	for k, v := range query {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	raw := resp.Bytes()
	if a.verbose {
		fmt.Fprintf(a.out, "%s %s -> %d\n%s\n", method, path, resp.StatusCode(), prettyJSON(raw))
	}

	if resp.IsError() {
		return resp.StatusCode(), apiError(resp.StatusCode(), raw)
	}
	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return resp.StatusCode(), fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode(), nil
}

func apiError(status int, raw []byte) error {
	var envelope responses.AppErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		return fmt.Errorf("%s (%d): %s", envelope.Error.Code, status, envelope.Error.Message)
	}
	if len(raw) == 0 {
		return fmt.Errorf("request failed with status %d %s", status, http.StatusText(status))
	}
	return fmt.Errorf("request failed with status %d: %s", status, strings.TrimSpace(string(raw)))
}

func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
