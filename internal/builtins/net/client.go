package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lune-org/lune/internal/bridge"
	"github.com/lune-org/lune/internal/core"
)

// Transport is the http.RoundTripper used by net.request; tests may
// override it to reach an httptest server without SSRF filtering.
var Transport http.RoundTripper = &http.Transport{DialContext: ssrfSafeDialContext}

// requestArgs is what script code passes to net.request, JSON-decoded.
type requestArgs struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// responseValue is what a settled net.request resolves to.
type responseValue struct {
	Ok         bool              `json:"ok"`
	StatusCode int               `json:"statusCode"`
	StatusMsg  string            `json:"statusMessage"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Bridge is the subset of *bridge.Bridge the HTTP client needs.
type Bridge interface {
	Call(ctx context.Context, coroFactory func(id core.ThreadId) bridge.Coroutine, spawnFuture func(func()), host func(context.Context) (core.Values, error)) (core.ThreadId, error)
}

func doRequest(ctx context.Context, argsJSON string) (core.Values, error) {
	var args requestArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("net.request: invalid arguments: %w", err)
	}
	if args.Method == "" {
		args.Method = "GET"
	}

	req, err := http.NewRequestWithContext(ctx, args.Method, args.URL, bytes.NewReader([]byte(args.Body)))
	if err != nil {
		return nil, err
	}
	for k, v := range args.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Transport: Transport, Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	out := responseValue{
		Ok:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		StatusMsg:  resp.Status,
		Headers:    headers,
		Body:       string(body),
	}
	return core.Values{out}, nil
}
