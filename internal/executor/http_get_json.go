package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaydev/commandhub/pkg/wire"
)

const (
	httpGetJSONDeadline = 30 * time.Second
	maxBodySize         = 10 * 1024 // 10 KiB
	userAgent           = "commandhub-agent/1 (+https://github.com/relaydev/commandhub)"
)

// HTTPGetJSONExecutor issues a single GET request and reports the
// response as its result, per SPEC_FULL.md §4.8. Transport failures and
// deadline expiry are reported as a Completed result carrying an error
// field, not as an executor failure — the HTTP call itself is the
// command's purpose, and a failed call is still a valid outcome.
type HTTPGetJSONExecutor struct {
	Client *http.Client
}

func (HTTPGetJSONExecutor) Kind() string { return string(wire.KindHTTPGetJSON) }

func (e HTTPGetJSONExecutor) Execute(ctx context.Context, payload []byte, onProgress ProgressFunc) (interface{}, error) {
	var p wire.HTTPGetJSONPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal http_get_json payload: %w", err)
	}
	parsed, err := url.ParseRequestURI(p.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("url must be a valid absolute URL, got %q", p.URL)
	}

	client := e.Client
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithTimeout(ctx, httpGetJSONDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return wire.HTTPGetJSONResult{
			Status:        0,
			Body:          nil,
			Truncated:     false,
			BytesReturned: 0,
			Error:         err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wire.HTTPGetJSONResult{
			Status:        0,
			Body:          nil,
			Truncated:     false,
			BytesReturned: 0,
			Error:         err.Error(),
		}, nil
	}

	bytesReturned := len(raw)
	truncated := false
	text := raw
	if len(text) > maxBodySize {
		text = text[:maxBodySize]
		truncated = true
	}

	var body interface{}
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var parsedJSON interface{}
		if err := json.Unmarshal(text, &parsedJSON); err == nil {
			body = parsedJSON
		} else {
			body = fallbackText(text, truncated)
		}
	} else {
		body = fallbackText(text, truncated)
	}

	return wire.HTTPGetJSONResult{
		Status:        resp.StatusCode,
		Body:          body,
		Truncated:     truncated,
		BytesReturned: bytesReturned,
	}, nil
}

func fallbackText(text []byte, truncated bool) string {
	s := string(text)
	if truncated {
		s += "... [truncated]"
	}
	return s
}
