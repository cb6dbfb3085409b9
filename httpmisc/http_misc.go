// Package httpmisc contains helpers shared by the HTTP clients of the signer
// bridge and the directory.
package httpmisc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx answer. Body holds the start of the response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (err *StatusError) Error() string {
	if err.Body == "" {
		return fmt.Sprintf("HTTP %d", err.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", err.StatusCode, err.Body)
}

// Transient reports whether the request may succeed if repeated.
func (err *StatusError) Transient() bool {
	return err.StatusCode >= 500 || err.StatusCode == http.StatusTooManyRequests
}

// ResponseOK closes the body of a non-2xx response and returns it as a *StatusError.
func ResponseOK(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("HTTP closing body due to HTTP %d: %w", resp.StatusCode, err)
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
}

// GetJSON issues a GET and decodes a 2xx JSON answer into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(client, req, out)
}

// PostJSON issues a POST with a JSON body and decodes a 2xx JSON answer into out.
// out may be nil.
func PostJSON(ctx context.Context, client *http.Client, url string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if err := ResponseOK(resp); err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
