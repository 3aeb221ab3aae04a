package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTP talks to a preference service such as prefhttp.Handler:
// GET, PUT and DELETE on {baseURL}/{key}.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates a client for the service at baseURL. A nil client uses
// http.DefaultClient.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (h *HTTP) url(key string) string {
	return h.baseURL + "/" + url.PathEscape(key)
}

// Get fetches the envelope for key; 404 means absent.
func (h *HTTP) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// Set stores the envelope for key.
func (h *HTTP) Set(ctx context.Context, key string, data []byte) error {
	resp, err := h.do(ctx, http.MethodPut, key, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Remove deletes the envelope for key.
func (h *HTTP) Remove(ctx context.Context, key string) error {
	resp, err := h.do(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp)
}

func (h *HTTP) do(ctx context.Context, method, key string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.url(key), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.client.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("preference service: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}
