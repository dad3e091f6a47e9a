package anki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anki-sync/core/transport"

	"go.uber.org/zap"
)

// apiVersion is the AnkiConnect protocol version. From version 6 on, every
// sub-result of a multi call carries its own result and error.
const apiVersion = 6

// ErrPermissionDenied is returned when AnkiConnect refuses access.
var ErrPermissionDenied = errors.New("anki: permission denied")

// APIError is an error reported by AnkiConnect for an action.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anki %s: %s", e.Action, e.Message)
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
	Key     string `json:"key,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// action is one entry of a multi call.
type action struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

// Client talks to AnkiConnect.
type Client struct {
	http   *transport.JSONClient
	apiKey string
	log    *zap.Logger
}

// NewClient creates an AnkiConnect client. A nil httpClient gets a default
// one bounded by cfg.TimeoutSeconds.
func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http: transport.NewJSONClient(transport.Config{
			BaseURL:    cfg.URL,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.MaxRetries,
		}, httpClient),
		apiKey: cfg.APIKey,
		log:    log,
	}
}

// readOnlyActions may be resent after a transient failure. Every other
// action is sent exactly once.
var readOnlyActions = map[string]bool{
	"version":            true,
	"requestPermission":  true,
	"modelNames":         true,
	"findNotes":          true,
	"notesInfo":          true,
	"cardsInfo":          true,
	"getMediaFilesNames": true,
}

// Invoke runs a single action and decodes its result into out (may be nil).
func (c *Client) Invoke(ctx context.Context, name string, params any, out any) error {
	return c.invoke(ctx, name, params, out, readOnlyActions[name])
}

func (c *Client) invoke(ctx context.Context, name string, params any, out any, retry bool) error {
	var resp response
	req := request{Action: name, Version: apiVersion, Params: params, Key: c.apiKey}
	post := c.http.PostJSONOnce
	if retry {
		post = c.http.PostJSON
	}
	if err := post(ctx, "", req, &resp); err != nil {
		return fmt.Errorf("anki %s: %w", name, err)
	}
	if resp.Error != nil {
		return &APIError{Action: name, Message: *resp.Error}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("anki %s: failed to decode result: %w", name, err)
	}
	return nil
}

// multi runs actions in one request. The returned slice is aligned with
// actions; the error is non-nil only when the whole call failed.
func (c *Client) multi(ctx context.Context, actions []action) ([]response, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	retry := true
	for _, a := range actions {
		retry = retry && readOnlyActions[a.Action]
	}
	var results []response
	if err := c.invoke(ctx, "multi", map[string]any{"actions": actions}, &results, retry); err != nil {
		return nil, err
	}
	if len(results) != len(actions) {
		return nil, fmt.Errorf("anki multi: %d results for %d actions", len(results), len(actions))
	}
	return results, nil
}

// subError converts the error of a multi sub-result.
func subError(name string, r response) error {
	if r.Error == nil {
		return nil
	}
	return &APIError{Action: name, Message: *r.Error}
}
