package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// Remote is the authority as seen by the client.
type Remote interface {
	Status(ctx context.Context) (api.StatusResponse, error)
	Story(ctx context.Context) (*story.Graph, error)
	Profile(ctx context.Context, req api.ProfileRequest) (session.Snapshot, error)
	Session(ctx context.Context, req api.SessionRequest) (session.Snapshot, error)
	Minigame(ctx context.Context, kind story.Kind, req api.MinigameRequest) (session.Snapshot, error)
}

// HTTPRemote talks JSON to the authority.
type HTTPRemote struct {
	base   string
	client *http.Client
}

var _ Remote = (*HTTPRemote)(nil)

// NewHTTPRemote returns a remote for baseURL. A zero timeout means none.
func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Status implements Remote.
func (h *HTTPRemote) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := h.do(ctx, http.MethodGet, api.PathStatus, nil, &out)
	return out, err
}

// Story implements Remote.
func (h *HTTPRemote) Story(ctx context.Context) (*story.Graph, error) {
	var raw json.RawMessage
	if err := h.do(ctx, http.MethodGet, api.PathStory, nil, &raw); err != nil {
		return nil, err
	}
	return story.Decode(raw, story.FormatJSON)
}

// Profile implements Remote.
func (h *HTTPRemote) Profile(ctx context.Context, req api.ProfileRequest) (session.Snapshot, error) {
	var out session.Snapshot
	err := h.do(ctx, http.MethodPost, api.PathProfile, req, &out)
	return out, err
}

// Session implements Remote.
func (h *HTTPRemote) Session(ctx context.Context, req api.SessionRequest) (session.Snapshot, error) {
	var out session.Snapshot
	err := h.do(ctx, http.MethodPost, api.PathSession, req, &out)
	return out, err
}

// Minigame implements Remote.
func (h *HTTPRemote) Minigame(ctx context.Context, kind story.Kind, req api.MinigameRequest) (session.Snapshot, error) {
	var out session.Snapshot
	err := h.do(ctx, http.MethodPost, "/minigame/"+string(kind), req, &out)
	return out, err
}

func (h *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return &RemoteError{Code: "NETWORK", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Code: "NETWORK", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := &RemoteError{Status: resp.StatusCode}
		var body api.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			re.Code = body.Code
			re.Message = body.Error
			re.Missing = body.Missing
		}
		return re
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{Status: resp.StatusCode, Code: "DECODE", Err: err}
	}
	return nil
}
