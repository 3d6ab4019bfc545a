package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// One shared client bounds both the identity lookup and sample pushes.
const requestTimeout = 10 * time.Second

type FailureKind string

const (
	Unreachable       FailureKind = "unreachable"
	Timeout           FailureKind = "timeout"
	BadStatus         FailureKind = "bad_status"
	MalformedResponse FailureKind = "malformed_response"
)

// Failure is a classified collector error. It always names the endpoint
// so downstream warnings can point at the target.
type Failure struct {
	Kind     FailureKind
	Endpoint string
	Status   int
	Err      error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case BadStatus:
		return fmt.Sprintf("collector %s returned status %d", f.Endpoint, f.Status)
	case MalformedResponse:
		return fmt.Sprintf("collector %s sent a malformed response: %v", f.Endpoint, f.Err)
	case Timeout:
		return fmt.Sprintf("collector %s timed out: %v", f.Endpoint, f.Err)
	}
	return fmt.Sprintf("collector %s unreachable: %v", f.Endpoint, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// PushPayload is the reduced projection sent to the collector. Altitude,
// heading and speed stay on the locally retained sample.
type PushPayload struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: requestTimeout},
	}
}

// History looks up prior records for an identity. An empty slice means
// the identity is available; any returned error means the collector's
// answer could not be trusted and callers must fall back to local state.
func (c *Client) History(ctx context.Context, identity string) ([]json.RawMessage, error) {
	endpoint := c.base + "/history/" + identity

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Failure{Kind: Unreachable, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Kind: BadStatus, Endpoint: endpoint, Status: resp.StatusCode}
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &Failure{Kind: MalformedResponse, Endpoint: endpoint, Err: err}
	}
	return records, nil
}

// Push relays one reduced sample and returns the server-assigned record id.
func (c *Client) Push(ctx context.Context, payload PushPayload) (string, error) {
	endpoint := c.base + "/push"

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Failure{Kind: Unreachable, Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Failure{Kind: Unreachable, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Failure{Kind: BadStatus, Endpoint: endpoint, Status: resp.StatusCode}
	}

	var ack struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || ack.ID == "" {
		if err == nil {
			err = errors.New("missing id field")
		}
		return "", &Failure{Kind: MalformedResponse, Endpoint: endpoint, Err: err}
	}
	return ack.ID, nil
}

func classifyTransport(endpoint string, err error) *Failure {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: Timeout, Endpoint: endpoint, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: Timeout, Endpoint: endpoint, Err: err}
	}
	return &Failure{Kind: Unreachable, Endpoint: endpoint, Err: err}
}
