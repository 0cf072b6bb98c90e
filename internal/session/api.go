package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSessionNotFound means the remote no longer knows the session. It is
// fatal for the session: the keepalive loop closes the transport when it
// sees this from negotiate or ping.
var ErrSessionNotFound = errors.New("session not found")

// API is the HTTP client for the remote session service.
type API struct {
	baseURL string
	client  *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type CreateResponse struct {
	SessionID     int64  `json:"SessionId"`
	HostSecretKey string `json:"HostSecretKey"`
	JoinPassword  string `json:"JoinPassword"`
}

func (a *API) Create(ctx context.Context, publicKey string) (CreateResponse, error) {
	var out CreateResponse
	err := a.post(ctx, "create", map[string]string{"PublicKey": publicKey}, &out)
	return out, err
}

type negotiateRequest struct {
	SessionID     int64  `json:"SessionId"`
	HostSecretKey string `json:"HostSecretKey"`
}

func (a *API) Negotiate(ctx context.Context, sessionID int64, secret string) (string, error) {
	var out struct{ Endpoint string }
	err := a.post(ctx, "negotiate", negotiateRequest{sessionID, secret}, &out)
	return out.Endpoint, err
}

func (a *API) Ping(ctx context.Context, sessionID int64, secret string) ([]string, error) {
	var out struct{ MemberNames []string }
	err := a.post(ctx, "ping", negotiateRequest{sessionID, secret}, &out)
	return out.MemberNames, err
}

func (a *API) Destroy(ctx context.Context, sessionID int64, secret string) error {
	return a.post(ctx, "destroy", negotiateRequest{sessionID, secret}, nil)
}

func (a *API) post(ctx context.Context, op string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+op, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}
