package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/config"
	"github.com/dermlab/skinconsult-client/models"
)

// Client talks to the remote consultation service. One instance is
// constructed at process start and injected wherever remote access is needed;
// the bearer credential is re-read from the token store on every request.
type Client struct {
	baseURL string
	http    *http.Client
	store   auth.TokenStore
}

// New creates a Client from config and the shared token store.
func New(cfg *config.Config, store auth.TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		store:   store,
	}
}

// Identity resolves the current identity from the stored credential.
func (c *Client) Identity() auth.Identity {
	return auth.Resolve(c.token())
}

// token returns the usable bearer token. Expired credentials read as absent;
// the request goes out without a header and the server's rejection surfaces
// as an AuthError.
func (c *Client) token() string {
	creds := c.store.Get()
	if creds.Expired() {
		return ""
	}
	return creds.Token
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// do executes the request and fully reads the body. A transport failure
// reports status 0.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// unwrap decodes a 2xx body that may be either the bare payload or a
// ServiceResult envelope around it.
func unwrap(body []byte, out interface{}) error {
	if len(body) == 0 || out == nil {
		return nil
	}
	var env models.ServiceResult
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(body, out)
}

// serverMessage pulls the human-readable error out of a failure body.
func serverMessage(body []byte) string {
	var env models.ServiceResult
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	var plain struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		if plain.Message != "" {
			return plain.Message
		}
		return plain.Error
	}
	return ""
}

func bodyError(body []byte) error {
	if msg := serverMessage(body); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// readError maps a failed read to the error taxonomy.
func readError(op string, status int, body []byte, cause error) error {
	if status == http.StatusUnauthorized {
		return &models.AuthError{Status: status, Err: bodyError(body)}
	}
	if cause == nil {
		cause = bodyError(body)
	}
	return &models.FetchError{Op: op, Status: status, Err: cause}
}

// writeError maps a failed write to the error taxonomy.
func writeError(op string, status int, body []byte, cause error) error {
	if status == http.StatusUnauthorized {
		return &models.AuthError{Status: status, Err: bodyError(body)}
	}
	if cause == nil {
		cause = bodyError(body)
	}
	return &models.SendError{
		Op:       op,
		Status:   status,
		Conflict: status == http.StatusConflict,
		Err:      cause,
	}
}
