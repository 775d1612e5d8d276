package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dermlab/skinconsult-client/models"
)

// CreateSession opens a new consultation session on the given channel.
func (c *Client) CreateSession(ctx context.Context, channel models.Channel, title string) (models.Session, error) {
	body := map[string]string{"channel": string(channel)}
	if title != "" {
		body["title"] = title
	}
	if uid := c.Identity().UserID; uid != "" {
		body["userId"] = uid
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Session{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat/sessions", bytes.NewReader(payload), "application/json")
	if err != nil {
		return models.Session{}, err
	}
	status, respBody, err := c.do(req)
	if err != nil {
		return models.Session{}, writeError("create session", status, respBody, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return models.Session{}, writeError("create session", status, respBody, nil)
	}

	var sess models.Session
	if err := unwrap(respBody, &sess); err != nil {
		return models.Session{}, writeError("create session", status, respBody, err)
	}
	if sess.ID == "" {
		return models.Session{}, writeError("create session", status, respBody, fmt.Errorf("response carried no session id"))
	}
	return sess, nil
}

// GetSession fetches one session, optionally with its full message list.
func (c *Client) GetSession(ctx context.Context, sessionID string, includeMessages bool) (models.Session, error) {
	path := "/api/chat/sessions/" + url.PathEscape(sessionID)
	if includeMessages {
		path += "?includeMessages=true"
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return models.Session{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.Session{}, readError("get session", status, body, err)
	}
	if status != http.StatusOK {
		return models.Session{}, readError("get session", status, body, nil)
	}

	var sess models.Session
	if err := unwrap(body, &sess); err != nil {
		return models.Session{}, readError("get session", status, body, err)
	}
	return sess, nil
}

// ListUserSessions pages through the sessions owned by userID. An empty
// userID lists the current identity's sessions.
func (c *Client) ListUserSessions(ctx context.Context, userID string, pageNumber, pageSize int) (models.SessionPage, error) {
	if userID == "" {
		userID = c.Identity().UserID
	}
	path := "/api/chat/sessions/user/" + url.PathEscape(userID) + "?" + pagingQuery(pageNumber, pageSize).Encode()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return models.SessionPage{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.SessionPage{}, readError("list sessions", status, body, err)
	}
	if status != http.StatusOK {
		return models.SessionPage{}, readError("list sessions", status, body, nil)
	}

	var page models.SessionPage
	if err := unwrap(body, &page); err != nil {
		return models.SessionPage{}, readError("list sessions", status, body, err)
	}
	return page, nil
}

// ListSpecialistSessions pages through sessions visible to a specialist,
// filtered by state. mine=true restricts to sessions assigned to the caller.
// The backend answers 404 when the filter matches nothing; that is an empty
// page, not an error.
func (c *Client) ListSpecialistSessions(ctx context.Context, state models.SessionState, mine bool, pageNumber, pageSize int) (models.SessionPage, error) {
	q := pagingQuery(pageNumber, pageSize)
	if state != "" {
		q.Set("state", string(state))
	}
	if mine {
		q.Set("mine", "true")
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/specialist-sessions?"+q.Encode(), nil, "")
	if err != nil {
		return models.SessionPage{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.SessionPage{}, readError("list specialist sessions", status, body, err)
	}
	if status == http.StatusNotFound {
		return models.SessionPage{PageNumber: pageNumber, PageSize: pageSize}, nil
	}
	if status != http.StatusOK {
		return models.SessionPage{}, readError("list specialist sessions", status, body, nil)
	}

	var page models.SessionPage
	if err := unwrap(body, &page); err != nil {
		return models.SessionPage{}, readError("list specialist sessions", status, body, err)
	}
	return page, nil
}

// ClaimSession assigns the waiting session to the calling specialist. A 409
// means another specialist won the claim; it surfaces as a Conflict SendError
// and is never retried here.
func (c *Client) ClaimSession(ctx context.Context, sessionID string) (models.Session, error) {
	return c.postSessionAction(ctx, sessionID, "assignments", "claim session")
}

// CloseSession closes the session. The server treats repeat closes as a
// conflict; callers that want idempotent semantics handle Conflict upstream.
func (c *Client) CloseSession(ctx context.Context, sessionID string) (models.Session, error) {
	return c.postSessionAction(ctx, sessionID, "closures", "close session")
}

func (c *Client) postSessionAction(ctx context.Context, sessionID, action, op string) (models.Session, error) {
	path := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/" + action
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, "application/json")
	if err != nil {
		return models.Session{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return models.Session{}, writeError(op, status, body, err)
	}
	if status != http.StatusOK {
		return models.Session{}, writeError(op, status, body, nil)
	}

	var sess models.Session
	if err := unwrap(body, &sess); err != nil {
		return models.Session{}, writeError(op, status, body, err)
	}
	return sess, nil
}

func pagingQuery(pageNumber, pageSize int) url.Values {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(pageSize))
	return q
}
