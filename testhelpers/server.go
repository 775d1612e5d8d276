// Package testhelpers provides an in-process fake of the consultation
// backend for client and chat tests: real HTTP, real routing, in-memory
// state, and the same envelope and status conventions as production.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/models"
)

// Token mints a bearer token for the fake backend. The signature is valid
// but never checked; identity extraction trusts the claims.
func Token(userID, role string) string {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

type account struct {
	password string
	profile  models.UserProfile
}

// Server is the fake consultation backend.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	sessions map[string]*models.Session
	accounts map[string]account
	hits     map[string]int

	// AutoReply makes the AI responder append a canned answer to every
	// message sent on an ai-channel session.
	AutoReply bool
}

// NewServer starts the fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		sessions: make(map[string]*models.Session),
		accounts: make(map[string]account),
		hits:     make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", s.loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", s.registerHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/users/me", s.profileHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/sessions", s.createSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/sessions/user/{id}", s.listUserSessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/specialist-sessions", s.listSpecialistSessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/chat/sessions/{id}/assignments", s.assignHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/sessions/{id}/closures", s.closeHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/chat/sessions/{id}/messages", s.sendMessageHandler).Methods(http.MethodPost)

	s.srv = httptest.NewServer(r)
	return s
}

// URL is the backend base URL.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the backend down.
func (s *Server) Close() { s.srv.Close() }

// AddAccount registers a login account.
func (s *Server) AddAccount(email, password string, profile models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{password: password, profile: profile}
}

// Seed installs a session directly into backend state.
func (s *Server) Seed(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := sess
	copied.Messages = append([]models.Message(nil), sess.Messages...)
	s.sessions[sess.ID] = &copied
}

// Session returns a copy of backend state for assertions.
func (s *Server) Session(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	copied := *sess
	copied.Messages = append([]models.Message(nil), sess.Messages...)
	return copied, true
}

// Hits reports how many requests reached the named operation
// (login, profile, create, list, get, assign, close, send).
func (s *Server) Hits(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[op]
}

func (s *Server) count(op string) {
	s.mu.Lock()
	s.hits[op]++
	s.mu.Unlock()
}

// caller resolves the request identity from the bearer header.
func caller(r *http.Request) auth.Identity {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Identity{Role: models.RoleUser}
	}
	return auth.Resolve(strings.TrimPrefix(header, "Bearer "))
}

func writeEnvelope(w http.ResponseWriter, status int, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ServiceResult{Success: status < 400, Data: raw})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ServiceResult{Success: false, Message: message})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	s.count("login")

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeFailure(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeEnvelope(w, http.StatusOK, models.LoginResponse{
		Token:     Token(acct.profile.ID, acct.profile.Role),
		ExpiresAt: time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		User:      acct.profile,
	})
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	s.count("register")

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		writeFailure(w, http.StatusConflict, "account already exists")
		return
	}
	profile := models.UserProfile{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.RoleUser,
		SkinType: req.SkinType,
	}
	s.accounts[req.Email] = account{password: req.Password, profile: profile}

	writeEnvelope(w, http.StatusCreated, profile)
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	s.count("profile")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.profile.ID == ident.UserID {
			writeEnvelope(w, http.StatusOK, acct.profile)
			return
		}
	}
	writeEnvelope(w, http.StatusOK, models.UserProfile{ID: ident.UserID, Role: ident.Role})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	s.count("create")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Channel string `json:"channel"`
		Title   string `json:"title"`
		UserID  string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request")
		return
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:          uuid.NewString(),
		OwnerUserID: ident.UserID,
		Channel:     models.Channel(req.Channel),
		State:       models.StateWaitingSpecialist,
		Title:       req.Title,
		CreatedAt:   &now,
		Messages:    []models.Message{},
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	writeEnvelope(w, http.StatusCreated, sess)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	s.count("get")

	s.mu.Lock()
	sess, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeFailure(w, http.StatusNotFound, "session not found")
		return
	}
	copied := *sess
	copied.Messages = append([]models.Message(nil), sess.Messages...)
	s.mu.Unlock()

	if r.URL.Query().Get("includeMessages") != "true" {
		copied.Messages = nil
	}
	writeEnvelope(w, http.StatusOK, copied)
}

func (s *Server) listUserSessionsHandler(w http.ResponseWriter, r *http.Request) {
	s.count("list")

	userID := mux.Vars(r)["id"]
	s.mu.Lock()
	var items []models.Session
	for _, sess := range s.sessions {
		if sess.OwnerUserID == userID {
			copied := *sess
			copied.Messages = nil
			items = append(items, copied)
		}
	}
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, pageOf(items, r))
}

func (s *Server) listSpecialistSessionsHandler(w http.ResponseWriter, r *http.Request) {
	s.count("list")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stateFilter := r.URL.Query().Get("state")
	mine := r.URL.Query().Get("mine") == "true"

	s.mu.Lock()
	var items []models.Session
	for _, sess := range s.sessions {
		if stateFilter != "" && string(sess.State) != stateFilter {
			continue
		}
		if mine && sess.SpecialistID != ident.UserID {
			continue
		}
		copied := *sess
		copied.Messages = nil
		items = append(items, copied)
	}
	s.mu.Unlock()

	// Production answers 404 when nothing matches the filter.
	if len(items) == 0 {
		writeFailure(w, http.StatusNotFound, "no sessions found")
		return
	}
	writeEnvelope(w, http.StatusOK, pageOf(items, r))
}

func (s *Server) assignHandler(w http.ResponseWriter, r *http.Request) {
	s.count("assign")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		writeFailure(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.State != models.StateWaitingSpecialist || sess.SpecialistID != "" {
		writeFailure(w, http.StatusConflict, "session already assigned")
		return
	}
	if sess.OwnerUserID == ident.UserID {
		writeFailure(w, http.StatusForbidden, "owners cannot claim their own session")
		return
	}

	sess.SpecialistID = ident.UserID
	sess.State = models.StateAssigned
	writeEnvelope(w, http.StatusOK, sess)
}

func (s *Server) closeHandler(w http.ResponseWriter, r *http.Request) {
	s.count("close")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		writeFailure(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.State == models.StateClosed {
		writeFailure(w, http.StatusConflict, "session already closed")
		return
	}

	sess.State = models.StateClosed
	writeEnvelope(w, http.StatusOK, sess)
}

func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	s.count("send")

	ident := caller(r)
	if !ident.Authenticated() {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeFailure(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		writeFailure(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.State == models.StateClosed {
		writeFailure(w, http.StatusConflict, "session is closed")
		return
	}
	isOwner := sess.OwnerUserID == ident.UserID
	isAssigned := sess.SpecialistID != "" && sess.SpecialistID == ident.UserID
	if !isOwner && !isAssigned {
		writeFailure(w, http.StatusForbidden, "claim the session before sending")
		return
	}

	imageURL := r.FormValue("ImageUrl")
	if _, header, err := r.FormFile("Image"); err == nil {
		imageURL = fmt.Sprintf("https://cdn.test/%s/%s", sess.ID, header.Filename)
	}

	now := time.Now().UTC()
	msg := models.Message{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		AuthorUserID: ident.UserID,
		Content:      r.FormValue("Content"),
		ImageURL:     imageURL,
		CreatedAt:    &now,
	}
	sess.Messages = append(sess.Messages, msg)

	if s.AutoReply && sess.Channel == models.ChannelAI {
		replyAt := now.Add(time.Millisecond)
		sess.Messages = append(sess.Messages, models.Message{
			ID:           uuid.NewString(),
			SessionID:    sess.ID,
			AuthorUserID: "ai-responder",
			Content:      "Thanks, let me take a look at that.",
			CreatedAt:    &replyAt,
		})
	}

	writeEnvelope(w, http.StatusCreated, msg)
}

func pageOf(items []models.Session, r *http.Request) models.SessionPage {
	pageNumber, _ := strconv.Atoi(r.URL.Query().Get("pageNumber"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	total := len(items)
	start := (pageNumber - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return models.SessionPage{
		Items:      items[start:end],
		TotalCount: total,
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}
}
