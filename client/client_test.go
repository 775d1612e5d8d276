package client_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/client"
	"github.com/dermlab/skinconsult-client/config"
	"github.com/dermlab/skinconsult-client/models"
	"github.com/dermlab/skinconsult-client/testhelpers"
)

type memStore struct{ creds auth.Credentials }

func (m *memStore) Get() auth.Credentials        { return m.creds }
func (m *memStore) Set(c auth.Credentials) error { m.creds = c; return nil }
func (m *memStore) Clear() error                 { m.creds = auth.Credentials{}; return nil }

func newClient(t *testing.T, srv *testhelpers.Server) (*client.Client, *memStore) {
	t.Helper()
	store := &memStore{}
	cfg := &config.Config{APIBaseURL: srv.URL(), RequestTimeout: 5 * time.Second}
	return client.New(cfg, store), store
}

func TestLoginPersistsCredential(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.AddAccount("amira@example.com", "hunter2", models.UserProfile{
		ID: "user-1", FullName: "Amira", Email: "amira@example.com", Role: models.RoleUser,
	})
	c, store := newClient(t, srv)

	profile, err := c.Login(context.Background(), "amira@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)

	assert.NotEmpty(t, store.creds.Token)
	assert.False(t, store.creds.Expired())
	assert.Equal(t, "user-1", c.Identity().UserID)
}

func TestLoginRejectedCredentials(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.AddAccount("amira@example.com", "hunter2", models.UserProfile{ID: "user-1"})
	c, store := newClient(t, srv)

	_, err := c.Login(context.Background(), "amira@example.com", "wrong")
	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 401, authErr.Status)
	assert.Empty(t, store.creds.Token)
}

func TestRegisterThenLogin(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, _ := newClient(t, srv)

	profile, err := c.Register(context.Background(), models.RegisterRequest{
		FullName: "Amira", Email: "amira@example.com", Password: "hunter2", SkinType: "combination",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, models.RoleUser, profile.Role)

	_, err = c.Login(context.Background(), "amira@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, c.Identity().UserID)

	_, err = c.Register(context.Background(), models.RegisterRequest{
		FullName: "Amira", Email: "amira@example.com", Password: "hunter2",
	})
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Conflict)
}

func TestCreateAndGetSession(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	sess, err := c.CreateSession(context.Background(), models.ChannelAI, "dry skin question")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.OwnerUserID)
	assert.Equal(t, models.StateWaitingSpecialist, sess.State)

	got, err := c.GetSession(context.Background(), sess.ID, true)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Empty(t, got.Messages)
}

func TestCreateSessionWithoutToken(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, _ := newClient(t, srv)

	_, err := c.CreateSession(context.Background(), models.ChannelAI, "")
	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 401, authErr.Status)
}

func TestExpiredCredentialReadsAsAbsent(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{
		Token:     testhelpers.Token("user-1", models.RoleUser),
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	assert.False(t, c.Identity().Authenticated())
	_, err := c.CreateSession(context.Background(), models.ChannelAI, "")
	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestGetSessionNotFound(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	_, err := c.GetSession(context.Background(), "missing", true)
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 404, fetchErr.Status)
}

func TestListUserSessions(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelAI, State: models.StateWaitingSpecialist})
	srv.Seed(models.Session{ID: "s2", OwnerUserID: "user-2", Channel: models.ChannelAI, State: models.StateWaitingSpecialist})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	// Empty userID defaults to the identity in the credential.
	page, err := c.ListUserSessions(context.Background(), "", 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s1", page.Items[0].ID)
	assert.Equal(t, 1, page.TotalCount)
}

func TestListSpecialistSessionsEmptyIsNotAnError(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("spec-1", models.RoleSpecialist)}

	page, err := c.ListSpecialistSessions(context.Background(), models.StateWaitingSpecialist, false, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.TotalCount)
}

func TestListSpecialistSessionsFiltersByState(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelSpecialist, State: models.StateWaitingSpecialist})
	srv.Seed(models.Session{ID: "s2", OwnerUserID: "user-2", SpecialistID: "spec-1", Channel: models.ChannelSpecialist, State: models.StateAssigned})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("spec-1", models.RoleSpecialist)}

	page, err := c.ListSpecialistSessions(context.Background(), models.StateWaitingSpecialist, false, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s1", page.Items[0].ID)

	mine, err := c.ListSpecialistSessions(context.Background(), "", true, 1, 20)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "s2", mine.Items[0].ID)
}

func TestClaimSession(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelSpecialist, State: models.StateWaitingSpecialist})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("spec-1", models.RoleSpecialist)}

	sess, err := c.ClaimSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAssigned, sess.State)
	assert.Equal(t, "spec-1", sess.SpecialistID)
}

func TestClaimRaceLoserGetsConflict(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelSpecialist, State: models.StateWaitingSpecialist})

	winner, winnerStore := newClient(t, srv)
	winnerStore.creds = auth.Credentials{Token: testhelpers.Token("spec-1", models.RoleSpecialist)}
	loser, loserStore := newClient(t, srv)
	loserStore.creds = auth.Credentials{Token: testhelpers.Token("spec-2", models.RoleSpecialist)}

	_, err := winner.ClaimSession(context.Background(), "s1")
	require.NoError(t, err)

	_, err = loser.ClaimSession(context.Background(), "s1")
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Conflict)
	assert.Equal(t, 409, sendErr.Status)
}

func TestCloseSessionRepeatCloseConflicts(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelAI, State: models.StateWaitingSpecialist})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	sess, err := c.CloseSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StateClosed, sess.State)

	_, err = c.CloseSession(context.Background(), "s1")
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Conflict)
}

func TestSendMessageMultipartRoundtrip(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelAI, State: models.StateWaitingSpecialist})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	msg, err := c.SendMessage(context.Background(), "s1", models.OutgoingMessage{
		Content:   "is this rash normal?",
		Image:     strings.NewReader("fake image bytes"),
		ImageName: "rash.jpg",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "user-1", msg.AuthorUserID)
	assert.Equal(t, "is this rash normal?", msg.Content)
	assert.Contains(t, msg.ImageURL, "rash.jpg")
	require.NotNil(t, msg.CreatedAt)

	stored, ok := srv.Session("s1")
	require.True(t, ok)
	require.Len(t, stored.Messages, 1)
}

func TestSendMessageToClosedSessionConflicts(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelAI, State: models.StateClosed})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("user-1", models.RoleUser)}

	_, err := c.SendMessage(context.Background(), "s1", models.OutgoingMessage{Content: "hello?"})
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Conflict)
}

func TestSendMessageByUnassignedSpecialistForbidden(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelSpecialist, State: models.StateWaitingSpecialist})
	c, store := newClient(t, srv)
	store.creds = auth.Credentials{Token: testhelpers.Token("spec-1", models.RoleSpecialist)}

	_, err := c.SendMessage(context.Background(), "s1", models.OutgoingMessage{Content: "hi"})
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, 403, sendErr.Status)
}

func TestProfileAndLogout(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.AddAccount("amira@example.com", "hunter2", models.UserProfile{
		ID: "user-1", FullName: "Amira", Email: "amira@example.com", Role: models.RoleUser,
	})
	c, _ := newClient(t, srv)

	_, err := c.Login(context.Background(), "amira@example.com", "hunter2")
	require.NoError(t, err)

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Amira", profile.FullName)

	require.NoError(t, c.Logout())
	assert.False(t, c.Identity().Authenticated())
}
