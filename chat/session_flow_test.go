package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/chat"
	"github.com/dermlab/skinconsult-client/client"
	"github.com/dermlab/skinconsult-client/config"
	"github.com/dermlab/skinconsult-client/models"
	"github.com/dermlab/skinconsult-client/testhelpers"
)

type fixedStore struct{ creds auth.Credentials }

func (f *fixedStore) Get() auth.Credentials        { return f.creds }
func (f *fixedStore) Set(c auth.Credentials) error { f.creds = c; return nil }
func (f *fixedStore) Clear() error                 { f.creds = auth.Credentials{}; return nil }

func clientAs(srv *testhelpers.Server, userID, role string) *client.Client {
	cfg := &config.Config{APIBaseURL: srv.URL(), RequestTimeout: 5 * time.Second}
	store := &fixedStore{creds: auth.Credentials{Token: testhelpers.Token(userID, role)}}
	return client.New(cfg, store)
}

func TestConsultationFlowEndToEnd(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	ctx := context.Background()

	userClient := clientAs(srv, "user-1", models.RoleUser)
	specClient := clientAs(srv, "spec-1", models.RoleSpecialist)

	sess, err := userClient.CreateSession(ctx, models.ChannelSpecialist, "persistent redness")
	require.NoError(t, err)

	userView, err := chat.OpenSession(ctx, userClient, userClient.Identity(), sess.ID)
	require.NoError(t, err)
	require.True(t, userView.Capabilities().CanSend)

	// The owner's question is confirmed by the post-send refresh.
	require.NoError(t, userView.Send(ctx, models.OutgoingMessage{Content: "my cheeks stay red for hours"}))
	assert.Equal(t, 0, userView.PendingCount())
	require.Len(t, userView.Messages(), 1)

	specView, err := chat.OpenSession(ctx, specClient, specClient.Identity(), sess.ID)
	require.NoError(t, err)
	require.True(t, specView.Capabilities().CanClaim)
	require.NoError(t, specView.Claim(ctx))
	assert.Equal(t, models.StateAssigned, specView.Session().State)

	// A second specialist arrives late and loses the claim.
	lateView, err := chat.OpenSession(ctx, clientAs(srv, "spec-2", models.RoleSpecialist),
		auth.Identity{UserID: "spec-2", Role: models.RoleSpecialist}, sess.ID)
	require.NoError(t, err)
	assert.False(t, lateView.Capabilities().CanClaim)

	require.NoError(t, specView.Send(ctx, models.OutgoingMessage{Content: "how long has this been going on?"}))
	require.NoError(t, userView.Refresh(ctx))
	msgs := userView.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "spec-1", msgs[1].AuthorUserID)

	// Only the owner closes; the specialist sees the terminal state on refresh.
	require.ErrorIs(t, specView.Close(ctx), models.ErrNotPermitted)
	require.NoError(t, userView.Close(ctx))
	require.NoError(t, specView.Refresh(ctx))
	assert.Equal(t, models.StateClosed, specView.Session().State)
	assert.False(t, specView.Capabilities().CanSend)

	// Closing again is a quiet no-op.
	require.NoError(t, userView.Close(ctx))
}

func TestClaimRaceThroughViews(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	ctx := context.Background()
	srv.Seed(models.Session{ID: "s1", OwnerUserID: "user-1", Channel: models.ChannelSpecialist, State: models.StateWaitingSpecialist})

	viewA, err := chat.OpenSession(ctx, clientAs(srv, "spec-1", models.RoleSpecialist),
		auth.Identity{UserID: "spec-1", Role: models.RoleSpecialist}, "s1")
	require.NoError(t, err)
	viewB, err := chat.OpenSession(ctx, clientAs(srv, "spec-2", models.RoleSpecialist),
		auth.Identity{UserID: "spec-2", Role: models.RoleSpecialist}, "s1")
	require.NoError(t, err)

	require.NoError(t, viewA.Claim(ctx))

	// B opened before the claim landed, so its local guard still allows the
	// attempt; the server settles it.
	err = viewB.Claim(ctx)
	var sendErr *models.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.True(t, sendErr.Conflict)

	require.NoError(t, viewB.Refresh(ctx))
	got := viewB.Session()
	assert.Equal(t, models.StateAssigned, got.State)
	assert.Equal(t, "spec-1", got.SpecialistID)
	assert.False(t, viewB.Capabilities().CanClaim)
}

func TestAIChannelAutoReply(t *testing.T) {
	srv := testhelpers.NewServer()
	defer srv.Close()
	srv.AutoReply = true
	ctx := context.Background()

	userClient := clientAs(srv, "user-1", models.RoleUser)
	sess, err := userClient.CreateSession(ctx, models.ChannelAI, "")
	require.NoError(t, err)

	view, err := chat.OpenSession(ctx, userClient, userClient.Identity(), sess.ID)
	require.NoError(t, err)
	require.NoError(t, view.Send(ctx, models.OutgoingMessage{Content: "what SPF should I use?"}))

	msgs := view.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "user-1", msgs[0].AuthorUserID)
	assert.Equal(t, "ai-responder", msgs[1].AuthorUserID)
	assert.Equal(t, 0, view.PendingCount())
}
