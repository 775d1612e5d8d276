package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/models"
)

func TestCapabilities(t *testing.T) {
	owner := auth.Identity{UserID: "owner-1", Role: models.RoleUser}
	specialist := auth.Identity{UserID: "spec-1", Role: models.RoleSpecialist}
	otherSpecialist := auth.Identity{UserID: "spec-2", Role: models.RoleSpecialist}

	tests := []struct {
		name  string
		sess  models.Session
		ident auth.Identity
		want  Caps
	}{
		{
			name:  "owner of waiting session can send and close, not claim",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", State: models.StateWaitingSpecialist},
			ident: owner,
			want:  Caps{IsOwner: true, CanSend: true, CanClose: true},
		},
		{
			name:  "specialist can claim a waiting unassigned session",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", State: models.StateWaitingSpecialist},
			ident: specialist,
			want:  Caps{CanClaim: true},
		},
		{
			name:  "assigned specialist can send, cannot claim or close",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateAssigned},
			ident: specialist,
			want:  Caps{IsAssignedSpecialist: true, CanSend: true},
		},
		{
			name:  "unassigned specialist cannot send on an assigned session",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateAssigned},
			ident: otherSpecialist,
			want:  Caps{},
		},
		{
			name:  "owner retains send and close after assignment",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateAssigned},
			ident: owner,
			want:  Caps{IsOwner: true, CanSend: true, CanClose: true},
		},
		{
			name:  "closed session grants nobody anything beyond identity",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateClosed},
			ident: owner,
			want:  Caps{IsOwner: true},
		},
		{
			name:  "assigned specialist loses send once closed",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateClosed},
			ident: specialist,
			want:  Caps{IsAssignedSpecialist: true},
		},
		{
			name:  "owner cannot claim their own waiting session",
			sess:  models.Session{ID: "s1", OwnerUserID: "spec-1", State: models.StateWaitingSpecialist},
			ident: specialist,
			want:  Caps{IsOwner: true, CanSend: true, CanClose: true},
		},
		{
			name:  "waiting session with a specialist already set is not claimable",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", SpecialistID: "spec-1", State: models.StateWaitingSpecialist},
			ident: otherSpecialist,
			want:  Caps{},
		},
		{
			name:  "unauthenticated identity gets nothing",
			sess:  models.Session{ID: "s1", OwnerUserID: "owner-1", State: models.StateWaitingSpecialist},
			ident: auth.Identity{Role: models.RoleUser},
			want:  Caps{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Capabilities(tt.sess, tt.ident))
		})
	}
}
