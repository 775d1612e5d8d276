package chat

import (
	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/models"
)

// Caps are the action gates derived from a session snapshot and the current
// identity. Recomputed on every snapshot change; never stored.
type Caps struct {
	IsOwner              bool
	IsAssignedSpecialist bool
	CanClaim             bool
	CanSend              bool
	CanClose             bool
}

// Capabilities is a pure function of the snapshot and identity. An
// unauthenticated identity gets no capabilities at all.
//
// CanClose is owner-only. The backend additionally lets admins and the
// assigned specialist close, but the client exposes closing to the owner
// only; that is a product policy, not a security boundary.
func Capabilities(sess models.Session, ident auth.Identity) Caps {
	if !ident.Authenticated() {
		return Caps{}
	}

	caps := Caps{
		IsOwner:              ident.UserID == sess.OwnerUserID,
		IsAssignedSpecialist: sess.SpecialistID != "" && ident.UserID == sess.SpecialistID,
	}
	caps.CanClaim = sess.State == models.StateWaitingSpecialist &&
		sess.SpecialistID == "" &&
		!caps.IsOwner
	caps.CanSend = sess.State != models.StateClosed &&
		(caps.IsOwner || (caps.IsAssignedSpecialist && sess.State == models.StateAssigned))
	caps.CanClose = caps.IsOwner && sess.State != models.StateClosed
	return caps
}
