package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetSession_State(t *testing.T) {
	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &ResetSession{IssuedAt: issued, ExpiresAt: issued.Add(300 * time.Second), ResendFrom: issued.Add(60 * time.Second)}

	assert.Equal(t, ResetStateActive, s.State(issued))
	assert.Equal(t, ResetStateActive, s.State(issued.Add(299*time.Second)))
	assert.Equal(t, ResetStateExpired, s.State(issued.Add(300*time.Second)))
	assert.Equal(t, ResetStateExpired, s.State(issued.Add(time.Hour)))

	assert.Equal(t, 60*time.Second, s.ResendIn(issued))
	assert.Equal(t, time.Second, s.ResendIn(issued.Add(59*time.Second)))
	assert.Zero(t, s.ResendIn(issued.Add(61*time.Second)))
	assert.False(t, s.Redeemable())
}

func TestUserKind(t *testing.T) {
	assert.Equal(t, UserKindStaff, ParseUserKind(" Staff "))
	assert.Equal(t, UserKindOrganization, ParseUserKind("organization"))
	assert.Equal(t, UserKindUnknown, ParseUserKind("donor"))

	assert.True(t, UserKindStaff.Allows(RoleMedicalTechnologist))
	assert.False(t, UserKindStaff.Allows(RoleOrgCoordinator))
	assert.True(t, UserKindOrganization.Allows(RoleOrgRequester))
	assert.False(t, UserKindUnknown.Allows(RoleAdmin))

	assert.Equal(t, RoleOrgCoordinator, UserKindOrganization.DefaultRole())
}

func TestUserStatus(t *testing.T) {
	assert.Equal(t, "Pending", UserStatusPending.String())
	assert.Equal(t, UserStatusUnknown, UserStatus(42).Ensure())
	assert.Equal(t, UserStatusRevoked, UserStatusRevoked.Ensure())
}
