package entity

import "strings"

type UserStatus int16

const (
	UserStatusUnknown UserStatus = 0

	// UserStatusUnverified is a registration whose email address is not confirmed yet.
	UserStatusUnverified UserStatus = 1

	// UserStatusPending has a confirmed email and waits for an administrator.
	UserStatusPending UserStatus = 2

	// UserStatusActive may sign in.
	UserStatusActive UserStatus = 3

	UserStatusRejected UserStatus = 4
	UserStatusRevoked  UserStatus = 5
)

func (us UserStatus) String() string {
	switch us {
	case UserStatusUnverified:
		return "Unverified"
	case UserStatusPending:
		return "Pending"
	case UserStatusActive:
		return "Active"
	case UserStatusRejected:
		return "Rejected"
	case UserStatusRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

func (us UserStatus) Ensure() UserStatus {
	switch us {
	case UserStatusUnverified, UserStatusPending, UserStatusActive, UserStatusRejected, UserStatusRevoked:
		return us
	default:
		return UserStatusUnknown
	}
}

// UserKind separates blood bank staff from partner organization accounts.
type UserKind string

const (
	UserKindUnknown      UserKind = ""
	UserKindStaff        UserKind = "staff"
	UserKindOrganization UserKind = "organization"
)

func ParseUserKind(raw string) UserKind {
	switch UserKind(strings.ToLower(strings.TrimSpace(raw))) {
	case UserKindStaff:
		return UserKindStaff
	case UserKindOrganization:
		return UserKindOrganization
	default:
		return UserKindUnknown
	}
}

func (k UserKind) String() string { return string(k) }

type Role string

const (
	RoleAdmin               Role = "admin"
	RoleMedicalTechnologist Role = "medical_technologist"
	RoleScheduler           Role = "scheduler"
	RoleInventoryStaff      Role = "inventory_staff"

	RoleOrgCoordinator Role = "org_coordinator"
	RoleOrgRequester   Role = "org_requester"
)

var rolesByKind = map[UserKind][]Role{
	UserKindStaff:        {RoleAdmin, RoleMedicalTechnologist, RoleScheduler, RoleInventoryStaff},
	UserKindOrganization: {RoleOrgCoordinator, RoleOrgRequester},
}

// Allows reports whether role may be assigned to an account of kind k.
func (k UserKind) Allows(role Role) bool {
	for _, r := range rolesByKind[k] {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultRole is granted when an account of kind k is approved.
func (k UserKind) DefaultRole() Role {
	if k == UserKindOrganization {
		return RoleOrgCoordinator
	}
	return RoleScheduler
}

func (r Role) String() string { return string(r) }
