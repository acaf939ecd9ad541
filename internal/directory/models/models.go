// Package models holds the canonical directory records the claim engine reads
// and partially writes: users, organisation memberships, external identities
// and organisations.
package models

import (
	"strings"
	"time"
)

// UserStatus mirrors the directory's integer status column.
type UserStatus int

const (
	StatusInactive UserStatus = 0
	StatusActive   UserStatus = 1
)

func (s UserStatus) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// FlagStateValidated marks a user whose state/organisation has been validated
// by a custodian-backed roster.
const FlagStateValidated = 4

// UserTypeTeacher is stamped on every user claimed from a roster.
const UserTypeTeacher = "TEACHER"

// RolePublic is the role granted on every membership the claim engine registers.
const RolePublic = "PUBLIC"

// User is the canonical directory user.
type User struct {
	ID          string
	FirstName   string
	Email       string
	Phone       string
	Status      UserStatus
	IsDeleted   bool
	RootOrgID   string
	Channel     string
	FlagsValue  int
	UserType    string
	UpdatedBy   string
	UpdatedDate *time.Time
}

// HasFlag reports whether every bit of flag is set.
func (u *User) HasFlag(flag int) bool {
	return u.FlagsValue&flag == flag
}

// UserUpdate is the narrow attribute subset the claim engine is allowed to write.
// A nil FlagsValue leaves the stored flags untouched.
type UserUpdate struct {
	FirstName   string
	FlagsValue  *int
	Status      UserStatus
	IsDeleted   bool
	UserType    string
	Channel     string
	RootOrgID   string
	UpdatedBy   string
	UpdatedDate time.Time
}

// Apply copies the update onto u.
func (upd UserUpdate) Apply(u *User) {
	u.FirstName = upd.FirstName
	if upd.FlagsValue != nil {
		u.FlagsValue = *upd.FlagsValue
	}
	u.Status = upd.Status
	u.IsDeleted = upd.IsDeleted
	u.UserType = upd.UserType
	u.Channel = upd.Channel
	u.RootOrgID = upd.RootOrgID
	u.UpdatedBy = upd.UpdatedBy
	updated := upd.UpdatedDate
	u.UpdatedDate = &updated
}

// Membership links a user to an organisation.
type Membership struct {
	ID             string
	UserID         string
	OrganisationID string
	Roles          []string
	HashTagID      string
	IsDeleted      bool
	OrgJoinDate    time.Time
	UpdatedBy      string
	UpdatedDate    *time.Time
}

// IsActiveIn reports whether m is a live membership in orgID (case-insensitive).
func (m Membership) IsActiveIn(orgID string) bool {
	return !m.IsDeleted && orgID != "" && strings.EqualFold(m.OrganisationID, orgID)
}

// ExternalIdentity maps a normalized (provider, idType, externalID) triple to a user.
// The Original* fields keep the values as received for audit and display.
type ExternalIdentity struct {
	Provider           string
	IDType             string
	ExternalID         string
	OriginalProvider   string
	OriginalIDType     string
	OriginalExternalID string
	UserID             string
	CreatedBy          string
	CreatedOn          time.Time
}

// NewExternalIdentity builds the link row for a claimed roster entry.
// provider and idType are both the channel. Key fields are lowercased, the
// Original* fields keep the casing the roster supplied.
func NewExternalIdentity(channel, externalID, userID, createdBy string, createdOn time.Time) ExternalIdentity {
	provider := strings.ToLower(channel)
	extID := strings.ToLower(externalID)
	return ExternalIdentity{
		Provider:           provider,
		IDType:             provider,
		ExternalID:         extID,
		OriginalProvider:   channel,
		OriginalIDType:     channel,
		OriginalExternalID: externalID,
		UserID:             userID,
		CreatedBy:          createdBy,
		CreatedOn:          createdOn,
	}
}

// Organisation is the read-only organisation record.
type Organisation struct {
	ID         string
	Channel    string
	ExternalID string
	IsRootOrg  bool
	HashTagID  string
}
