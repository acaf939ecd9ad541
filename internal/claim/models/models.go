// Package models defines shadow user records, their claim lifecycle, and the
// candidate/outcome types the reconciler works with.
package models

import (
	"fmt"
	"strings"
	"time"

	dirmodels "rosterclaim/internal/directory/models"
)

// ClaimStatus is the persisted claim state of a shadow record. The integer
// values are the storage codes and must not be renumbered.
type ClaimStatus int

const (
	ClaimStatusClaimed          ClaimStatus = 0
	ClaimStatusUnclaimed        ClaimStatus = 1
	ClaimStatusRejected         ClaimStatus = 2
	ClaimStatusFailed           ClaimStatus = 3
	ClaimStatusMultiMatch       ClaimStatus = 4
	ClaimStatusOrgExtIDMismatch ClaimStatus = 5
	ClaimStatusEligible         ClaimStatus = 6
)

var claimStatusNames = map[ClaimStatus]string{
	ClaimStatusClaimed:          "CLAIMED",
	ClaimStatusUnclaimed:        "UNCLAIMED",
	ClaimStatusRejected:         "REJECTED",
	ClaimStatusFailed:           "FAILED",
	ClaimStatusMultiMatch:       "MULTIMATCH",
	ClaimStatusOrgExtIDMismatch: "ORGEXTIDMISMATCH",
	ClaimStatusEligible:         "ELIGIBLE",
}

func (s ClaimStatus) String() string {
	if name, ok := claimStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ClaimStatus(%d)", int(s))
}

// IsOpen reports whether the record can still be reconciled.
func (s ClaimStatus) IsOpen() bool {
	return s == ClaimStatusUnclaimed || s == ClaimStatusEligible
}

// IsTerminal reports whether the record has reached a final outcome.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusClaimed || s == ClaimStatusMultiMatch || s == ClaimStatusRejected
}

// OpenStatuses are the states a reconciliation may transition from.
var OpenStatuses = []ClaimStatus{ClaimStatusUnclaimed, ClaimStatusEligible}

// Key identifies a shadow record.
type Key struct {
	Channel   string
	UserExtID string
}

func (k Key) String() string {
	return k.Channel + ":" + k.UserExtID
}

// Validate rejects keys with a blank component.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Channel) == "" {
		return fmt.Errorf("channel is required")
	}
	if strings.TrimSpace(k.UserExtID) == "" {
		return fmt.Errorf("userExtId is required")
	}
	return nil
}

// ShadowUser is a roster row awaiting reconciliation with the canonical directory.
type ShadowUser struct {
	Channel        string
	UserExtID      string
	Name           string
	Email          string
	Phone          string
	OrgExtID       string
	UserStatus     dirmodels.UserStatus
	AddedBy        string
	ProcessID      string
	ClaimStatus    ClaimStatus
	MatchedUserIDs []string
	UserID         string
	ClaimedOn      *time.Time
	CreatedOn      time.Time
	UpdatedOn      time.Time
}

// Key returns the record's composite key.
func (s *ShadowUser) Key() Key {
	return Key{Channel: s.Channel, UserExtID: s.UserExtID}
}

// HasIdentifiers reports whether the record carries an email or phone to match on.
func (s *ShadowUser) HasIdentifiers() bool {
	return strings.TrimSpace(s.Email) != "" || strings.TrimSpace(s.Phone) != ""
}

// ClaimUpdate is a claim-state transition written to the shadow store.
type ClaimUpdate struct {
	Status         ClaimStatus
	UserID         string
	ClaimedOn      time.Time
	MatchedUserIDs []string
	ProcessID      string
}

// Apply copies the transition onto s. UserID and ClaimedOn are only written
// for CLAIMED; MatchedUserIDs only for MULTIMATCH.
func (u ClaimUpdate) Apply(s *ShadowUser, now time.Time) {
	s.ClaimStatus = u.Status
	if u.ProcessID != "" {
		s.ProcessID = u.ProcessID
	}
	switch u.Status {
	case ClaimStatusClaimed:
		s.UserID = u.UserID
		claimedOn := u.ClaimedOn
		s.ClaimedOn = &claimedOn
	case ClaimStatusMultiMatch:
		s.MatchedUserIDs = append([]string(nil), u.MatchedUserIDs...)
		s.UserID = ""
	}
	s.UpdatedOn = now
}

// CandidateOrg is a membership summary carried on a search candidate.
type CandidateOrg struct {
	ID             string
	OrganisationID string
}

// Candidate is a canonical user found in the search index.
type Candidate struct {
	ID            string
	FirstName     string
	Channel       string
	Email         string
	Phone         string
	RootOrgID     string
	FlagsValue    int
	Status        dirmodels.UserStatus
	IsDeleted     bool
	Organisations []CandidateOrg
}

// OrganisationIDs lists the organisation ids of the candidate's memberships.
func (c *Candidate) OrganisationIDs() []string {
	ids := make([]string, 0, len(c.Organisations))
	for _, org := range c.Organisations {
		ids = append(ids, org.OrganisationID)
	}
	return ids
}

// Outcome is the result of handling one shadow record.
type Outcome string

const (
	OutcomeNoMatch         Outcome = "no_match"
	OutcomeUnchanged       Outcome = "unchanged"
	OutcomeClaimed         Outcome = "claimed"
	OutcomeMultiMatch      Outcome = "multimatch"
	OutcomeRejected        Outcome = "rejected"
	OutcomeRefreshed       Outcome = "refreshed"
	OutcomeSkippedTerminal Outcome = "skipped_terminal"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeBusy            Outcome = "busy"
	OutcomeFailed          Outcome = "failed"
)

// BatchResult summarises one batch pass.
type BatchResult struct {
	Scanned    int
	Claimed    int
	MultiMatch int
	NoMatch    int
	Unchanged  int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record tallies one record's outcome.
func (r *BatchResult) Record(outcome Outcome) {
	r.Scanned++
	switch outcome {
	case OutcomeClaimed:
		r.Claimed++
	case OutcomeMultiMatch:
		r.MultiMatch++
	case OutcomeNoMatch:
		r.NoMatch++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}
