package resolver

import (
	"slices"
	"strings"

	"rosterclaim/internal/claim/models"
)

// IsSame reports whether the candidate already reflects the shadow record: same
// name ignoring case, already a member of orgID, and same status. A blank orgID
// always counts as changed.
func IsSame(shadow *models.ShadowUser, candidate *models.Candidate, orgID string) bool {
	if !strings.EqualFold(shadow.Name, candidate.FirstName) {
		return false
	}
	if strings.TrimSpace(orgID) == "" || !slices.Contains(candidate.OrganisationIDs(), orgID) {
		return false
	}
	return shadow.UserStatus == candidate.Status
}
