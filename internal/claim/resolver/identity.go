package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/ports"
	dirmodels "rosterclaim/internal/directory/models"
	"rosterclaim/internal/search"
)

// candidateFields is the projection read for every candidate.
var candidateFields = []string{
	search.FieldID,
	search.FieldFirstName,
	search.FieldChannel,
	search.FieldEmail,
	search.FieldPhone,
	search.FieldRootOrgID,
	search.FieldFlagsValue,
	search.FieldOrganisations,
	search.FieldIsDeleted,
	search.FieldStatus,
}

type custodianSource interface {
	CustodianOrgID(ctx context.Context) (string, error)
}

// IdentityResolver finds canonical users owned by the custodian organisation
// that share an email or phone with a shadow record.
type IdentityResolver struct {
	index     ports.SearchIndex
	custodian custodianSource
	logger    *slog.Logger
}

// IdentityOption configures an IdentityResolver.
type IdentityOption func(*IdentityResolver)

// WithIdentityLogger sets the logger.
func WithIdentityLogger(logger *slog.Logger) IdentityOption {
	return func(r *IdentityResolver) {
		r.logger = logger
	}
}

// NewIdentityResolver wires the resolver.
func NewIdentityResolver(index ports.SearchIndex, custodian custodianSource, opts ...IdentityOption) (*IdentityResolver, error) {
	if index == nil {
		return nil, errors.New("search index is required")
	}
	if custodian == nil {
		return nil, errors.New("custodian source is required")
	}
	r := &IdentityResolver{index: index, custodian: custodian, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// FindCandidates returns matching users in index order. A record without email
// and phone has no safe match and yields no candidates without a query.
func (r *IdentityResolver) FindCandidates(ctx context.Context, shadow *models.ShadowUser) ([]models.Candidate, error) {
	or := map[string]any{}
	if email := strings.TrimSpace(shadow.Email); email != "" {
		or[search.FieldEmail] = email
	}
	if phone := strings.TrimSpace(shadow.Phone); phone != "" {
		or[search.FieldPhone] = phone
	}
	if len(or) == 0 {
		r.logger.InfoContext(ctx, "shadow user has no email or phone",
			"channel", shadow.Channel, "user_ext_id", shadow.UserExtID)
		return nil, nil
	}

	custodianID, err := r.custodian.CustodianOrgID(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := r.index.Search(ctx, search.Query{
		Index:   search.IndexUser,
		Filters: map[string]any{search.FieldRootOrgID: custodianID},
		Or:      or,
		Fields:  candidateFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search candidate users: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(docs))
	for _, doc := range docs {
		candidates = append(candidates, CandidateFromDocument(doc))
	}
	return candidates, nil
}

// CandidateFromDocument maps a user index document onto a Candidate.
func CandidateFromDocument(doc search.Document) models.Candidate {
	c := models.Candidate{
		ID:         doc.String(search.FieldID),
		FirstName:  doc.String(search.FieldFirstName),
		Channel:    doc.String(search.FieldChannel),
		Email:      doc.String(search.FieldEmail),
		Phone:      doc.String(search.FieldPhone),
		RootOrgID:  doc.String(search.FieldRootOrgID),
		FlagsValue: doc.Int(search.FieldFlagsValue),
		Status:     dirmodels.UserStatus(doc.Int(search.FieldStatus)),
		IsDeleted:  doc.Bool(search.FieldIsDeleted),
	}
	for _, org := range doc.Documents(search.FieldOrganisations) {
		c.Organisations = append(c.Organisations, models.CandidateOrg{
			ID:             org.String(search.FieldID),
			OrganisationID: org.String(search.FieldOrganisationID),
		})
	}
	return c
}
