package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/resolver"
	"rosterclaim/internal/search"
	"rosterclaim/pkg/platform/sentinel"
)

// RefreshClaimed re-applies a CLAIMED record to the user it was claimed by. When
// the name or status drifted the user gets the same update a claim writes and a
// migration event is emitted. Memberships outside the user's root organisation
// and the record's organisation are removed, and the record's organisation is
// registered when missing. The claim row is left as is, so userId and claimedOn
// never change.
func (r *Reconciler) RefreshClaimed(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "claim.RefreshClaimed", trace.WithAttributes(
		attribute.String("shadow.channel", shadow.Channel),
		attribute.String("shadow.user_ext_id", shadow.UserExtID),
		attribute.String("user.id", shadow.UserID),
	))
	defer span.End()

	outcome, err := r.refresh(ctx, shadow)
	if err != nil {
		outcome = models.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.ErrorContext(ctx, "claimed user refresh failed",
			"channel", shadow.Channel,
			"user_ext_id", shadow.UserExtID,
			"user_id", shadow.UserID,
			"error", err,
		)
	}
	r.metrics.ObserveOutcome(outcome, start)
	return outcome, err
}

func (r *Reconciler) refresh(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
	if shadow.ClaimStatus != models.ClaimStatusClaimed || shadow.UserID == "" {
		return "", fmt.Errorf("shadow user %s is %s: %w", shadow.Key(), shadow.ClaimStatus, sentinel.ErrInvalidState)
	}
	now := r.timestamp(ctx)

	orgID, err := call(ctx, r.callTimeout, func(cctx context.Context) (string, error) {
		return r.orgs.ResolveOrgID(cctx, shadow.Channel, shadow.OrgExtID)
	})
	if err != nil {
		return "", fmt.Errorf("resolve organisation: %w", err)
	}

	doc, err := call(ctx, r.callTimeout, func(cctx context.Context) (search.Document, error) {
		return r.stores.Index.GetByID(cctx, search.IndexUser, shadow.UserID)
	})
	if err != nil {
		return "", fmt.Errorf("load claimed user %s: %w", shadow.UserID, err)
	}
	candidate := resolver.CandidateFromDocument(doc)

	rootOrgID := candidate.RootOrgID
	if rootOrgID == "" {
		if rootOrgID, err = r.rootOrgID(ctx, shadow.Channel); err != nil {
			return "", err
		}
	}

	if candidate.ID == "" {
		candidate.ID = shadow.UserID
	}
	if !strings.EqualFold(shadow.Name, candidate.FirstName) || shadow.UserStatus != candidate.Status {
		if err := r.updateUser(ctx, shadow, candidate, rootOrgID, now); err != nil {
			return "", err
		}
		r.emitTelemetry(ctx, shadow, shadow.UserID, rootOrgID, now)
	}

	if err := r.replaceMemberships(ctx, shadow, candidate, rootOrgID, orgID, now); err != nil {
		return "", err
	}

	r.enqueueResync(ctx, shadow.UserID)
	r.logger.InfoContext(ctx, "claimed user refreshed",
		"channel", shadow.Channel,
		"user_ext_id", shadow.UserExtID,
		"user_id", shadow.UserID,
		"root_org_id", rootOrgID,
	)
	return models.OutcomeRefreshed, nil
}
