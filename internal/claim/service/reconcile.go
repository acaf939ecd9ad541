package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/resolver"
	dirmodels "rosterclaim/internal/directory/models"
	"rosterclaim/internal/telemetry"
	"rosterclaim/pkg/platform/sentinel"
	platformstrings "rosterclaim/pkg/platform/strings"
	"rosterclaim/pkg/requestcontext"
)

// Reconcile matches one open shadow record against the directory and records
// the outcome. Writes happen in a fixed order with the claim row last, so a
// record that fails part way stays open and can be retried.
func (r *Reconciler) Reconcile(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "claim.Reconcile", trace.WithAttributes(
		attribute.String("shadow.channel", shadow.Channel),
		attribute.String("shadow.user_ext_id", shadow.UserExtID),
		attribute.String("shadow.claim_status", shadow.ClaimStatus.String()),
	))
	defer span.End()

	outcome, err := r.reconcile(ctx, shadow)
	if err != nil {
		outcome = models.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.ErrorContext(ctx, "shadow user reconciliation failed",
			"channel", shadow.Channel,
			"user_ext_id", shadow.UserExtID,
			"process_id", shadow.ProcessID,
			"trigger", requestcontext.Trigger(ctx),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	span.SetAttributes(attribute.String("claim.outcome", string(outcome)))
	r.metrics.ObserveOutcome(outcome, start)
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, shadow *models.ShadowUser) (models.Outcome, error) {
	if shadow.ClaimStatus.IsTerminal() {
		r.logger.InfoContext(ctx, "shadow user already terminal, skipping",
			"channel", shadow.Channel, "user_ext_id", shadow.UserExtID, "claim_status", shadow.ClaimStatus.String())
		return models.OutcomeSkippedTerminal, nil
	}
	if !shadow.ClaimStatus.IsOpen() {
		return models.OutcomeIgnored, nil
	}

	now := r.timestamp(ctx)
	candidates, err := call(ctx, r.callTimeout, func(cctx context.Context) ([]models.Candidate, error) {
		return r.identities.FindCandidates(cctx, shadow)
	})
	if err != nil {
		return "", fmt.Errorf("find candidates: %w", err)
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	ids = platformstrings.DedupeAndTrim(ids)

	switch len(ids) {
	case 0:
		r.logger.InfoContext(ctx, "no matching user for shadow user",
			"channel", shadow.Channel, "user_ext_id", shadow.UserExtID, "process_id", shadow.ProcessID)
		return models.OutcomeNoMatch, nil
	case 1:
		return r.claim(ctx, shadow, candidates[0], now)
	default:
		return r.markMultiMatch(ctx, shadow, ids)
	}
}

func (r *Reconciler) markMultiMatch(ctx context.Context, shadow *models.ShadowUser, ids []string) (models.Outcome, error) {
	err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.stores.Shadows.UpdateClaim(cctx, shadow.Key(), models.ClaimUpdate{
			Status:         models.ClaimStatusMultiMatch,
			MatchedUserIDs: ids,
			ProcessID:      shadow.ProcessID,
		}, models.OpenStatuses...)
	})
	if err != nil {
		return "", fmt.Errorf("record multimatch: %w", err)
	}
	r.logger.InfoContext(ctx, "shadow user matched multiple users",
		"channel", shadow.Channel, "user_ext_id", shadow.UserExtID, "matched_user_ids", ids)
	return models.OutcomeMultiMatch, nil
}

func (r *Reconciler) claim(ctx context.Context, shadow *models.ShadowUser, candidate models.Candidate, now time.Time) (models.Outcome, error) {
	orgID, err := call(ctx, r.callTimeout, func(cctx context.Context) (string, error) {
		return r.orgs.ResolveOrgID(cctx, shadow.Channel, shadow.OrgExtID)
	})
	if err != nil {
		return "", fmt.Errorf("resolve organisation: %w", err)
	}
	if resolver.IsSame(shadow, &candidate, orgID) {
		r.logger.InfoContext(ctx, "matched user already up to date",
			"channel", shadow.Channel, "user_ext_id", shadow.UserExtID, "user_id", candidate.ID)
		return models.OutcomeUnchanged, nil
	}

	rootOrgID, err := r.rootOrgID(ctx, shadow.Channel)
	if err != nil {
		return "", err
	}

	if err := r.updateUser(ctx, shadow, candidate, rootOrgID, now); err != nil {
		return "", err
	}
	r.emitTelemetry(ctx, shadow, candidate.ID, rootOrgID, now)

	if err := r.replaceMemberships(ctx, shadow, candidate, rootOrgID, orgID, now); err != nil {
		return "", err
	}

	link := dirmodels.NewExternalIdentity(shadow.Channel, shadow.UserExtID, candidate.ID, shadow.AddedBy, now)
	if err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.stores.Links.Upsert(cctx, &link)
	}); err != nil {
		return "", fmt.Errorf("link external identity: %w", err)
	}

	if err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.stores.Shadows.UpdateClaim(cctx, shadow.Key(), models.ClaimUpdate{
			Status:    models.ClaimStatusClaimed,
			UserID:    candidate.ID,
			ClaimedOn: now,
			ProcessID: shadow.ProcessID,
		}, models.OpenStatuses...)
	}); err != nil {
		return "", fmt.Errorf("record claim: %w", err)
	}

	r.enqueueResync(ctx, candidate.ID)
	r.logger.InfoContext(ctx, "shadow user claimed",
		"channel", shadow.Channel,
		"user_ext_id", shadow.UserExtID,
		"user_id", candidate.ID,
		"root_org_id", rootOrgID,
		"org_id", orgID,
		"trigger", requestcontext.Trigger(ctx),
	)
	return models.OutcomeClaimed, nil
}

func (r *Reconciler) rootOrgID(ctx context.Context, channel string) (string, error) {
	rootOrgID, err := call(ctx, r.callTimeout, func(cctx context.Context) (string, error) {
		return r.orgs.ResolveRootOrgID(cctx, channel)
	})
	if err != nil {
		return "", fmt.Errorf("resolve root organisation: %w", err)
	}
	if rootOrgID == "" {
		return "", fmt.Errorf("no root organisation for channel %q: %w", channel, sentinel.ErrInvalidState)
	}
	return rootOrgID, nil
}

// updateUser writes the roster attributes onto the canonical user. The
// validated flag is added only when missing so other flag bits survive.
func (r *Reconciler) updateUser(ctx context.Context, shadow *models.ShadowUser, candidate models.Candidate, rootOrgID string, now time.Time) error {
	update := dirmodels.UserUpdate{
		FirstName:   shadow.Name,
		Status:      shadow.UserStatus,
		IsDeleted:   shadow.UserStatus != dirmodels.StatusActive,
		UserType:    dirmodels.UserTypeTeacher,
		Channel:     shadow.Channel,
		RootOrgID:   rootOrgID,
		UpdatedBy:   shadow.AddedBy,
		UpdatedDate: now,
	}
	if candidate.FlagsValue&dirmodels.FlagStateValidated == 0 {
		flags := candidate.FlagsValue | dirmodels.FlagStateValidated
		update.FlagsValue = &flags
	}
	if err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.stores.Users.Update(cctx, candidate.ID, update)
	}); err != nil {
		return fmt.Errorf("update user %s: %w", candidate.ID, err)
	}
	return nil
}

// replaceMemberships soft-deletes every active membership outside the root
// organisation and the record's own organisation, then makes sure both have an
// active membership. Memberships come from the candidate's index snapshot and
// the membership store, so stale index data cannot leave one behind.
func (r *Reconciler) replaceMemberships(ctx context.Context, shadow *models.ShadowUser, candidate models.Candidate, rootOrgID, orgID string, now time.Time) error {
	existing, err := call(ctx, r.callTimeout, func(cctx context.Context) ([]*dirmodels.Membership, error) {
		return r.stores.Memberships.ListByUser(cctx, candidate.ID)
	})
	if err != nil {
		return fmt.Errorf("list memberships of %s: %w", candidate.ID, err)
	}

	subOrgID := ""
	if orgID != "" && !strings.EqualFold(orgID, rootOrgID) {
		subOrgID = orgID
	}
	keep := func(organisationID string) bool {
		return strings.EqualFold(organisationID, rootOrgID) ||
			(subOrgID != "" && strings.EqualFold(organisationID, subOrgID))
	}

	var toDelete []string
	seen := make(map[string]bool)
	for _, org := range candidate.Organisations {
		if org.ID != "" && !keep(org.OrganisationID) && !seen[org.ID] {
			seen[org.ID] = true
			toDelete = append(toDelete, org.ID)
		}
	}
	for _, m := range existing {
		if !m.IsDeleted && !keep(m.OrganisationID) && !seen[m.ID] {
			seen[m.ID] = true
			toDelete = append(toDelete, m.ID)
		}
	}

	for _, id := range toDelete {
		err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
			return r.stores.Memberships.SoftDelete(cctx, id, shadow.AddedBy, now)
		})
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("remove membership %s: %w", id, err)
		}
	}

	if err := r.registerMembership(ctx, candidate.ID, rootOrgID, shadow.AddedBy, existing, now); err != nil {
		return err
	}
	if subOrgID != "" {
		if err := r.registerMembership(ctx, candidate.ID, subOrgID, shadow.AddedBy, existing, now); err != nil {
			return err
		}
	}
	return nil
}

// registerMembership adds an active PUBLIC membership in orgID unless one exists.
func (r *Reconciler) registerMembership(ctx context.Context, userID, orgID, addedBy string, existing []*dirmodels.Membership, now time.Time) error {
	for _, m := range existing {
		if m.IsActiveIn(orgID) {
			return nil
		}
	}

	hashTagID, err := call(ctx, r.callTimeout, func(cctx context.Context) (string, error) {
		return r.orgs.HashTagID(cctx, orgID)
	})
	if err != nil {
		return fmt.Errorf("resolve hashtag of %s: %w", orgID, err)
	}

	m := &dirmodels.Membership{
		ID:             r.newID(),
		UserID:         userID,
		OrganisationID: orgID,
		Roles:          []string{dirmodels.RolePublic},
		HashTagID:      hashTagID,
		OrgJoinDate:    now,
		UpdatedBy:      addedBy,
	}
	if err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.stores.Memberships.Insert(cctx, m)
	}); err != nil {
		return fmt.Errorf("register membership in %s: %w", orgID, err)
	}
	return nil
}

// emitTelemetry is best-effort: failures are logged and never abort the record.
func (r *Reconciler) emitTelemetry(ctx context.Context, shadow *models.ShadowUser, userID, rootOrgID string, now time.Time) {
	if r.telemetry == nil {
		return
	}
	var tc map[string]string
	if r.contexts != nil {
		loaded, err := call(ctx, r.callTimeout, func(cctx context.Context) (map[string]string, error) {
			return r.contexts.TelemetryContext(cctx, shadow.ProcessID)
		})
		if err != nil {
			r.logger.WarnContext(ctx, "telemetry context unavailable", "process_id", shadow.ProcessID, "error", err)
		}
		tc = loaded
	}

	event := telemetry.NewUserMigratedEvent(telemetry.UserMigrated{
		UserID:     userID,
		RootOrgID:  rootOrgID,
		ProcessID:  shadow.ProcessID,
		Context:    tc,
		Properties: shadowProperties(shadow),
		At:         now,
	})
	if err := callErr(ctx, r.callTimeout, func(cctx context.Context) error {
		return r.telemetry.Emit(cctx, event)
	}); err != nil {
		r.logger.WarnContext(ctx, "telemetry emit failed", "user_id", userID, "error", err)
	}
}

func (r *Reconciler) enqueueResync(ctx context.Context, userID string) {
	if r.syncer == nil {
		return
	}
	if !r.syncer.Enqueue(ctx, userID) {
		r.logger.WarnContext(ctx, "index resync not scheduled", "user_id", userID)
	}
}

// shadowProperties is the audit payload. Contact details are left out.
func shadowProperties(shadow *models.ShadowUser) map[string]any {
	return map[string]any{
		"channel":     shadow.Channel,
		"userExtId":   shadow.UserExtID,
		"name":        shadow.Name,
		"orgExtId":    shadow.OrgExtID,
		"userStatus":  int(shadow.UserStatus),
		"addedBy":     shadow.AddedBy,
		"processId":   shadow.ProcessID,
		"claimStatus": int(shadow.ClaimStatus),
	}
}
