// Package resolver answers the lookups reconciliation depends on: which canonical
// users match a shadow record, and which organisations a channel and roster
// organisation id map to.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"rosterclaim/internal/claim/ports"
	"rosterclaim/internal/directory/store/settings"
	"rosterclaim/internal/search"
	"rosterclaim/pkg/platform/sentinel"
)

// ErrCustodianNotConfigured means the custodianOrgId system setting is missing or blank.
var ErrCustodianNotConfigured = fmt.Errorf("custodian organisation id is not configured: %w", sentinel.ErrMisconfigured)

// OrgCaches groups the caches owned by an OrganisationResolver.
type OrgCaches struct {
	Org       ports.Cache
	RootOrg   ports.Cache
	Custodian ports.Cache
	HashTag   ports.Cache
}

// OrganisationResolver maps channels and roster organisation ids onto canonical
// organisation ids. Resolved ids are cached; blank results are not.
type OrganisationResolver struct {
	index    ports.SearchIndex
	settings ports.SettingsStore
	orgs     ports.OrganisationStore
	caches   OrgCaches
	group    singleflight.Group
	logger   *slog.Logger
}

// OrgOption configures an OrganisationResolver.
type OrgOption func(*OrganisationResolver)

// WithOrgLogger sets the logger.
func WithOrgLogger(logger *slog.Logger) OrgOption {
	return func(r *OrganisationResolver) {
		r.logger = logger
	}
}

// NewOrganisationResolver wires the resolver. Every dependency is required.
func NewOrganisationResolver(
	index ports.SearchIndex,
	settingsStore ports.SettingsStore,
	orgs ports.OrganisationStore,
	caches OrgCaches,
	opts ...OrgOption,
) (*OrganisationResolver, error) {
	if index == nil {
		return nil, errors.New("search index is required")
	}
	if settingsStore == nil {
		return nil, errors.New("settings store is required")
	}
	if orgs == nil {
		return nil, errors.New("organisation store is required")
	}
	if caches.Org == nil || caches.RootOrg == nil || caches.Custodian == nil || caches.HashTag == nil {
		return nil, errors.New("organisation caches are required")
	}
	r := &OrganisationResolver{
		index:    index,
		settings: settingsStore,
		orgs:     orgs,
		caches:   caches,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveOrgID returns the id of the organisation registered under
// (channel, externalOrgID), or "" when there is none.
func (r *OrganisationResolver) ResolveOrgID(ctx context.Context, channel, externalOrgID string) (string, error) {
	if strings.TrimSpace(channel) == "" || strings.TrimSpace(externalOrgID) == "" {
		return "", nil
	}
	key := channel + ":" + externalOrgID
	return r.cached(ctx, r.caches.Org, "org:"+key, key, func() (string, error) {
		return r.firstID(ctx, map[string]any{
			search.FieldExternalID: strings.ToLower(externalOrgID),
			search.FieldChannel:    channel,
		})
	})
}

// ResolveRootOrgID returns the root organisation of channel, or "" when there is none.
func (r *OrganisationResolver) ResolveRootOrgID(ctx context.Context, channel string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", nil
	}
	return r.cached(ctx, r.caches.RootOrg, "root:"+channel, channel, func() (string, error) {
		return r.firstID(ctx, map[string]any{
			search.FieldChannel:   channel,
			search.FieldIsRootOrg: true,
		})
	})
}

// CustodianOrgID returns the configured custodian organisation id.
func (r *OrganisationResolver) CustodianOrgID(ctx context.Context) (string, error) {
	id, err := r.cached(ctx, r.caches.Custodian, "custodian", settings.CustodianOrgID, func() (string, error) {
		v, err := r.settings.Get(ctx, settings.CustodianOrgID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read custodian setting: %w", err)
		}
		return strings.TrimSpace(v), nil
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrCustodianNotConfigured
	}
	return id, nil
}

// Preflight fails when the service cannot reconcile anything. It runs before
// the service accepts work.
func (r *OrganisationResolver) Preflight(ctx context.Context) error {
	id, err := r.CustodianOrgID(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "claim preflight failed", "error", err)
		return err
	}
	r.logger.InfoContext(ctx, "claim preflight passed", "custodian_org_id", id)
	return nil
}

// HashTagID returns the hashtag of orgID, or "" when the organisation has none.
func (r *OrganisationResolver) HashTagID(ctx context.Context, orgID string) (string, error) {
	if orgID == "" {
		return "", nil
	}
	return r.cached(ctx, r.caches.HashTag, "hashtag:"+orgID, orgID, func() (string, error) {
		org, err := r.orgs.FindByID(ctx, orgID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("load organisation %s: %w", orgID, err)
		}
		return org.HashTagID, nil
	})
}

func (r *OrganisationResolver) firstID(ctx context.Context, filters map[string]any) (string, error) {
	hits, err := r.index.Search(ctx, search.Query{
		Index:   search.IndexOrganisation,
		Filters: filters,
		Fields:  []string{search.FieldID},
		Limit:   1,
	})
	if err != nil {
		return "", fmt.Errorf("search organisations: %w", err)
	}
	if len(hits) == 0 {
		return "", nil
	}
	return hits[0].String(search.FieldID), nil
}

// cached reads key from c, loading it once per flight on a miss. Only non-blank
// values are written back.
func (r *OrganisationResolver) cached(ctx context.Context, c ports.Cache, flight, key string, load func() (string, error)) (string, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		r.logger.WarnContext(ctx, "organisation cache read failed", "key", key, "error", err)
	}

	v, err, _ := r.group.Do(flight, func() (any, error) {
		loaded, err := load()
		if err != nil || loaded == "" {
			return loaded, err
		}
		stored, err := c.SetIfAbsent(ctx, key, loaded)
		if err != nil {
			r.logger.WarnContext(ctx, "organisation cache write failed", "key", key, "error", err)
			return loaded, nil
		}
		return stored, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
