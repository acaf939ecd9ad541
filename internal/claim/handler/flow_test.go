package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterclaim/internal/claim/lock"
	"rosterclaim/internal/claim/metrics"
	"rosterclaim/internal/claim/models"
	"rosterclaim/internal/claim/resolver"
	"rosterclaim/internal/claim/service"
	"rosterclaim/internal/claim/store/shadow"
	dirmodels "rosterclaim/internal/directory/models"
	"rosterclaim/internal/directory/store/externalid"
	"rosterclaim/internal/directory/store/membership"
	"rosterclaim/internal/directory/store/organisation"
	"rosterclaim/internal/directory/store/settings"
	"rosterclaim/internal/directory/store/user"
	"rosterclaim/internal/platform/cache"
	"rosterclaim/internal/platform/middleware"
	"rosterclaim/internal/search"
	"rosterclaim/pkg/platform/middleware/requesttime"
	"rosterclaim/pkg/testutil"
)

// newFlowRouter wires the real driver over in-memory stores holding one
// ELIGIBLE record without contact details.
func newFlowRouter(t *testing.T) (http.Handler, *shadow.InMemory) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shadows := shadow.NewInMemory()
	require.NoError(t, shadows.Save(ctx, &models.ShadowUser{
		Channel: "ntp", UserExtID: "u1", Name: "Asha", UserStatus: dirmodels.StatusActive,
		ClaimStatus: models.ClaimStatusEligible,
	}))
	settingsStore := settings.NewInMemory()
	require.NoError(t, settingsStore.Set(ctx, settings.CustodianOrgID, "CUST"))
	index := search.NewInMemory()

	orgs, err := resolver.NewOrganisationResolver(index, settingsStore, organisation.NewInMemory(), resolver.OrgCaches{
		Org:       cache.NewInMemory("org", time.Hour),
		RootOrg:   cache.NewInMemory("root_org", time.Hour),
		Custodian: cache.NewInMemory("custodian", time.Hour),
		HashTag:   cache.NewInMemory("hashtag", time.Hour),
	}, resolver.WithOrgLogger(logger))
	require.NoError(t, err)
	identities, err := resolver.NewIdentityResolver(index, orgs, resolver.WithIdentityLogger(logger))
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	reconciler, err := service.NewReconciler(service.Stores{
		Shadows:     shadows,
		Users:       user.NewInMemory(),
		Memberships: membership.NewInMemory(),
		Links:       externalid.NewInMemory(),
		Index:       index,
	}, identities, orgs, service.WithLogger(logger), service.WithMetrics(m))
	require.NoError(t, err)
	driver, err := service.NewDriver(shadows, reconciler, lock.NewInMemory(),
		service.WithDriverLogger(logger), service.WithDriverMetrics(m))
	require.NoError(t, err)

	h, err := New(driver, WithHealthChecker(HealthFunc(orgs.Preflight)), WithLogger(logger), WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(middleware.RequestID, requesttime.Middleware)
	h.Register(r)
	return r, shadows
}

func migrateBody(action string) map[string]any {
	return map[string]any{"request": map[string]string{"channel": "ntp", "userExtId": "u1", "action": action}}
}

func TestMigrationFlow(t *testing.T) {
	testutil.Given(t, "an eligible shadow record without contact details", func(t *testing.T) {
		testutil.When(t, "the user accepts", func(t *testing.T) {
			router, shadows := newFlowRouter(t)
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/user/migrate", migrateBody("accept")))

			testutil.Then(t, "nothing matches and the record stays eligible", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, models.OutcomeNoMatch, testutil.UnmarshalResponse[OutcomeResponse](t, rr).Outcome)
				rec, err := shadows.FindByKey(context.Background(), models.Key{Channel: "ntp", UserExtID: "u1"})
				require.NoError(t, err)
				assert.Equal(t, models.ClaimStatusEligible, rec.ClaimStatus)
			})
		})

		testutil.When(t, "the user rejects", func(t *testing.T) {
			router, shadows := newFlowRouter(t)
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/user/migrate", migrateBody("reject")))

			testutil.Then(t, "the record is rejected", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				rec, err := shadows.FindByKey(context.Background(), models.Key{Channel: "ntp", UserExtID: "u1"})
				require.NoError(t, err)
				assert.Equal(t, models.ClaimStatusRejected, rec.ClaimStatus)
			})
		})
	})

	testutil.Given(t, "an unknown record", func(t *testing.T) {
		router, _ := newFlowRouter(t)
		body := map[string]any{"request": map[string]string{"channel": "ntp", "userExtId": "nobody", "action": "accept"}}
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/user/migrate", body))

		testutil.Then(t, "it answers 404", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
		})
	})

	testutil.Given(t, "a configured custodian", func(t *testing.T) {
		router, _ := newFlowRouter(t)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

		testutil.Then(t, "health is ok", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	})
}
