package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobtracker/client/internal/apitest"
	"jobtracker/client/internal/cache"
	"jobtracker/client/internal/cache/file"
	"jobtracker/client/internal/config"
	"jobtracker/client/internal/errors"
	"jobtracker/client/internal/models"
	"jobtracker/client/internal/notify"
	"jobtracker/client/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	server    *apitest.Server
	store     *session.Store
	reporter  *notify.Recorder
	redirects int32
	lastPath  atomic.Value
	records   *RecordService
	auth      *AuthService
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	c, err := file.New(cache.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	store, err := session.NewStore(context.Background(), c, zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		reporter: &notify.Recorder{},
	}
	cfg := &config.Config{
		APIBaseURL: baseURL,
		APITimeout: 5 * time.Second,
		LoginPath:  "/login",
	}
	nav := NavigatorFunc(func(path string) {
		atomic.AddInt32(&f.redirects, 1)
		f.lastPath.Store(path)
	})

	gateway := NewGateway(zap.NewNop(), cfg, store, f.reporter, nav)
	f.records = NewRecordService(zap.NewNop(), gateway)
	f.auth = NewAuthService(zap.NewNop(), gateway, store)
	return f
}

// signedIn starts a fake server with one user and logs that user in.
func signedIn(t *testing.T) *fixture {
	t.Helper()
	server := apitest.New(t)
	server.AddUser("ana", "ana@example.com", "secret1")

	f := newFixture(t, server.BaseURL())
	f.server = server
	_, err := f.auth.Login(context.Background(), "ana", "secret1")
	require.NoError(t, err)
	return f
}

func input(company, role string, status models.Status, day int) models.ApplicationInput {
	return models.ApplicationInput{
		Company:     company,
		Role:        role,
		Status:      status,
		DateApplied: models.NewDate(2024, time.March, day),
	}
}

func TestLoginStoresSession(t *testing.T) {
	f := signedIn(t)

	assert.True(t, f.auth.IsAuthenticated())
	user := f.auth.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, "ana@example.com", user.Email)
	sess, _ := f.store.Snapshot()
	assert.NotEmpty(t, sess.Token)
}

func TestLoginBadCredentials(t *testing.T) {
	server := apitest.New(t)
	server.AddUser("ana", "ana@example.com", "secret1")
	f := newFixture(t, server.BaseURL())

	_, err := f.auth.Login(context.Background(), "ana", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeUnauthenticated))

	msg, ok := errors.ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Invalid username or password", msg)
	assert.False(t, f.auth.IsAuthenticated())
}

func TestSignup(t *testing.T) {
	server := apitest.New(t)
	f := newFixture(t, server.BaseURL())
	ctx := context.Background()

	resp, err := f.auth.Signup(ctx, "bruno", "bruno@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully!", resp.Message)
	assert.False(t, f.auth.IsAuthenticated())

	_, err = f.auth.Signup(ctx, "bruno", "other@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeInvalidInput))
	msg, _ := errors.ServerMessage(err)
	assert.Equal(t, "Error: Username is already taken!", msg)

	_, err = f.auth.Signup(ctx, "x", "nope", "123")
	require.Error(t, err)
	fields := errors.FieldErrors(err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLogout(t *testing.T) {
	f := signedIn(t)

	require.NoError(t, f.auth.Logout(context.Background()))
	assert.False(t, f.auth.IsAuthenticated())
	assert.Nil(t, f.auth.CurrentUser())
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.redirects))
}

func TestRecordLifecycle(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	created, err := f.records.Create(ctx, input("Acme", "SRE", models.StatusApplied, 1))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ana", created.Username)
	assert.NotEmpty(t, created.CreatedAt)

	got, err := f.records.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)

	edit := got.Input()
	edit.Status = models.StatusInterview
	edit.Notes = "phone screen"
	updated, err := f.records.Update(ctx, created.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterview, updated.Status)
	assert.Equal(t, "phone screen", updated.Notes)

	stats, err := f.records.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Interview)

	require.NoError(t, f.records.Remove(ctx, created.ID))

	_, err = f.records.Get(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeNotFound))
	assert.True(t, f.auth.IsAuthenticated())
}

func TestListQueries(t *testing.T) {
	f := signedIn(t)
	f.server.Seed("ana",
		input("Google", "SWE", models.StatusInterview, 1),
		input("Google", "SRE", models.StatusApplied, 2),
		input("Acme", "Google liaison", models.StatusInterview, 3),
		input("Initech", "Developer", models.StatusRejected, 4),
	)
	for day := 5; day < 17; day++ {
		f.server.Seed("ana", input("Globex", "Engineer", models.StatusApplied, day))
	}

	testCases := []struct {
		name       string
		query      models.ViewQuery
		wantCount  int
		wantPages  int
		wantFirst  string
		wantStatus models.Status
	}{
		{
			name:      "first page newest first",
			query:     models.DefaultViewQuery(),
			wantCount: 10,
			wantPages: 2,
			wantFirst: "Globex",
		},
		{
			name:      "second page",
			query:     models.DefaultViewQuery().WithPage(1),
			wantCount: 6,
			wantPages: 2,
			wantFirst: "Globex",
		},
		{
			name:      "keyword matches company or role",
			query:     models.DefaultViewQuery().WithKeyword("google"),
			wantCount: 3,
			wantPages: 1,
			wantFirst: "Acme",
		},
		{
			name:       "keyword and status",
			query:      models.DefaultViewQuery().WithKeyword("Google").WithStatus(models.StatusInterview),
			wantCount:  2,
			wantPages:  1,
			wantFirst:  "Acme",
			wantStatus: models.StatusInterview,
		},
		{
			name:      "no match",
			query:     models.DefaultViewQuery().WithKeyword("umbrella"),
			wantCount: 0,
			wantPages: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := f.records.List(context.Background(), tc.query)
			require.NoError(t, err)
			assert.Len(t, page.Content, tc.wantCount)
			assert.Equal(t, tc.wantPages, page.TotalPages)
			if tc.wantFirst != "" {
				assert.Equal(t, tc.wantFirst, page.Content[0].Company)
			}
			if tc.wantStatus != "" {
				for _, rec := range page.Content {
					assert.Equal(t, tc.wantStatus, rec.Status)
				}
			}
		})
	}
}

func TestValidationFailureCarriesServerMessage(t *testing.T) {
	f := signedIn(t)

	_, err := f.records.Create(context.Background(), input("Acme", "", models.StatusApplied, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeInvalidInput))

	msg, ok := errors.ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Invalid input data", msg)
	assert.Equal(t, "Role is required", errors.FieldErrors(err)["role"])
}

func TestUnauthorizedClearsSessionOnce(t *testing.T) {
	f := signedIn(t)
	f.server.ExpireSessions()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.records.List(context.Background(), models.DefaultViewQuery())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTypeUnauthenticated))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.redirects))
	assert.Equal(t, "/login", f.lastPath.Load())
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, callers, f.server.Hits(apitest.RouteList))
}

func TestUnauthorizedWithoutSessionDoesNotRedirect(t *testing.T) {
	server := apitest.New(t)
	f := newFixture(t, server.BaseURL())

	_, err := f.records.List(context.Background(), models.DefaultViewQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeUnauthenticated))
	assert.Equal(t, 1, server.Hits(apitest.RouteList))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.redirects))
	assert.Empty(t, f.reporter.Notices())
}

func TestUnauthorizedDoesNotClearNewerSession(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	f.server.ExpireSessions()

	_, err := f.records.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.redirects))

	_, err = f.auth.Login(ctx, "ana", "secret1")
	require.NoError(t, err)

	_, err = f.records.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, f.store.IsAuthenticated())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.redirects))
}

func TestForbiddenAlertsAndKeepsSession(t *testing.T) {
	f := signedIn(t)
	f.server.Fail(apitest.RouteUpdate, http.StatusForbidden, "Access denied")

	_, err := f.records.Update(context.Background(), 42, input("Acme", "SRE", models.StatusOffer, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeForbidden))

	assert.Equal(t, []string{ForbiddenNotice}, f.reporter.Messages(notify.LevelAlert))
	assert.True(t, f.store.IsAuthenticated())
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.redirects))
}

func TestServerErrorWithoutBody(t *testing.T) {
	f := signedIn(t)
	f.server.Fail(apitest.RouteStats, http.StatusServiceUnavailable, "")

	_, err := f.records.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeUnavailable))
	_, ok := errors.ServerMessage(err)
	assert.False(t, ok)
	assert.True(t, f.store.IsAuthenticated())
}

func TestNetworkFailure(t *testing.T) {
	server := apitest.New(t)
	baseURL := server.BaseURL()
	server.Close()

	f := newFixture(t, baseURL)
	_, err := f.records.List(context.Background(), models.DefaultViewQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeUnavailable))
	assert.Empty(t, f.reporter.Notices())
}

func TestRequestsCarryUniqueRequestIDs(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	_, err := f.records.Stats(ctx)
	require.NoError(t, err)
	_, err = f.records.List(ctx, models.DefaultViewQuery())
	require.NoError(t, err)

	ids := f.server.RequestIDs()
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
