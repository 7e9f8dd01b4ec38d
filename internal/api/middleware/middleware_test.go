package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	mw "github.com/keygate-io/keygate/internal/api/middleware"
	"github.com/keygate-io/keygate/internal/auth"
	"github.com/keygate-io/keygate/internal/cache"
	"github.com/keygate-io/keygate/internal/crypto"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	auth  *mw.Auth
	rate  *mw.RateLimit
	token string
}

// setup builds the middleware over a real service with an in-memory store
// and one issued endpoint key scoped to /protected.
func setup(t *testing.T, requestsPerMin int) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rc.Close()) })

	sealer, err := crypto.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	codec := token.NewCodec(sealer)

	ms := store.NewMemoryStore()
	router := tenant.NewRouter(ms, rc)
	issuer := auth.NewIssuer(ms, router, codec, 90)
	evaluator := auth.NewEvaluator(codec, ms, router)
	svc := auth.NewService(issuer, evaluator, codec, ms, router)

	tn, err := ms.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	owner := uuid.New()
	require.NoError(t, ms.AssignTenant(ctx, owner, tn.ID))

	_, tok, err := issuer.IssueEndpointKey(ctx, owner, "test", []string{"/protected"})
	require.NoError(t, err)

	return &fixture{
		auth:  mw.NewAuth(svc, codec.Digest),
		rate:  mw.NewRateLimit(rc, requestsPerMin),
		token: tok,
	}
}

func protectedHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := mw.GetTenantHandle(r)
		require.True(t, ok, "tenant handle must be set after auth")
		assert.Equal(t, "acme", h.Tenant.Name)

		k, ok := mw.GetKeyRecord(r)
		require.True(t, ok, "key record must be set after auth")
		assert.Equal(t, "test", k.Name)

		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	f := setup(t, 60)
	h := f.auth.Authenticate(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	f := setup(t, 60)
	h := f.auth.Authenticate(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_BadScheme(t *testing.T) {
	f := setup(t, 60)
	h := f.auth.Authenticate(protectedHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic "+f.token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Denial bodies must be byte-identical regardless of why the request was
// refused, so a caller cannot probe key state through response content.
func TestAuthenticate_DenialBodyIsUniform(t *testing.T) {
	f := setup(t, 60)
	h := f.auth.Authenticate(protectedHandler(t))

	bodies := map[string][]byte{}
	for name, r := range map[string]*http.Request{
		"garbage-token": authedRequest("/protected", "not-a-token"),
		"out-of-scope":  authedRequest("/other-path", f.token),
		"no-token":      httptest.NewRequest(http.MethodGet, "/protected", nil),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
		bodies[name] = rec.Body.Bytes()
	}

	assert.Equal(t, bodies["garbage-token"], bodies["out-of-scope"])
	assert.Equal(t, bodies["garbage-token"], bodies["no-token"])
}

func authedRequest(path, tok string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestRateLimit_OverLimit(t *testing.T) {
	f := setup(t, 2)
	h := f.auth.Authenticate(f.rate.Limit(protectedHandler(t)))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest("/protected", f.token))
		require.Equal(t, http.StatusOK, rec.Code, "request %d within limit", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("/protected", f.token))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
}

func TestRateLimit_PassThroughWithoutAuth(t *testing.T) {
	f := setup(t, 1)
	called := false
	h := f.rate.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.True(t, called, "no digest in context means the limiter steps aside")
}

func TestRecovery(t *testing.T) {
	h := mw.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogger_PreservesStatus(t *testing.T) {
	h := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
