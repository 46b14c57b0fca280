package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authgate "github.com/e202/authgate"
	"github.com/e202/authgate/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type staticAccounts struct {
	mu   sync.Mutex
	byID map[string]authgate.Account
}

func (s *staticAccounts) FindByID(_ context.Context, id string) (*authgate.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.byID[id]; ok {
		out := acc
		return &out, nil
	}
	return nil, nil
}

func (s *staticAccounts) FindByEmail(_ context.Context, email string) (*authgate.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.byID {
		if acc.Email == email {
			out := acc
			return &out, nil
		}
	}
	return nil, nil
}

func (s *staticAccounts) Create(context.Context, *authgate.Account) error { return nil }

func (s *staticAccounts) UpdatePasswordHash(context.Context, string, string) error { return nil }

func (s *staticAccounts) SoftDelete(context.Context, string) error { return nil }

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string, []authgate.InlineAsset) error {
	return nil
}

type gateFixture struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	engine *authgate.Engine
	codec  *token.Codec
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authgate.Config{}
	cfg.Token.SigningSecret = testSecret

	accounts := &staticAccounts{byID: map[string]authgate.Account{
		"acc-1": {ID: "acc-1", Email: "alice@example.com"},
	}}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		WithMailer(noopMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	codec, err := token.NewCodec(testSecret, "")
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	return &gateFixture{mr: mr, rdb: rdb, engine: engine, codec: codec}
}

// openSession seeds a live refresh record for the account, as Login would.
func (f *gateFixture) openSession(t *testing.T, accountID, email string) {
	t.Helper()

	refresh, err := f.codec.Mint(email, "", time.Hour)
	if err != nil {
		t.Fatalf("Mint refresh failed: %v", err)
	}
	if err := f.mr.Set("RT:"+accountID, refresh); err != nil {
		t.Fatalf("seed refresh record failed: %v", err)
	}
}

func echoPrincipal(t *testing.T, got **Principal) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("handler reached without principal")
		}
		*got = p
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("error body does not decode: %v", err)
	}
	return body.Code, body.Message
}

func TestGatePublicPathBypasses(t *testing.T) {
	f := newGateFixture(t)

	called := false
	h := Gate(f.engine, []string{"/auth/login", "/static/*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := PrincipalFromContext(r.Context()); ok {
			t.Error("public request must not carry a principal")
		}
	}))

	for _, path := range []string{"/auth/login", "/static/css/site.css"} {
		called = false
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if !called {
			t.Errorf("%s: handler not reached", path)
		}
	}
}

func TestGateMissingToken(t *testing.T) {
	f := newGateFixture(t)

	h := Gate(f.engine, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer ", "bearer lowercase"} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if code, _ := decodeErrorBody(t, rec); code != "AUTH_UNAUTHORIZED" {
			t.Errorf("header %q: code = %q, want AUTH_UNAUTHORIZED", header, code)
		}
	}
}

func TestGateValidToken(t *testing.T) {
	f := newGateFixture(t)

	tok, err := f.codec.Mint("acc-1", "user", time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	var principal *Principal
	h := Gate(f.engine, nil)(echoPrincipal(t, &principal))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if principal == nil || principal.AccountID != "acc-1" {
		t.Fatalf("principal = %+v, want acc-1", principal)
	}
	if principal.Renewed {
		t.Error("valid token must not be marked renewed")
	}
	if rec.Header().Get("Authorization") != "" {
		t.Error("no renewal header expected for a valid token")
	}
}

func TestGateRenewsExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	f.openSession(t, "acc-1", "alice@example.com")

	expired, err := f.codec.Mint("acc-1", "user", -time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	var principal *Principal
	h := Gate(f.engine, nil)(echoPrincipal(t, &principal))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if principal == nil || !principal.Renewed {
		t.Fatalf("principal = %+v, want renewed", principal)
	}

	header := rec.Header().Get("Authorization")
	fresh, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		t.Fatalf("Authorization header = %q, want Bearer token", header)
	}
	if fresh == expired {
		t.Fatal("renewed token must differ from the expired one")
	}
	claims, err := f.codec.Verify(fresh)
	if err != nil {
		t.Fatalf("renewed token does not verify: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Errorf("renewed subject = %q, want acc-1", claims.Subject)
	}
}

func TestGateExpiredTokenWithoutSession(t *testing.T) {
	f := newGateFixture(t)

	expired, err := f.codec.Mint("acc-1", "user", -time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	h := Gate(f.engine, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code, _ := decodeErrorBody(t, rec); code != "E401-003" {
		t.Errorf("code = %q, want E401-003", code)
	}
}

// Classified 5xx errors carry wrapped infrastructure detail (relay address,
// auth failure text); the body must keep the code but drop the message.
func TestWriteErrorMasksClassifiedServerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := fmt.Errorf("%w: dial smtp.internal.example:587: auth failed for svc-mailer", authgate.ErrEmailSendFailed)
	WriteError(rec, wrapped)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	code, message := decodeErrorBody(t, rec)
	if code != "E500-003" {
		t.Errorf("code = %q, want E500-003", code)
	}
	if message != "internal server error" {
		t.Errorf("message = %q, mailer detail must not leak", message)
	}
}

func TestWriteErrorKeepsClientErrorMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, authgate.ErrOTPMismatch)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	code, message := decodeErrorBody(t, rec)
	if code != "E400-005" {
		t.Errorf("code = %q, want E400-005", code)
	}
	if message != authgate.ErrOTPMismatch.Error() {
		t.Errorf("message = %q, client errors keep their message", message)
	}
}

func TestGateMasksInternalErrors(t *testing.T) {
	f := newGateFixture(t)
	f.openSession(t, "acc-1", "alice@example.com")

	expired, err := f.codec.Mint("acc-1", "user", -time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	// Kill the backing store so the renewal lookup fails with an
	// infrastructure error.
	f.mr.Close()

	h := Gate(f.engine, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	code, message := decodeErrorBody(t, rec)
	if code != "E500-001" {
		t.Errorf("code = %q, want E500-001", code)
	}
	if message != "internal server error" {
		t.Errorf("message = %q, internal detail must not leak", message)
	}
}
