// Package middleware provides the per-request authentication gate for
// net/http servers. The gate authenticates bearer access tokens and, when a
// token has expired but its subject still holds a live session, transparently
// renews it mid-request, surfacing the replacement in the response
// Authorization header.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	authgate "github.com/e202/authgate"
)

type principalContextKey struct{}

// Principal is the authenticated identity attached to gated requests.
type Principal struct {
	AccountID string
	Role      string
	// Renewed is true when this request's token was expired and silently
	// replaced; the fresh token is already on the response header.
	Renewed bool
}

// PrincipalFromContext returns the principal the gate attached, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

// Gate wraps handlers with the authentication state machine. Public paths
// bypass it entirely: an entry matches exactly, or as a prefix when it ends
// in "/*".
func Gate(engine *authgate.Engine, publicPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if engine == nil {
				WriteError(w, authgate.ErrUnauthenticated)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, authgate.ErrUnauthenticated)
				return
			}

			res, err := engine.Authenticate(r.Context(), tok)
			if err != nil {
				WriteError(w, err)
				return
			}

			principal := &Principal{
				AccountID: res.AccountID,
				Role:      res.Role,
			}
			if res.RenewedToken != "" {
				principal.Renewed = true
				w.Header().Set("Authorization", "Bearer "+res.RenewedToken)
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublicPath(publicPaths []string, path string) bool {
	for _, p := range publicPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError renders err as the JSON error body its classification maps to.
func WriteError(w http.ResponseWriter, err error) {
	code := authgate.Classify(err)

	msg := err.Error()
	if code.Status >= http.StatusInternalServerError {
		// Server-side failures carry infrastructure detail (relay addresses,
		// driver errors); none of it belongs in a client body.
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.Status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Code:    code.Code,
		Message: msg,
	})
}
