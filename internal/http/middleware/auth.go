package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the caller kind carried in the token.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

type contextKey string

const principalKey contextKey = "principal"

// Claims are the HMAC-signed bearer token claims. Subject is the account id;
// doctors also carry the doctor aggregate they manage.
type Claims struct {
	Role     Role   `json:"role"`
	DoctorID string `json:"doctor_id,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	AccountID string
	Role      Role
	DoctorID  string
	Name      string
}

var errMissingBearer = errors.New("missing authorization header")

// IssueToken signs claims for the given principal.
func IssueToken(secret string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     p.Role,
		DoctorID: p.DoctorID,
		Name:     p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseBearer(r *http.Request, secret string) (Principal, error) {
	raw := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	} else if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		// Browsers cannot set headers on a websocket handshake.
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return Principal{}, errMissingBearer
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" || (claims.Role == RoleDoctor && claims.DoctorID == "") {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	return Principal{AccountID: claims.Subject, Role: claims.Role, DoctorID: claims.DoctorID, Name: claims.Name}, nil
}

// Authenticate requires a valid bearer token when required is true; otherwise
// it attaches a principal only when a valid token is present.
func Authenticate(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				if required {
					http.Error(w, "auth disabled", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			p, err := parseBearer(r, secret)
			if err != nil {
				if required || !errors.Is(err, errMissingBearer) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			} else {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated callers without one of roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
