package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"seasonfarm/observability/logging"
)

// AuthConfig controls bearer token authentication of write calls. The token
// subject is the hex address the calls are executed from.
type AuthConfig struct {
	Enabled    bool
	HMACSecret []byte
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const (
	contextKeyCaller    contextKey = "rpc.caller"
	contextKeyRequestID contextKey = "rpc.requestid"
)

type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if cfg.Enabled && len(cfg.HMACSecret) == 0 {
		return nil, errors.New("rpc: auth secret not configured")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, logger: slog.Default()}, nil
}

// Enabled reports whether callers must present a bearer token.
func (a *Authenticator) Enabled() bool { return a.cfg.Enabled }

// Middleware resolves the caller from the bearer token when one is present.
// Requests without a token pass through anonymously; write methods reject
// them later. A token that fails validation is rejected here.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := a.Authenticate(tokenString)
		if err != nil {
			a.logger.Debug("rejected bearer token",
				logging.MaskField("authorization", tokenString),
				slog.String("requestid", requestIDFrom(r.Context())),
				slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "invalid token", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate validates the token and returns the address in its subject.
func (a *Authenticator) Authenticate(tokenString string) (common.Address, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return common.Address{}, err
	}
	if err := validateClaims(claims, a.cfg.Issuer, a.cfg.Audience); err != nil {
		return common.Address{}, err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return common.Address{}, err
	}
	sub = strings.TrimSpace(sub)
	if !common.IsHexAddress(sub) {
		return common.Address{}, errors.New("subject is not an address")
	}
	return common.HexToAddress(sub), nil
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.cfg.HMACSecret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			matched := false
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					matched = true
					break
				}
			}
			if !matched {
				return errors.New("audience mismatch")
			}
		default:
			return errors.New("audience mismatch")
		}
	}
	return nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func callerFrom(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(common.Address)
	return caller, ok
}

// resolveCaller returns the account a write call executes as. With auth
// enabled it is the token subject and an explicit caller must agree with it.
// With auth disabled the explicit caller is used.
func (s *Server) resolveCaller(r *http.Request, explicit string) (common.Address, error) {
	if s.auth.Enabled() {
		caller, ok := callerFrom(r.Context())
		if !ok {
			return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
		}
		if strings.TrimSpace(explicit) != "" {
			claimed, err := parseAddress("caller", explicit)
			if err != nil {
				return common.Address{}, err
			}
			if claimed != caller {
				return common.Address{}, &RPCError{Code: codeUnauthorized, Message: "caller does not match token subject"}
			}
		}
		return caller, nil
	}
	if strings.TrimSpace(explicit) == "" {
		return common.Address{}, invalidParams("caller required")
	}
	return parseAddress("caller", explicit)
}
