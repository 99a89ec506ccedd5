package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ErrUnauthenticated is returned for missing, unknown or expired tokens.
var ErrUnauthenticated = errors.New("not authenticated")

// User is the signed-in account behind a bearer token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// ProviderClient asks the identity provider who owns a token.
type ProviderClient struct {
	httpClient *resty.Client
}

// NewProviderClient creates a client for the provider at baseURL. apiKey
// is sent as the apikey header on every request.
func NewProviderClient(baseURL, apiKey string) *ProviderClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("apikey", apiKey)
	}
	return &ProviderClient{httpClient: c}
}

func (p *ProviderClient) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	var user User
	res, err := p.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}
	switch {
	case res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case res.IsError():
		return nil, fmt.Errorf("identity provider returned status %d", res.StatusCode())
	case user.ID == "":
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

// Static authenticates a fixed set of tokens, for development and tests.
type Static map[string]User

// ParseStatic reads "token:userID:email" entries separated by commas.
func ParseStatic(raw string) (Static, error) {
	s := Static{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid dev token entry %q", entry)
		}
		u := User{ID: parts[1]}
		if len(parts) == 3 {
			u.Email = parts[2]
		}
		s[parts[0]] = u
	}
	return s, nil
}

func (s Static) Authenticate(_ context.Context, token string) (*User, error) {
	u, ok := s[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &u, nil
}

// Chain tries each authenticator in order and returns the first match.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, token string) (*User, error) {
	for _, a := range c {
		u, err := a.Authenticate(ctx, token)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			log.Warn().Err(err).Msg("authenticator failed")
		}
	}
	return nil, ErrUnauthenticated
}

type userKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored by WithUser, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}
