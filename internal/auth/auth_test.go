package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("Bearer "))
	assert.Empty(t, BearerToken(""))
}

func TestProviderClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"u1","email":"a@example.com"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	p := NewProviderClient(srv.URL+"/", "anon")

	u, err := p.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Email: "a@example.com"}, u)

	_, err = p.Authenticate(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = p.Authenticate(context.Background(), "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	_, err = p.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStaticAndChain(t *testing.T) {
	s, err := ParseStatic("dev1:u1:a@example.com, dev2:u2")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u2"}, s["dev2"])

	_, err = ParseStatic("broken")
	assert.Error(t, err)

	chain := Chain{Static{"x": {ID: "ux"}}, s}
	u, err := chain.Authenticate(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = chain.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserContext(t *testing.T) {
	ctx := WithUser(context.Background(), &User{ID: "u1"})
	assert.Equal(t, "u1", UserFrom(ctx).ID)
	assert.Nil(t, UserFrom(context.Background()))
}
