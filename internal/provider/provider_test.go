package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"identity-service/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	google := NewGoogle("id", "secret", "http://localhost/cb", time.Second)
	yandex := NewYandex("id", "secret", "http://localhost/cb", time.Second)
	registry := NewRegistry(google, yandex)

	t.Run("lookup is case and whitespace insensitive", func(t *testing.T) {
		p, err := registry.Get(" Google ")
		require.NoError(t, err)
		require.Equal(t, model.ProviderGoogle, p.Name())

		p, err = registry.Get("yandex")
		require.NoError(t, err)
		require.Equal(t, model.ProviderYandex, p.Name())
	})

	t.Run("unknown slug", func(t *testing.T) {
		_, err := registry.Get("github")
		require.ErrorIs(t, err, model.ErrUnknownProvider)
	})
}

func TestStateToken(t *testing.T) {
	t.Parallel()

	a, err := StateToken()
	require.NoError(t, err)
	b, err := StateToken()
	require.NoError(t, err)

	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestGoogleResolveEmail(t *testing.T) {
	t.Parallel()

	t.Run("returns the email from tokeninfo", func(t *testing.T) {
		var gotToken string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.URL.Query().Get("access_token")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"email":"alice@example.com","email_verified":"true"}`))
		}))
		defer srv.Close()

		g := NewGoogle("id", "secret", "http://localhost/cb", time.Second)
		g.tokenInfoURL = srv.URL

		email, err := g.ResolveEmail(context.Background(), "provider-token")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", email)
		require.Equal(t, "provider-token", gotToken)
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		g := NewGoogle("id", "secret", "http://localhost/cb", time.Second)
		g.tokenInfoURL = srv.URL

		_, err := g.ResolveEmail(context.Background(), "bad-token")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("missing email is unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		g := NewGoogle("id", "secret", "http://localhost/cb", time.Second)
		g.tokenInfoURL = srv.URL

		_, err := g.ResolveEmail(context.Background(), "token")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("slow provider surfaces as unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		g := NewGoogle("id", "secret", "http://localhost/cb", 20*time.Millisecond)
		g.tokenInfoURL = srv.URL

		_, err := g.ResolveEmail(context.Background(), "token")
		require.ErrorIs(t, err, model.ErrProviderUnavailable)
	})

	t.Run("server error surfaces as unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		g := NewGoogle("id", "secret", "http://localhost/cb", time.Second)
		g.tokenInfoURL = srv.URL

		_, err := g.ResolveEmail(context.Background(), "token")
		require.ErrorIs(t, err, model.ErrProviderUnavailable)
	})
}

func TestYandexResolveEmail(t *testing.T) {
	t.Parallel()

	t.Run("returns the default email", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "json", r.URL.Query().Get("format"))
			require.Equal(t, "provider-token", r.URL.Query().Get("oauth_token"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"42","login":"alice","default_email":"alice@yandex.ru"}`))
		}))
		defer srv.Close()

		y := NewYandex("id", "secret", "http://localhost/cb", time.Second)
		y.infoURL = srv.URL

		email, err := y.ResolveEmail(context.Background(), "provider-token")
		require.NoError(t, err)
		require.Equal(t, "alice@yandex.ru", email)
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer srv.Close()

		y := NewYandex("id", "secret", "http://localhost/cb", time.Second)
		y.infoURL = srv.URL

		_, err := y.ResolveEmail(context.Background(), "bad-token")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	t.Parallel()

	g := NewGoogle("client-id", "secret", "http://localhost/cb", time.Second)
	u := g.AuthCodeURL("state-123")
	require.Contains(t, u, "state=state-123")
	require.Contains(t, u, "client_id=client-id")
}
