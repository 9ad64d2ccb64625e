package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"identity-service/internal/model"
)

// Provider is one federated identity collaborator: a redirect-based
// authorization flow plus a token-introspection endpoint that resolves the
// provider access token to an email.
type Provider interface {
	Name() model.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (accessToken string, err error)
	ResolveEmail(ctx context.Context, accessToken string) (email string, err error)
}

// Registry holds the configured providers keyed by their URL slug.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(string(p.Name()))] = p
	}
	return r
}

func (r *Registry) Get(slug string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil, model.ErrUnknownProvider
	}
	return p, nil
}

// StateToken returns a random value binding the redirect to its callback.
func StateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// introspect performs the provider HTTP call and decodes the JSON body into
// out. Transport failures (including the client timeout) surface as
// ErrProviderUnavailable so callers can report a retryable outcome; a 4xx
// means the provider rejected the token itself.
func introspect(ctx context.Context, client *http.Client, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build introspection request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read introspection response: %v", model.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return model.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: introspection status %d", model.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode introspection response: %w", err)
	}
	return nil
}
