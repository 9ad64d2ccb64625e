package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"identity-service/internal/model"
)

const googleTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

type Google struct {
	conf         *oauth2.Config
	client       *http.Client
	tokenInfoURL string
}

func NewGoogle(clientID string, clientSecret string, redirectURL string, timeout time.Duration) *Google {
	return &Google{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		client:       &http.Client{Timeout: timeout},
		tokenInfoURL: googleTokenInfoURL,
	}
}

func (g *Google) Name() model.Provider {
	return model.ProviderGoogle
}

func (g *Google) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *Google) Exchange(ctx context.Context, code string) (string, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: google code exchange: %v", model.ErrProviderUnavailable, err)
	}
	return token.AccessToken, nil
}

// ResolveEmail asks Google's tokeninfo endpoint which email the access
// token belongs to.
func (g *Google) ResolveEmail(ctx context.Context, accessToken string) (string, error) {
	var payload struct {
		Email string `json:"email"`
	}

	endpoint := g.tokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)
	if err := introspect(ctx, g.client, endpoint, nil, &payload); err != nil {
		return "", err
	}

	if payload.Email == "" {
		return "", fmt.Errorf("google tokeninfo returned no email: %w", model.ErrUnauthorized)
	}
	return payload.Email, nil
}
