package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/yandex"

	"identity-service/internal/model"
)

const yandexInfoURL = "https://login.yandex.ru/info"

type Yandex struct {
	conf    *oauth2.Config
	client  *http.Client
	infoURL string
}

func NewYandex(clientID string, clientSecret string, redirectURL string, timeout time.Duration) *Yandex {
	return &Yandex{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     yandex.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"login:email"},
		},
		client:  &http.Client{Timeout: timeout},
		infoURL: yandexInfoURL,
	}
}

func (y *Yandex) Name() model.Provider {
	return model.ProviderYandex
}

func (y *Yandex) AuthCodeURL(state string) string {
	return y.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (y *Yandex) Exchange(ctx context.Context, code string) (string, error) {
	token, err := y.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: yandex code exchange: %v", model.ErrProviderUnavailable, err)
	}
	return token.AccessToken, nil
}

// ResolveEmail asks the Yandex login info endpoint for the default email of
// the token's owner.
func (y *Yandex) ResolveEmail(ctx context.Context, accessToken string) (string, error) {
	var payload struct {
		DefaultEmail string `json:"default_email"`
	}

	endpoint := y.infoURL + "?format=json&oauth_token=" + url.QueryEscape(accessToken)
	if err := introspect(ctx, y.client, endpoint, nil, &payload); err != nil {
		return "", err
	}

	if payload.DefaultEmail == "" {
		return "", fmt.Errorf("yandex info returned no email: %w", model.ErrUnauthorized)
	}
	return payload.DefaultEmail, nil
}
