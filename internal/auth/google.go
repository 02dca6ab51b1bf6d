package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the portion of the userinfo response we care about.
type GoogleUser struct {
	Sub     string `json:"sub"` // Google's stable account id
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider wraps golang.org/x/oauth2 for the Google authorization-code flow.
// The code-for-token exchange happens server to server; the access token never
// reaches the browser.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a provider for the given OAuth app credentials.
// callbackURL must match the redirect URI registered in the Google console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the consent-screen URL the login handler should redirect to.
// state is verified on callback to prevent CSRF.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the user profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	client := p.config.Client(ctx, tok)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var gu GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if gu.Sub == "" {
		return nil, fmt.Errorf("userinfo missing subject")
	}
	return &gu, nil
}
