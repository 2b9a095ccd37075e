// SPDX-License-Identifier: AGPL-3.0-only
package authflow

import (
	"golang.org/x/oauth2"
)

var VKIDEndpoint = oauth2.Endpoint{
	AuthURL:  "https://id.vk.com/authorize",
	TokenURL: "https://id.vk.com/oauth2/auth",
}

// Provider builds VK ID authorization URLs. The code itself is exchanged by
// the backend, so only the authorize half of the oauth2 config is used.
type Provider struct {
	cfg *oauth2.Config
}

func NewProvider(appID, redirectURL string, scopes []string) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:    appID,
			RedirectURL: redirectURL,
			Scopes:      scopes,
			Endpoint:    VKIDEndpoint,
		},
	}
}

func (p *Provider) AppID() string { return p.cfg.ClientID }
func (p *Provider) RedirectURL() string { return p.cfg.RedirectURL }

// AuthURL returns the authorize URL carrying the S256 challenge of verifier.
func (p *Provider) AuthURL(state, verifier string) string {
	return p.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}
