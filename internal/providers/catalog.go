package providers

import (
	"golang.org/x/oauth2/endpoints"
)

// Default returns the built-in provider catalog. Endpoint URLs come from
// golang.org/x/oauth2/endpoints where that package defines them; providers
// it does not cover are defined inline. Client credentials are not part of
// the catalog; they are supplied per deployment through the credential
// source.
func Default() *Registry {
	r, err := NewRegistry(
		Definition{
			ID:        "google",
			Name:      "Google Workspace",
			AuthURL:   endpoints.Google.AuthURL,
			TokenURL:  endpoints.Google.TokenURL,
			RevokeURL: "https://oauth2.googleapis.com/revoke",
			DefaultScopes: []string{
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/calendar.readonly",
			},
			SupportsPKCE: true,
		},
		Definition{
			ID:            "microsoft",
			Name:          "Microsoft 365",
			AuthURL:       endpoints.Microsoft.AuthURL,
			TokenURL:      endpoints.Microsoft.TokenURL,
			DefaultScopes: []string{"offline_access", "Mail.Read", "Calendars.Read"},
			SupportsPKCE:  true,
		},
		Definition{
			ID:            "github",
			Name:          "GitHub",
			AuthURL:       endpoints.GitHub.AuthURL,
			TokenURL:      endpoints.GitHub.TokenURL,
			DefaultScopes: []string{"repo", "read:user"},
			SupportsPKCE:  false,
		},
		Definition{
			ID:            "slack",
			Name:          "Slack",
			AuthURL:       endpoints.Slack.AuthURL,
			TokenURL:      endpoints.Slack.TokenURL,
			RevokeURL:     "https://slack.com/api/auth.revoke",
			DefaultScopes: []string{"channels:read", "chat:write", "users:read"},
			SupportsPKCE:  false,
		},
		Definition{
			ID:            "zoom",
			Name:          "Zoom",
			AuthURL:       endpoints.Zoom.AuthURL,
			TokenURL:      endpoints.Zoom.TokenURL,
			RevokeURL:     "https://zoom.us/oauth/revoke",
			DefaultScopes: []string{"meeting:read"},
			SupportsPKCE:  true,
		},
		Definition{
			ID:            "linkedin",
			Name:          "LinkedIn",
			AuthURL:       endpoints.LinkedIn.AuthURL,
			TokenURL:      endpoints.LinkedIn.TokenURL,
			DefaultScopes: []string{"r_liteprofile", "r_emailaddress"},
			SupportsPKCE:  false,
		},
		// Notion does not ship in x/oauth2/endpoints.
		Definition{
			ID:            "notion",
			Name:          "Notion",
			AuthURL:       "https://api.notion.com/v1/oauth/authorize",
			TokenURL:      "https://api.notion.com/v1/oauth/token",
			DefaultScopes: nil,
			SupportsPKCE:  false,
		},
		// Salesforce does not ship in x/oauth2/endpoints.
		Definition{
			ID:            "salesforce",
			Name:          "Salesforce",
			AuthURL:       "https://login.salesforce.com/services/oauth2/authorize",
			TokenURL:      "https://login.salesforce.com/services/oauth2/token",
			RevokeURL:     "https://login.salesforce.com/services/oauth2/revoke",
			DefaultScopes: []string{"api", "refresh_token"},
			SupportsPKCE:  true,
		},
	)
	if err != nil {
		// The built-in catalog is validated by tests; a construction error
		// here is a programming mistake, not a runtime condition.
		panic(err)
	}
	return r
}
