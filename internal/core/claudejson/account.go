package claudejson

import "errors"

// ErrNoAccount means the CLI is not signed in with a Claude account
var ErrNoAccount = errors.New("no Claude account in claude.json")

// Account is the signed-in Claude account
type Account struct {
	AccountUUID           string `json:"accountUuid,omitempty"`
	EmailAddress          string `json:"emailAddress,omitempty"`
	DisplayName           string `json:"displayName,omitempty"`
	OrganizationUUID      string `json:"organizationUuid,omitempty"`
	OrganizationName      string `json:"organizationName,omitempty"`
	OrganizationRole      string `json:"organizationRole,omitempty"`
	WorkspaceRole         string `json:"workspaceRole,omitempty"`
	BillingType           string `json:"billingType,omitempty"`
	SubscriptionCreatedAt string `json:"subscriptionCreatedAt,omitempty"`
	HasExtraUsageEnabled  bool   `json:"hasExtraUsageEnabled,omitempty"`
}

// Account returns the oauthAccount block of ~/.claude.json
func (r *Reader) Account() (*Account, error) {
	cfg, err := r.Load()
	if err != nil {
		return nil, err
	}
	if cfg.OAuthAccount == nil {
		return nil, ErrNoAccount
	}
	return cfg.OAuthAccount, nil
}
