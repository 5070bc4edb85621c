package models

import (
	"time"
)

// MediaRef points at a stored file (avatar) on a configured disk.
type MediaRef struct {
	Disk string `json:"disk"`
	Path string `json:"path"`
}

// Account is one connected identity on one provider. The natural key is
// (organization_id, provider, provider_id).
type Account struct {
	ID             int64          `db:"id" json:"id"`
	UUID           string         `db:"uuid" json:"uuid"`
	OrganizationID string         `db:"organization_id" json:"organization_id"`
	Provider       string         `db:"provider" json:"provider"`
	ProviderID     string         `db:"provider_id" json:"provider_id"`
	Name           string         `db:"name" json:"name"`
	Username       string         `db:"username" json:"username"`
	Media          *MediaRef      `db:"media" json:"media"`
	Authorized     bool           `db:"authorized" json:"authorized"`
	AccessToken    string         `db:"access_token" json:"-"`
	Data           map[string]any `db:"data" json:"data"`
	ConnectedBy    string         `db:"connected_by" json:"connected_by"`
	ConnectedAt    time.Time      `db:"connected_at" json:"connected_at"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Values carries per-account context back into the provider registry:
// the provider-side id (Instagram/Threads publish against it) and the
// Mastodon server the account lives on.
func (a *Account) Values() map[string]string {
	values := map[string]string{
		"provider_id": a.ProviderID,
	}
	if server, ok := a.Data["server"].(string); ok {
		values["server"] = server
	}
	return values
}
