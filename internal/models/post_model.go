package models

import (
	"strings"
	"time"
)

const (
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

// MediaItem is one attachment of a post version, addressed by a publicly
// resolvable URL. Providers decide whether they pull the URL or need the
// bytes streamed.
type MediaItem struct {
	URL  string `json:"url"`
	Mime string `json:"mime_type"`
	Size int64  `json:"size"`
}

func (m MediaItem) IsImage() bool {
	return strings.HasPrefix(m.Mime, "image/")
}

func (m MediaItem) IsVideo() bool {
	return strings.HasPrefix(m.Mime, "video/")
}

// VersionContent is one block of a post version body.
type VersionContent struct {
	Body  string      `json:"body"`
	Media []MediaItem `json:"media"`
}

// PostVersion is the content published to one account. AccountID 0 marks the
// default version used by every account without a dedicated one.
type PostVersion struct {
	AccountID int64            `json:"account_id"`
	Content   []VersionContent `json:"content"`
	Options   map[string]any   `json:"options"`
}

type Post struct {
	ID          int64         `db:"id" json:"id"`
	UUID        string        `db:"uuid" json:"uuid"`
	Status      string        `db:"status" json:"status"`
	Versions    []PostVersion `db:"versions" json:"versions"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// VersionFor resolves the account-specific version, falling back to the
// default version when the account has none.
func (p *Post) VersionFor(accountID int64) *PostVersion {
	var fallback *PostVersion
	for i := range p.Versions {
		switch p.Versions[i].AccountID {
		case accountID:
			return &p.Versions[i]
		case 0:
			fallback = &p.Versions[i]
		}
	}
	return fallback
}
