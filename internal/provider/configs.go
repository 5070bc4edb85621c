package provider

import (
	"fmt"

	"github.com/maheshrc27/postbridge/internal/models"
)

// PostConfigs is the declarative constraint set of one provider. Built once
// per adapter type, read-only afterward.
type PostConfigs struct {
	SimultaneousPosting  bool
	MinTextChar          int
	MaxTextChar          int
	MinPhotos            int
	MaxPhotos            int
	MinVideos            int
	MaxVideos            int
	AllowMixingMediaType bool
}

// Validate checks text and media against the constraint set before any
// network call is made.
func (pc PostConfigs) Validate(text string, media []models.MediaItem) error {
	length := len([]rune(text))
	if length < pc.MinTextChar {
		return fmt.Errorf("text is shorter than the minimum of %d characters", pc.MinTextChar)
	}
	if pc.MaxTextChar > 0 && length > pc.MaxTextChar {
		return fmt.Errorf("text exceeds the limit of %d characters", pc.MaxTextChar)
	}

	var photos, videos int
	for _, m := range media {
		switch {
		case m.IsImage():
			photos++
		case m.IsVideo():
			videos++
		}
	}

	if photos > 0 && videos > 0 && !pc.AllowMixingMediaType {
		return fmt.Errorf("mixing photos and videos is not supported")
	}
	if pc.MaxPhotos >= 0 && photos > pc.MaxPhotos {
		return fmt.Errorf("too many photos: %d allowed", pc.MaxPhotos)
	}
	if pc.MaxVideos >= 0 && videos > pc.MaxVideos {
		return fmt.Errorf("too many videos: %d allowed", pc.MaxVideos)
	}

	return nil
}
