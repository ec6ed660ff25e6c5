package marathon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"marathonbot/internal/store"
)

// seedFile is the on-disk post catalog:
//
//	{
//	  "timezone": "Europe/Moscow",
//	  "posts": [
//	    {"day": 1, "title": "...", "text_html": "...", "media_type": "photo", "file_id": "..."}
//	  ]
//	}
//
// The "day" field is informational only; day numbers shown to users are
// procedural and follow the ordering of the posts array.
type seedFile struct {
	Timezone string     `json:"timezone"`
	Posts    []seedPost `json:"posts"`
}

type seedPost struct {
	Day       int    `json:"day"`
	Title     string `json:"title"`
	TextHTML  string `json:"text_html"`
	MediaType string `json:"media_type"`
	FileID    string `json:"file_id"`
}

// SeedPosts upserts posts from a JSON file by position. Admin-created posts
// past the seed length survive restarts. With wipe set, the table is cleared
// first and any tail beyond the seed length is removed. Returns the number
// of newly created posts.
func SeedPosts(ctx context.Context, st *store.Store, logger *zap.Logger, path string, wipe bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if wipe {
		if err := st.DeleteAllPosts(ctx); err != nil {
			return 0, err
		}
	}

	created := 0
	for i, item := range seed.Posts {
		position := i + 1
		title := strings.TrimSpace(item.Title)
		if title == "" {
			logger.Warn("skipping seed post with empty title", zap.Int("position", position))
			continue
		}
		mediaType := strings.TrimSpace(item.MediaType)
		fileID := strings.TrimSpace(item.FileID)

		isNew, err := st.ReplacePostAtPosition(ctx, position, title, item.TextHTML, mediaType, fileID)
		if err != nil {
			return created, fmt.Errorf("failed to seed post at position %d: %w", position, err)
		}
		if isNew {
			created++
		}
	}

	if wipe {
		if err := st.DeletePostsAbove(ctx, len(seed.Posts)); err != nil {
			return created, err
		}
	}

	logger.Info("seeded posts",
		zap.String("path", path),
		zap.Int("total", len(seed.Posts)),
		zap.Int("created", created),
		zap.Bool("wipe", wipe))
	return created, nil
}
