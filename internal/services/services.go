// package services implements the catalog, fetch and publish adapters used by a sync run
package services

import "github.com/desertthunder/trackdrop/internal/tasks"

// Service is the common surface of every external adapter.
type Service interface {
	// Name returns the name of the backing service (e.g., "Spotify", "Telegram")
	Name() string
}

var (
	_ tasks.CatalogReader = (*SpotifyService)(nil)
	_ tasks.Fetcher       = (*YouTubeService)(nil)
	_ tasks.Publisher     = (*TelegramService)(nil)

	_ Service = (*SpotifyService)(nil)
	_ Service = (*YouTubeService)(nil)
	_ Service = (*TelegramService)(nil)
)
