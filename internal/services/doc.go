// Package services connects a sync run to the outside world.
//
// # Spotify
//
// [SpotifyService] implements tasks.CatalogReader. It authenticates with the OAuth2 client
// credentials grant, finds the artist with the search endpoint and pages through every album
// and single. Album track listings are fetched concurrently (errgroup, bounded by
// [SpotifyOptions.Concurrency]) and reassembled in release order.
//
// Every request waits on a [rate.Limiter] and is retried on 429 or 5xx responses, honouring
// Retry-After.
//
// # YouTube
//
// [YouTubeService] implements tasks.Fetcher by running yt-dlp as a subprocess. It searches for
// "<artist> <track> mp3", extracts the best audio stream and reports the watch page URL as
// provenance.
//
// # Telegram
//
// [TelegramService] implements tasks.Publisher with telebot. It keeps one offline bot per token
// and sends each track as an audio message with an HTML caption linking both sources.
// [TelegramService.Channels] lists the channels a bot has seen, for filling in config.
//
// # Error Handling
//
// Adapters wrap sentinel errors from the shared package:
//   - [shared.ErrCatalogAuth] : token request rejected, or 401/403 from Spotify
//   - [shared.ErrCatalogLookup] : any other catalog failure
//   - [shared.ErrFetch] : yt-dlp failed, timed out or produced no file
//   - [shared.ErrPublishAuth] : bot token rejected, bot removed, or channel not found
//   - [shared.ErrPublish] : any other publish failure
package services
