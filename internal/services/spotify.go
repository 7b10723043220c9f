// Spotify Web API implementation of [tasks.CatalogReader]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyPageSize = 50

	defaultAlbumConcurrency  = 4
	defaultRequestsPerSecond = 5
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a simplified album object as returned by the artist albums endpoint.
type SpotifyAlbum struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	AlbumType    string         `json:"album_type"`
	ReleaseDate  string         `json:"release_date"`
	TotalTracks  int            `json:"total_tracks"`
	Images       []SpotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

// SpotifyTrack represents a simplified track object as returned by the album tracks endpoint.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	DurationMS   int             `json:"duration_ms"`
	TrackNumber  int             `json:"track_number"`
	DiscNumber   int             `json:"disc_number"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// page is the paging envelope shared by Spotify list endpoints.
type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type artistSearch struct {
	Artists page[SpotifyArtist] `json:"artists"`
}

// SpotifyOptions configures endpoints and client-side limits for [SpotifyService].
//
// Zero values fall back to the public Spotify endpoints and package defaults.
type SpotifyOptions struct {
	BaseURL           string
	TokenURL          string
	Concurrency       int
	RequestsPerSecond float64
	MaxRetries        int
	BaseBackoff       time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// SpotifyService reads artist discographies from the Spotify Web API using the client
// credentials grant. It satisfies tasks.CatalogReader.
type SpotifyService struct {
	config      clientcredentials.Config
	baseURL     string
	baseClient  *http.Client
	httpClient  *http.Client
	limiter     *rate.Limiter
	concurrency int
	retry       retrier
	logger      *log.Logger
}

// NewSpotifyService creates a new Spotify catalog reader with the given client credentials.
//
// Expects "client_id" and "client_secret" keys.
func NewSpotifyService(credentials map[string]string, opts SpotifyOptions) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultAlbumConcurrency
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &SpotifyService{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     opts.TokenURL,
		},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		baseClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(1, int(opts.RequestsPerSecond))),
		concurrency: opts.Concurrency,
		logger:      opts.Logger.WithPrefix("spotify"),
	}
	s.retry = retrier{maxRetries: opts.MaxRetries, baseBackoff: opts.BaseBackoff, logger: s.logger}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate fetches an access token so that bad credentials surface before any artist is processed.
//
// The token is refreshed automatically for later requests.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, s.baseClient)

	token, err := s.config.Token(context.WithValue(ctx, oauth2.HTTPClient, s.baseClient))
	if err != nil {
		return classifyCatalogError(err)
	}

	source := oauth2.ReuseTokenSource(token, s.config.TokenSource(tokenCtx))
	s.httpClient = oauth2.NewClient(tokenCtx, source)
	s.retry.httpClient = s.httpClient
	s.logger.Debug("authenticated", "expires", token.Expiry)
	return nil
}

// ListTracks returns every track on the artist's albums and singles, ordered by album release date.
//
// Tracks keep their album order. An artist with no search hit yields an empty slice.
func (s *SpotifyService) ListTracks(ctx context.Context, artistName string) ([]models.Track, error) {
	artist, err := s.SearchArtist(ctx, artistName)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		s.logger.Warn("artist not found", "artist", artistName)
		return []models.Track{}, nil
	}

	albums, err := s.ArtistAlbums(ctx, artist.ID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(albums, func(i, j int) bool {
		return albums[i].ReleaseDate < albums[j].ReleaseDate
	})

	perAlbum := make([][]SpotifyTrack, len(albums))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, album := range albums {
		g.Go(func() error {
			tracks, err := s.AlbumTracks(gctx, album.ID)
			if err != nil {
				return err
			}
			perAlbum[i] = tracks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var tracks []models.Track
	for i, album := range albums {
		artwork := ""
		if len(album.Images) > 0 {
			artwork = album.Images[0].URL
		}
		for _, t := range perAlbum[i] {
			tracks = append(tracks, models.Track{
				ID:          t.ID,
				Name:        t.Name,
				Artist:      artistName,
				Album:       album.Name,
				ReleaseDate: album.ReleaseDate,
				Duration:    t.DurationMS / 1000,
				ArtworkURL:  artwork,
				URL:         t.ExternalURLs.Spotify,
			})
		}
	}

	s.logger.Debug("catalog read", "artist", artistName, "albums", len(albums), "tracks", len(tracks))
	return tracks, nil
}

// SearchArtist returns the first artist matching name, or nil when there is none.
func (s *SpotifyService) SearchArtist(ctx context.Context, name string) (*SpotifyArtist, error) {
	q := url.Values{}
	q.Set("q", "artist:"+name)
	q.Set("type", "artist")
	q.Set("limit", "1")

	var result artistSearch
	if err := s.doRequest(ctx, "/search?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	if len(result.Artists.Items) == 0 {
		return nil, nil
	}
	return &result.Artists.Items[0], nil
}

// ArtistAlbums pages through every album and single released by the artist.
func (s *SpotifyService) ArtistAlbums(ctx context.Context, artistID string) ([]SpotifyAlbum, error) {
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single", url.PathEscape(artistID))
	return paginate[SpotifyAlbum](ctx, s, endpoint)
}

// AlbumTracks pages through every track on an album.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]SpotifyTrack, error) {
	endpoint := fmt.Sprintf("/albums/%s/tracks?", url.PathEscape(albumID))
	return paginate[SpotifyTrack](ctx, s, endpoint)
}

// paginate follows limit/offset paging on endpoint until the response has no next page.
func paginate[T any](ctx context.Context, s *SpotifyService, endpoint string) ([]T, error) {
	sep := "&"
	if strings.HasSuffix(endpoint, "?") {
		sep = ""
	}

	var all []T
	for offset := 0; ; offset += spotifyPageSize {
		var p page[T]
		if err := s.doRequest(ctx, fmt.Sprintf("%s%slimit=%d&offset=%d", endpoint, sep, spotifyPageSize, offset), &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if p.Next == nil || len(p.Items) == 0 {
			return all, nil
		}
	}
}

// doRequest performs a rate limited, authenticated GET against the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrCatalogAuth)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogLookup, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrCatalogLookup, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.retry.do(req)
	if err != nil {
		return classifyCatalogError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrCatalogAuth, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s: status %d", shared.ErrCatalogLookup, endpointPath(endpoint), resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrCatalogLookup, err)
	}
	return nil
}

// classifyCatalogError maps token endpoint failures to [shared.ErrCatalogAuth] and everything else to [shared.ErrCatalogLookup].
func classifyCatalogError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %v", shared.ErrCatalogAuth, err)
	}
	return fmt.Errorf("%w: %w", shared.ErrCatalogLookup, err)
}

func endpointPath(endpoint string) string {
	p, _, _ := strings.Cut(endpoint, "?")
	return p
}
