package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackdrop/internal/shared"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// fakeSpotify serves the subset of the Web API the catalog reader uses.
type fakeSpotify struct {
	albums      []map[string]any
	tracks      map[string][]string
	badSecret   bool
	unknown     bool
	failAlbum   string
	throttleHit atomic.Int32
	throttle    int32
}

func (f *fakeSpotify) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if f.badSecret {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	})

	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("q"); got != "artist:Test Artist" {
			t.Errorf("unexpected search query %q", got)
		}
		items := []map[string]any{{"id": "artist1", "name": "Test Artist"}}
		if f.unknown {
			items = nil
		}
		writeJSON(w, map[string]any{"artists": map[string]any{"items": items, "next": nil}})
	})

	mux.HandleFunc("GET /v1/artists/artist1/albums", func(w http.ResponseWriter, r *http.Request) {
		if f.throttleHit.Add(1) <= f.throttle {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.URL.Query().Get("include_groups") != "album,single" {
			t.Errorf("unexpected include_groups %q", r.URL.Query().Get("include_groups"))
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, pageOf(f.albums, offset, limit))
	})

	mux.HandleFunc("GET /v1/albums/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == f.failAlbum {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var items []map[string]any
		for _, name := range f.tracks[id] {
			items = append(items, map[string]any{
				"id":            id + "-" + name,
				"name":          name,
				"duration_ms":   215500,
				"external_urls": map[string]string{"spotify": "https://open.spotify.com/track/" + id},
			})
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, pageOf(items, offset, limit))
	})

	return mux
}

func pageOf(items []map[string]any, offset, limit int) map[string]any {
	offset = min(offset, len(items))
	end := min(offset+limit, len(items))
	var next any
	if end < len(items) {
		next = fmt.Sprintf("https://api.spotify.test/next?offset=%d", end)
	}
	return map[string]any{"items": items[offset:end], "next": next, "offset": offset, "limit": limit, "total": len(items)}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestSpotify(t *testing.T, f *fakeSpotify) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	s, err := NewSpotifyService(testCredentials, SpotifyOptions{
		BaseURL:           srv.URL + "/v1",
		TokenURL:          srv.URL + "/token",
		RequestsPerSecond: 1000,
		BaseBackoff:       time.Millisecond,
		HTTPClient:        srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewSpotifyService() error = %v", err)
	}
	return s
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials, SpotifyOptions{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.baseURL != spotifyBaseURL || srv.concurrency != defaultAlbumConcurrency {
				t.Errorf("expected defaults, got base=%s concurrency=%d", srv.baseURL, srv.concurrency)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "x"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "x"}, SpotifyOptions{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			s := newTestSpotify(t, &fakeSpotify{})
			if err := s.Authenticate(context.Background()); err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
		})

		t.Run("Rejected Credentials", func(t *testing.T) {
			s := newTestSpotify(t, &fakeSpotify{badSecret: true})
			err := s.Authenticate(context.Background())
			if !errors.Is(err, shared.ErrCatalogAuth) {
				t.Errorf("expected ErrCatalogAuth, got %v", err)
			}
		})

		t.Run("Request Before Authenticate", func(t *testing.T) {
			s := newTestSpotify(t, &fakeSpotify{})
			_, err := s.ListTracks(context.Background(), "Test Artist")
			if !errors.Is(err, shared.ErrCatalogAuth) {
				t.Errorf("expected ErrCatalogAuth, got %v", err)
			}
		})
	})

	t.Run("ListTracks", func(t *testing.T) {
		albums := []map[string]any{
			{"id": "b2020", "name": "Later", "release_date": "2020-03-01", "images": []map[string]any{{"url": "https://img/2020"}}},
			{"id": "a2019", "name": "Earlier", "release_date": "2019", "images": []map[string]any{}},
		}
		for i := range 60 {
			albums = append(albums, map[string]any{"id": fmt.Sprintf("s%02d", i), "name": "Single", "release_date": "2021-01-01"})
		}

		long := make([]string, 75)
		for i := range long {
			long[i] = fmt.Sprintf("Later %02d", i)
		}

		f := &fakeSpotify{
			albums: albums,
			tracks: map[string][]string{
				"b2020": long,
				"a2019": {"First", "Second"},
				"s03":   {"Single 03"},
				"s55":   {"Single 55"},
			},
		}

		s := newTestSpotify(t, f)
		if err := s.Authenticate(context.Background()); err != nil {
			t.Fatal(err)
		}

		tracks, err := s.ListTracks(context.Background(), "Test Artist")
		if err != nil {
			t.Fatalf("ListTracks() error = %v", err)
		}

		wantOrder := append([]string{"First", "Second"}, long...)
		wantOrder = append(wantOrder, "Single 03", "Single 55")
		if len(tracks) != len(wantOrder) {
			t.Fatalf("expected %d tracks across every page, got %d", len(wantOrder), len(tracks))
		}
		for i, name := range wantOrder {
			if tracks[i].Name != name {
				t.Errorf("track %d = %q, want %q", i, tracks[i].Name, name)
			}
		}

		first := tracks[0]
		if first.Artist != "Test Artist" || first.Album != "Earlier" || first.Duration != 215 || first.ArtworkURL != "" {
			t.Errorf("unexpected first track %+v", first)
		}
		if tracks[2].ArtworkURL != "https://img/2020" || tracks[2].URL != "https://open.spotify.com/track/b2020" {
			t.Errorf("unexpected third track %+v", tracks[2])
		}
		if last := tracks[len(tracks)-1]; last.ID != "s55-Single 55" || last.ReleaseDate != "2021-01-01" {
			t.Errorf("single from the second album page missing: %+v", last)
		}
	})

	t.Run("Unknown Artist", func(t *testing.T) {
		s := newTestSpotify(t, &fakeSpotify{unknown: true})
		if err := s.Authenticate(context.Background()); err != nil {
			t.Fatal(err)
		}

		tracks, err := s.ListTracks(context.Background(), "Test Artist")
		if err != nil {
			t.Fatalf("ListTracks() error = %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", tracks)
		}
	})

	t.Run("Retries On 429", func(t *testing.T) {
		f := &fakeSpotify{throttle: 2, albums: []map[string]any{{"id": "a", "release_date": "2019"}}, tracks: map[string][]string{"a": {"Only"}}}
		s := newTestSpotify(t, f)
		if err := s.Authenticate(context.Background()); err != nil {
			t.Fatal(err)
		}

		tracks, err := s.ListTracks(context.Background(), "Test Artist")
		if err != nil {
			t.Fatalf("ListTracks() error = %v", err)
		}
		if len(tracks) != 1 {
			t.Errorf("expected 1 track, got %d", len(tracks))
		}
		if hits := f.throttleHit.Load(); hits != 3 {
			t.Errorf("expected 3 album requests, got %d", hits)
		}
	})

	t.Run("Album Failure Is A Lookup Error", func(t *testing.T) {
		f := &fakeSpotify{failAlbum: "a", albums: []map[string]any{{"id": "a", "release_date": "2019"}}}
		s := newTestSpotify(t, f)
		if err := s.Authenticate(context.Background()); err != nil {
			t.Fatal(err)
		}

		_, err := s.ListTracks(context.Background(), "Test Artist")
		if !errors.Is(err, shared.ErrCatalogLookup) {
			t.Errorf("expected ErrCatalogLookup, got %v", err)
		}
		if errors.Is(err, shared.ErrCatalogAuth) {
			t.Error("lookup failure must not be classified as auth")
		}
	})
}

func TestRetrier(t *testing.T) {
	tc := []struct {
		name             string
		statuses         []int
		maxRetries       int
		expectedStatus   int
		expectedAttempts int32
	}{
		{
			name:             "retries on 503 then succeeds",
			statuses:         []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK},
			maxRetries:       3,
			expectedStatus:   http.StatusOK,
			expectedAttempts: 3,
		},
		{
			name:             "gives up after max retries",
			statuses:         []int{http.StatusTooManyRequests},
			maxRetries:       2,
			expectedStatus:   http.StatusTooManyRequests,
			expectedAttempts: 3,
		},
		{
			name:             "does not retry 404",
			statuses:         []int{http.StatusNotFound},
			maxRetries:       3,
			expectedStatus:   http.StatusNotFound,
			expectedAttempts: 1,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(attempts.Add(1))
				status := tt.statuses[len(tt.statuses)-1]
				if n <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
			}))
			defer ts.Close()

			r := retrier{httpClient: ts.Client(), maxRetries: tt.maxRetries, baseBackoff: time.Millisecond, logger: shared.NewLogger(nil)}
			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			if err != nil {
				t.Fatalf("create request: %v", err)
			}

			resp, err := r.do(req)
			if err != nil {
				t.Fatalf("do() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.expectedStatus)
			}
			if got := attempts.Load(); got != tt.expectedAttempts {
				t.Errorf("attempts: got %d, want %d", got, tt.expectedAttempts)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if d := parseRetryAfter(resp); d != 0 {
		t.Errorf("expected 0 without header, got %v", d)
	}
	resp.Header.Set("Retry-After", "2")
	if d := parseRetryAfter(resp); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}
}
