package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

// fakeBotAPI records sendAudio calls and answers getUpdates for a set of tokens.
type fakeBotAPI struct {
	mu    sync.Mutex
	sends []map[string]string
	files []string
}

const sentMessage = `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-1001,"type":"channel","title":"Tunes"}}}`

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, method, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/bot"), "/")
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch token {
		case "revoked":
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
			return
		case "kicked":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked from the channel chat"}`)
			return
		case "nochat":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: file is too big"}`)
			return
		}

		switch method {
		case "sendAudio":
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				t.Errorf("failed to parse multipart: %v", err)
			}
			fields := map[string]string{}
			for k, v := range r.MultipartForm.Value {
				fields[k] = v[0]
			}
			var files []string
			for k := range r.MultipartForm.File {
				files = append(files, k)
			}
			f.mu.Lock()
			f.sends = append(f.sends, fields)
			f.files = append(f.files, files...)
			f.mu.Unlock()
			fmt.Fprint(w, sentMessage)
		case "getUpdates":
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private","first_name":"Me"}}},
				{"update_id":2,"channel_post":{"message_id":2,"date":0,"chat":{"id":-1001,"type":"channel","title":"Tunes","username":"tunes"}}},
				{"update_id":3,"channel_post":{"message_id":3,"date":0,"chat":{"id":-1001,"type":"channel","title":"Tunes"}}},
				{"update_id":4,"my_chat_member":{"date":0,"chat":{"id":-1002,"type":"channel","title":"More"},"from":{"id":1},"old_chat_member":{"status":"left","user":{"id":9}},"new_chat_member":{"status":"administrator","user":{"id":9}}}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestTelegram(t *testing.T) (*TelegramService, *fakeBotAPI) {
	t.Helper()
	f := &fakeBotAPI{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewTelegramService(TelegramOptions{APIURL: srv.URL, HTTPClient: srv.Client()}), f
}

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCaption(t *testing.T) {
	got := Caption("https://open.spotify.com/track/1", "https://youtube.com/watch?v=a&t=1")
	want := `<b>Listen on: <a href="https://open.spotify.com/track/1">Spotify</a> | <a href="https://youtube.com/watch?v=a&amp;t=1">YouTube</a></b>`
	if got != want {
		t.Errorf("Caption() = %s, want %s", got, want)
	}
}

func TestTelegramService(t *testing.T) {
	ctx := context.Background()
	audioPath := writeTempFile(t, "Song Two.mp3", "audio")
	meta := models.Metadata{
		Performer:  "Test Artist",
		Title:      "Song Two",
		Duration:   215,
		CatalogURL: "https://open.spotify.com/track/2",
		SourceURL:  "https://www.youtube.com/watch?v=abc",
	}

	t.Run("Publish", func(t *testing.T) {
		svc, f := newTestTelegram(t)
		dest := models.Destination{Token: "123:abc", ChannelID: "-1001"}

		if err := svc.Publish(ctx, dest, &models.Asset{Path: audioPath}, meta); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		if len(f.sends) != 1 {
			t.Fatalf("expected 1 send, got %d", len(f.sends))
		}
		got := f.sends[0]
		checks := map[string]string{
			"chat_id":    "-1001",
			"title":      "Song Two",
			"performer":  "Test Artist",
			"duration":   "215",
			"parse_mode": "HTML",
			"caption":    Caption(meta.CatalogURL, meta.SourceURL),
		}
		for k, want := range checks {
			if got[k] != want {
				t.Errorf("field %s = %q, want %q", k, got[k], want)
			}
		}
		if len(f.files) != 1 || f.files[0] != "audio" {
			t.Errorf("expected only the audio file upload, got %v", f.files)
		}
	})

	t.Run("Publish With Thumbnail", func(t *testing.T) {
		svc, f := newTestTelegram(t)
		withArt := meta
		withArt.ArtworkPath = writeTempFile(t, "cover.jpg", "jpeg")

		if err := svc.Publish(ctx, models.Destination{Token: "123:abc", ChannelID: "@tunes"}, &models.Asset{Path: audioPath}, withArt); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(f.files) != 2 {
			t.Errorf("expected audio and thumbnail uploads, got %v", f.files)
		}
		if f.sends[0]["chat_id"] != "@tunes" {
			t.Errorf("expected @tunes chat id, got %q", f.sends[0]["chat_id"])
		}
	})

	t.Run("Reuses Bot Per Token", func(t *testing.T) {
		svc, _ := newTestTelegram(t)
		a, err := svc.bot("123:abc")
		if err != nil {
			t.Fatal(err)
		}
		b, _ := svc.bot("123:abc")
		c, _ := svc.bot("456:def")
		if a != b || a == c {
			t.Error("expected one cached bot per token")
		}
	})

	t.Run("Error Classification", func(t *testing.T) {
		tc := []struct {
			token string
			want  error
		}{
			{token: "revoked", want: shared.ErrPublishAuth},
			{token: "kicked", want: shared.ErrPublishAuth},
			{token: "nochat", want: shared.ErrPublishAuth},
			{token: "broken", want: shared.ErrPublish},
			{token: "", want: shared.ErrPublishAuth},
		}

		svc, _ := newTestTelegram(t)
		for _, tt := range tc {
			t.Run(tt.token, func(t *testing.T) {
				err := svc.Publish(ctx, models.Destination{Token: tt.token, ChannelID: "-1"}, &models.Asset{Path: audioPath}, meta)
				if !errors.Is(err, tt.want) {
					t.Errorf("Publish() error = %v, want %v", err, tt.want)
				}
				if tt.want == shared.ErrPublish && errors.Is(err, shared.ErrPublishAuth) {
					t.Error("per-track failure must not be a credential fault")
				}
			})
		}
	})

	t.Run("Missing Asset", func(t *testing.T) {
		svc, _ := newTestTelegram(t)
		if err := svc.Publish(ctx, models.Destination{Token: "123:abc", ChannelID: "-1"}, nil, meta); !errors.Is(err, shared.ErrPublish) {
			t.Errorf("expected ErrPublish, got %v", err)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		svc, f := newTestTelegram(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := svc.Publish(cctx, models.Destination{Token: "123:abc", ChannelID: "-1"}, &models.Asset{Path: audioPath}, meta)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(f.sends) != 0 {
			t.Error("nothing should be sent after cancellation")
		}
	})

	t.Run("Channels", func(t *testing.T) {
		svc, _ := newTestTelegram(t)
		channels, err := svc.Channels(ctx, "123:abc")
		if err != nil {
			t.Fatalf("Channels() error = %v", err)
		}

		if len(channels) != 2 {
			t.Fatalf("expected 2 channels, got %+v", channels)
		}
		if channels[0].ID != -1001 || channels[0].Title != "Tunes" || channels[0].Username != "tunes" {
			t.Errorf("unexpected first channel %+v", channels[0])
		}
		if channels[1].ID != -1002 {
			t.Errorf("unexpected second channel %+v", channels[1])
		}
	})

	t.Run("Channels Rejected Token", func(t *testing.T) {
		svc, _ := newTestTelegram(t)
		if _, err := svc.Channels(ctx, "revoked"); !errors.Is(err, shared.ErrPublishAuth) {
			t.Errorf("expected ErrPublishAuth, got %v", err)
		}
	})
}
