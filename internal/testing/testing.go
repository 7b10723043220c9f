// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackdrop/internal/models"
)

// MockCatalog is a test double for tasks.CatalogReader keyed by artist name.
type MockCatalog struct {
	Tracks map[string][]models.Track
	Errs   map[string]error
	Calls  []string
}

func (m *MockCatalog) ListTracks(ctx context.Context, artist string) ([]models.Track, error) {
	m.Calls = append(m.Calls, artist)
	if err := m.Errs[artist]; err != nil {
		return nil, err
	}
	out := make([]models.Track, len(m.Tracks[artist]))
	copy(out, m.Tracks[artist])
	return out, nil
}

// MockFetcher writes a small file per fetched track into Dir.
//
// Tracks named in Fail return their error instead.
type MockFetcher struct {
	Dir    string
	Fail   map[string]error
	Calls  []string
	Assets []*models.Asset
}

func (m *MockFetcher) Fetch(ctx context.Context, track models.Track) (*models.Asset, error) {
	m.Calls = append(m.Calls, track.Name)
	if err := m.Fail[track.Name]; err != nil {
		return nil, err
	}

	path := filepath.Join(m.Dir, GenerateName(len(m.Calls))+".mp3")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	asset := &models.Asset{Path: path, SourceURL: "https://www.youtube.com/watch?v=" + GenerateName(len(m.Calls))}
	m.Assets = append(m.Assets, asset)
	return asset, nil
}

// Publication is one call recorded by [MockPublisher].
type Publication struct {
	Destination models.Destination
	Meta        models.Metadata
	Path        string
	Existed     bool // The asset file was on disk when Publish was called
}

// MockPublisher records publish calls. Titles named in Fail return their error.
type MockPublisher struct {
	Fail      map[string]error
	Err       error // Returned for every call when set
	Published []Publication
	Calls     int
}

func (m *MockPublisher) Publish(ctx context.Context, dest models.Destination, asset *models.Asset, meta models.Metadata) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	if err := m.Fail[meta.Title]; err != nil {
		return err
	}
	_, statErr := os.Stat(asset.Path)
	m.Published = append(m.Published, Publication{Destination: dest, Meta: meta, Path: asset.Path, Existed: statErr == nil})
	return nil
}

// Titles returns the published titles in order.
func (m *MockPublisher) Titles() []string {
	out := make([]string, 0, len(m.Published))
	for _, p := range m.Published {
		out = append(out, p.Meta.Title)
	}
	return out
}

// MockLedger is an in-memory ledger. ContainsErr and RecordErr force failures.
type MockLedger struct {
	mu          sync.Mutex
	entries     map[string][]string
	ContainsErr error
	RecordErr   error
	Writes      int
}

// NewMockLedger seeds a ledger for one artist.
func NewMockLedger(artist string, identities ...string) *MockLedger {
	l := &MockLedger{entries: map[string][]string{}}
	l.entries[artist] = append(l.entries[artist], identities...)
	return l
}

func (m *MockLedger) Contains(artist, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ContainsErr != nil {
		return false, m.ContainsErr
	}
	for _, e := range m.entries[artist] {
		if e == identity {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLedger) Record(artist, identity string) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if ok, _ := m.Contains(artist, identity); ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[artist] = append(m.entries[artist], identity)
	m.Writes++
	return nil
}

// Entries returns the recorded identities for artist in insertion order.
func (m *MockLedger) Entries(artist string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries[artist]...)
}

// MockTagger records tagged paths.
type MockTagger struct {
	Err    error
	Tagged []string
}

func (m *MockTagger) Tag(path string, meta models.Metadata) error {
	m.Tagged = append(m.Tagged, path)
	return m.Err
}

// MockArtwork returns a fixed path per URL and counts purges.
type MockArtwork struct {
	Err     error
	Fetched []string
	Purges  int
}

func (m *MockArtwork) Fetch(ctx context.Context, url string) (string, error) {
	m.Fetched = append(m.Fetched, url)
	if m.Err != nil {
		return "", m.Err
	}
	return "/artwork/" + filepath.Base(url) + ".jpg", nil
}

func (m *MockArtwork) Purge() error {
	m.Purges++
	return nil
}

// MockHistory collects attempts in memory.
type MockHistory struct {
	Err      error
	Attempts []models.Attempt
}

func (m *MockHistory) Create(a *models.Attempt) error {
	if m.Err != nil {
		return m.Err
	}
	m.Attempts = append(m.Attempts, *a)
	return nil
}

// Outcomes returns the recorded outcomes in order.
func (m *MockHistory) Outcomes() []models.Outcome {
	out := make([]models.Outcome, 0, len(m.Attempts))
	for _, a := range m.Attempts {
		out = append(out, a.Outcome)
	}
	return out
}

// MockSleeper records requested delays without waiting.
type MockSleeper struct {
	Delays []time.Duration
}

func (m *MockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	m.Delays = append(m.Delays, d)
	return ctx.Err()
}

// GenerateName returns a short deterministic file stem for index i.
func GenerateName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < 0 {
		i = -i
	}
	name := []byte{'t'}
	for {
		name = append(name, letters[i%len(letters)])
		i /= len(letters)
		if i == 0 {
			break
		}
	}
	return string(name)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing and counts requests made through it.
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    atomic.Int32
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// Calls returns the number of requests seen.
func (m *MockRoundTripper) Calls() int {
	return int(m.calls.Load())
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
