// YouTube fetcher built on the yt-dlp command line tool.
//
// yt-dlp searches YouTube for the track, downloads the best audio stream and converts it
// with ffmpeg. The watch page URL and final file path are read back from its --print output.
package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/desertthunder/trackdrop/internal/shared"
)

const (
	defaultYTDLPBinary = "yt-dlp"
	defaultAudioFormat = "mp3"

	printURLPrefix  = "url:"
	printPathPrefix = "path:"
)

// YouTubeOptions configures [YouTubeService].
type YouTubeOptions struct {
	Binary      string
	AudioFormat string
	WorkDir     string
	Timeout     time.Duration
	Logger      *log.Logger
}

// YouTubeService resolves catalog tracks to local audio files by searching YouTube with yt-dlp.
// It satisfies tasks.Fetcher.
type YouTubeService struct {
	binary  string
	format  string
	workDir string
	timeout time.Duration
	logger  *log.Logger
}

// NewYouTubeService resolves the yt-dlp binary and prepares the work directory.
//
// A binary that cannot be found is a configuration fault.
func NewYouTubeService(opts YouTubeOptions) (*YouTubeService, error) {
	if opts.Binary == "" {
		opts.Binary = defaultYTDLPBinary
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = defaultAudioFormat
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	binary, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: yt-dlp binary %q not found: %v", shared.ErrInvalidConfig, opts.Binary, err)
	}

	if err := os.MkdirAll(opts.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create work directory: %v", shared.ErrInvalidConfig, err)
	}

	return &YouTubeService{
		binary:  binary,
		format:  opts.AudioFormat,
		workDir: opts.WorkDir,
		timeout: opts.Timeout,
		logger:  opts.Logger.WithPrefix("yt-dlp"),
	}, nil
}

func (s *YouTubeService) Name() string {
	return "YouTube"
}

// SearchQuery is the free-text query used to find a track.
func SearchQuery(track models.Track) string {
	return fmt.Sprintf("%s %s mp3", track.Artist, track.Name)
}

// Fetch downloads the best audio match for track and returns it as an asset the caller must release.
func (s *YouTubeService) Fetch(ctx context.Context, track models.Track) (*models.Asset, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	output := filepath.Join(s.workDir, shared.SanitizeFileName(track.Name)+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-simulate",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", s.format,
		"-o", output,
		"--print", printURLPrefix + "%(webpage_url)s",
		"--print", "after_move:" + printPathPrefix + "%(filepath)s",
		"ytsearch1:" + SearchQuery(track),
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	s.logger.Debug("fetching", "track", track.Name, "query", SearchQuery(track))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrFetch, track.Name, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", shared.ErrFetch, track.Name, err, lastLine(stderr.String()))
	}

	sourceURL, path := parsePrintOutput(stdout.Bytes())
	if sourceURL == "" || path == "" {
		return nil, fmt.Errorf("%w: %s: no result", shared.ErrFetch, track.Name)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: downloaded file missing", shared.ErrFetch, track.Name)
		}
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrFetch, track.Name, err)
	}

	return &models.Asset{Path: path, SourceURL: sourceURL}, nil
}

// parsePrintOutput extracts the last url: and path: lines printed by yt-dlp.
func parsePrintOutput(out []byte) (sourceURL, path string) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, printURLPrefix):
			sourceURL = strings.TrimPrefix(line, printURLPrefix)
		case strings.HasPrefix(line, printPathPrefix):
			path = strings.TrimPrefix(line, printPathPrefix)
		}
	}
	return sourceURL, path
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
