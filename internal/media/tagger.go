package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/desertthunder/trackdrop/internal/models"
)

// Tagger writes ID3 frames into fetched MP3 files so players show the catalog metadata.
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Tag writes title, performer and album frames to the audio at path and embeds the
// artwork at meta.ArtworkPath as the front cover when present.
//
// Files that are not MP3 are left untouched.
func (t *Tagger) Tag(path string, meta models.Metadata) error {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open tags for %s: %w", filepath.Base(path), err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(meta.Title)
	tag.SetArtist(meta.Performer)
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}

	if meta.ArtworkPath != "" {
		cover, err := os.ReadFile(meta.ArtworkPath)
		if err != nil {
			return fmt.Errorf("failed to read artwork: %w", err)
		}
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags for %s: %w", filepath.Base(path), err)
	}
	return nil
}
