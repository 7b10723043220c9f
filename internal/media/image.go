package media

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ThumbnailSize is the largest edge, in pixels, of a generated thumbnail.
const ThumbnailSize = 320

// Thumbnail decodes data, scales it to fit within maxEdge x maxEdge and re-encodes it as JPEG.
//
// The aspect ratio is preserved and smaller images are never upscaled.
func Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fit(bounds.Dx(), bounds.Dy(), maxEdge)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fit(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}
	if width >= height {
		h := max(1, height*maxEdge/width)
		return maxEdge, h
	}
	w := max(1, width*maxEdge/height)
	return w, maxEdge
}
