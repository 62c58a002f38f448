package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WEBP format decoder
)

// ImageCache provides thread-safe caching of decoded RGB images.
//
// The cache stores images keyed by their file path. Once an image is loaded,
// subsequent Load() calls for the same path return the cached copy without
// disk I/O. Callers must treat cached images as read-only.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). The batch runner never caches; the MCP server does, because
// clients tend to ask for detection and a heatmap of the same file.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*image.NRGBA
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load retrieves an image from the cache or loads it with LoadImage.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// LoadImage decodes an image file into an opaque 8-bit RGB image.
//
// Parameters:
//   - path: Path to a PNG, JPEG, GIF, BMP, TIFF or WEBP file.
//
// Returns:
//   - *image.NRGBA: The decoded image with its origin at (0,0). Grayscale
//     sources are expanded to three equal channels and any alpha channel is
//     discarded, so every pixel has A=255.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// Discarding alpha keeps the straight (non-premultiplied) colour values,
// which is what the detector was trained on.
func LoadImage(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return ToRGB(src), nil
}

// ToRGB converts any image to an opaque NRGBA image anchored at (0,0).
func ToRGB(src image.Image) *image.NRGBA {
	img := imaging.Clone(src)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is derived from the file extension: "png", "jpeg", "gif",
	// "bmp", "tiff", "webp", "pgm" or "unknown".
	Format string `json:"format"`

	// ColorModel describes the decoded pixel layout, e.g. "gray" or "rgba".
	ColorModel string `json:"color_model"`

	// HasAlpha indicates whether the decoded image carries transparency.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo reads the header of an image file and returns its metadata.
// Only the header is decoded, so this is cheap even for large files.
func LoadImageInfo(path string) (*ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	model, alpha := describeModel(cfg.ColorModel)
	return &ImageInfo{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        FormatFromExt(path),
		ColorModel:    model,
		HasAlpha:      alpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

// FormatFromExt maps a file extension to a format name.
func FormatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	case ".webp":
		return "webp"
	case ".pgm":
		return "pgm"
	}
	return "unknown"
}

func describeModel(m color.Model) (string, bool) {
	switch m {
	case color.GrayModel:
		return "gray", false
	case color.Gray16Model:
		return "gray16", false
	case color.RGBAModel:
		return "rgba", true
	case color.NRGBAModel:
		return "nrgba", true
	case color.RGBA64Model:
		return "rgba64", true
	case color.NRGBA64Model:
		return "nrgba64", true
	case color.YCbCrModel:
		return "ycbcr", false
	case color.CMYKModel:
		return "cmyk", false
	}
	if _, ok := m.(color.Palette); ok {
		return "paletted", true
	}
	return "unknown", false
}
