// Package uploads stores product, category and avatar images on local disk and
// serves them back under /uploads/.
package uploads

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	svcerrors "github.com/R3E-Network/storefront/internal/errors"
)

// URLPrefix is the public path stored images are served from.
const URLPrefix = "/uploads/"

// DefaultMaxWidth is the widest image kept as is.
const DefaultMaxWidth = 1024

// Store writes images under a directory.
type Store struct {
	dir      string
	maxWidth uint
	now      func() time.Time
}

// New creates dir if needed and returns a Store writing into it.
func New(dir string, maxWidth int) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Store{dir: dir, maxWidth: uint(maxWidth), now: time.Now}, nil
}

// Dir is the storage directory.
func (s *Store) Dir() string { return s.dir }

// Save decodes the image read from r, downsizes it when it is wider than the
// configured maximum and writes it under a generated name. Only jpg, jpeg and
// png are accepted. The returned URI is relative to the server root.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var (
		img image.Image
		err error
	)
	switch ext {
	case ".png":
		img, err = png.Decode(r)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(r)
	default:
		return "", svcerrors.InvalidInput("Only jpg, jpeg and png images are allowed")
	}
	if err != nil {
		return "", svcerrors.InvalidInput("Could not decode image")
	}

	if uint(img.Bounds().Dx()) > s.maxWidth {
		img = resize.Resize(s.maxWidth, 0, img, resize.Lanczos3)
	}

	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString()[:8], ext)
	out, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", svcerrors.Internal("Error saving image", err)
	}
	defer out.Close()

	if ext == ".png" {
		err = png.Encode(out, img)
	} else {
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		_ = os.Remove(out.Name())
		return "", svcerrors.Internal("Error encoding image", err)
	}
	return URLPrefix + name, nil
}

// Handler serves stored files. Directory listings are not exposed.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
