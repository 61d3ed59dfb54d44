package control

import (
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
)

const (
	thumbnailWidth   = 320
	thumbnailQuality = 80
)

// ThumbnailFunc returns a copy of the latest picture of a source, or nil
// when there is none yet.
type ThumbnailFunc func() *image.RGBA

func (ctrl *Control) RegisterThumbnail(name string, fn ThumbnailFunc) {
	ctrl.statusMu.Lock()
	defer ctrl.statusMu.Unlock()
	ctrl.thumbnails[name] = fn
}

func (ctrl *Control) UnregisterThumbnail(name string) {
	ctrl.statusMu.Lock()
	defer ctrl.statusMu.Unlock()
	delete(ctrl.thumbnails, name)
}

// Thumbnail scales the latest picture of name down to thumbnail width.
func (ctrl *Control) Thumbnail(name string) (image.Image, error) {
	ctrl.statusMu.Lock()
	fn, ok := ctrl.thumbnails[name]
	ctrl.statusMu.Unlock()
	if !ok {
		return nil, ErrUnknownThumbnail
	}

	src := fn()
	if src == nil {
		return nil, ErrNoPicture
	}
	b := src.Bounds()
	if b.Dx() <= thumbnailWidth {
		return src, nil
	}

	h := b.Dy() * thumbnailWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, thumbnailWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// handleThumbnail serves GET /thumbnail/NAME as a JPEG.
func (ctrl *Control) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/thumbnail/")

	img, err := ctrl.Thumbnail(name)
	switch err {
	case nil:
	case ErrUnknownThumbnail:
		w.WriteHeader(http.StatusNotFound)
		return
	default:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		ctrl.log.WithError(err).Warn("Failed writing thumbnail")
	}
}
