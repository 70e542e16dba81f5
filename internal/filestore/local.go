// Package filestore keeps uploaded product images on local disk.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageSide  = 1200
	MaxUploadSize = 10 << 20
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Local writes files under Root and returns URLs under BaseURL.
type Local struct {
	Root    string
	BaseURL string
}

// StoreImage checks that r holds a supported image, fits it into
// MaxImageSide and saves it as JPEG. name is the client file name and only
// its extension is used.
func (l Local) StoreImage(ctx context.Context, r io.Reader, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(imageExts, ext) {
		return "", shop.InvalidArgument("unsupported image type %q", ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return "", shop.InvalidArgument("image larger than %d bytes", MaxUploadSize)
	}
	if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "image/") {
		return "", shop.InvalidArgument("file is not an image (%s)", mime)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", shop.InvalidArgument("cannot decode image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return l.write(ctx, &out, ".jpg")
}

func (l Local) write(ctx context.Context, r io.Reader, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", l.Root, err)
	}
	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(l.Root, name))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(l.BaseURL, "/") + "/" + name, nil
}

// Remove deletes a file previously returned by StoreImage. URLs outside
// BaseURL are ignored.
func (l Local) Remove(url string) error {
	prefix := strings.TrimRight(l.BaseURL, "/") + "/"
	name, ok := strings.CutPrefix(url, prefix)
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(l.Root, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
