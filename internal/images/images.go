// SPDX-License-Identifier: AGPL-3.0-only

// Package images prepares post attachments before they are sent to the
// backend: WebP is converted to JPEG and very large pictures are scaled down.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
)

const (
	MaxFileSize = 25 * 1024 * 1024
	MaxSide     = 2560
	jpegQuality = 90
)

var (
	ErrTooLarge    = errors.New("file size too large (max 25MB)")
	ErrUnsupported = errors.New("invalid file type (allowed: jpg, jpeg, png, webp)")
	ErrDecode      = errors.New("failed to decode image")
)

var allowed = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Check validates name and size without reading the picture.
func Check(name string, size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%s: %w", name, ErrTooLarge)
	}
	if !allowed[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	return nil
}

// Normalize returns img ready for a VK wall post. JPEG and PNG files within
// MaxSide are returned untouched.
func Normalize(img vkapi.Image) (vkapi.Image, error) {
	if err := Check(img.Name, int64(len(img.Data))); err != nil {
		return vkapi.Image{}, err
	}

	ext := strings.ToLower(filepath.Ext(img.Name))

	if ext == ".webp" {
		decoded, err := webp.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return vkapi.Image{}, fmt.Errorf("%s: %w", img.Name, ErrDecode)
		}
		return encodeJPEG(strings.TrimSuffix(img.Name, filepath.Ext(img.Name))+".jpg", fit(decoded))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("%s: %w", img.Name, ErrDecode)
	}
	if cfg.Width <= MaxSide && cfg.Height <= MaxSide {
		return img, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("%s: %w", img.Name, ErrDecode)
	}

	if ext == ".png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, fit(decoded)); err != nil {
			return vkapi.Image{}, fmt.Errorf("encode %s: %w", img.Name, err)
		}
		return vkapi.Image{Name: img.Name, Data: buf.Bytes()}, nil
	}
	return encodeJPEG(img.Name, fit(decoded))
}

func encodeJPEG(name string, img image.Image) (vkapi.Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return vkapi.Image{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return vkapi.Image{Name: name, Data: buf.Bytes()}, nil
}

// fit scales img so that its longest side is at most MaxSide.
func fit(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	longest := width
	if height > longest {
		longest = height
	}
	if longest <= MaxSide {
		return img
	}

	w := width * MaxSide / longest
	h := height * MaxSide / longest
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
