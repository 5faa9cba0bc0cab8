package jm

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	coverTimeout  = 40 * time.Second
	coverMinBytes = 1024
	blurRadius    = 7
)

// FetchCover downloads an album cover. Concurrent fetches are bounded
// so a burst of search results cannot flood the CDN.
func (c *Client) FetchCover(ctx context.Context, id string) ([]byte, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if err := c.covers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.covers.Release(1)

	ctx, cancel := context.WithTimeout(ctx, coverTimeout)
	defer cancel()

	var lastErr error
	for _, domain := range c.domains.images() {
		u := fmt.Sprintf("https://%s/media/albums/%s.jpg", domain, id)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			lastErr = err
			continue
		}
		setImageHeaders(req, c.refererDomain())
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("cover jm%s: status=%d", id, resp.StatusCode)
			continue
		}
		// Some CDN nodes answer a tiny placeholder instead of 404.
		if len(b) < coverMinBytes {
			lastErr = fmt.Errorf("cover jm%s: truncated response (%d bytes)", id, len(b))
			continue
		}
		return b, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("cover jm%s: all domains failed", id)
	}
	return nil, lastErr
}

// BlurCover re-encodes a cover as a Gaussian-blurred JPEG so it can be
// shown in chat without exposing the artwork.
func BlurCover(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	blurred := gaussianBlur(src, blurRadius)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, blurred, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gaussianBlur applies a separable Gaussian kernel, one horizontal and
// one vertical pass over RGBA data.
func gaussianBlur(src image.Image, radius int) image.Image {
	rgba, ok := normalizeToRGBA8(src).(*image.RGBA)
	if !ok {
		return src
	}
	kernel := gaussianKernel(radius)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()

	horiz := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a float64
			for k := -radius; k <= radius; k++ {
				sx := clamp(x+k, 0, w-1)
				i := rgba.PixOffset(sx, y)
				wgt := kernel[k+radius]
				r += wgt * float64(rgba.Pix[i])
				g += wgt * float64(rgba.Pix[i+1])
				b += wgt * float64(rgba.Pix[i+2])
				a += wgt * float64(rgba.Pix[i+3])
			}
			o := horiz.PixOffset(x, y)
			horiz.Pix[o] = uint8(r + 0.5)
			horiz.Pix[o+1] = uint8(g + 0.5)
			horiz.Pix[o+2] = uint8(b + 0.5)
			horiz.Pix[o+3] = uint8(a + 0.5)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a float64
			for k := -radius; k <= radius; k++ {
				sy := clamp(y+k, 0, h-1)
				i := horiz.PixOffset(x, sy)
				wgt := kernel[k+radius]
				r += wgt * float64(horiz.Pix[i])
				g += wgt * float64(horiz.Pix[i+1])
				b += wgt * float64(horiz.Pix[i+2])
				a += wgt * float64(horiz.Pix[i+3])
			}
			o := dst.PixOffset(x, y)
			dst.Pix[o] = uint8(r + 0.5)
			dst.Pix[o+1] = uint8(g + 0.5)
			dst.Pix[o+2] = uint8(b + 0.5)
			dst.Pix[o+3] = uint8(a + 0.5)
		}
	}
	return dst
}

func gaussianKernel(radius int) []float64 {
	sigma := float64(radius) / 2
	if sigma <= 0 {
		sigma = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
