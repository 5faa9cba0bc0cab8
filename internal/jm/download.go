package jm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	mrand "math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/webp"
)

var scrambleIDPattern = regexp.MustCompile(`var\s+scramble_id\s*=\s*(\d+);`)

// Download fetches every chapter of an album, unscrambles the pages and
// assembles them into <CacheDir>/<id>.pdf. An existing PDF is reused.
func (c *Client) Download(ctx context.Context, detail *PhotoDetail) (string, error) {
	if detail == nil || detail.ID == "" {
		return "", errors.New("jm: no album to download")
	}
	if err := os.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
		return "", err
	}
	outFile := filepath.Join(c.opts.CacheDir, detail.ID+".pdf")
	if _, err := os.Stat(outFile); err == nil {
		c.log.Info("使用缓存的PDF", "album", detail.ID)
		return outFile, nil
	}

	tempDir, err := os.MkdirTemp("", "jmbot_img_")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tempDir)

	pageFiles := make([]string, 0, 64)
	for chi, chapterID := range detail.ChapterIDs {
		files, err := c.downloadChapter(ctx, chapterID, tempDir, chi+1)
		if err != nil {
			c.log.Warn("章节下载失败", "album", detail.ID, "chapter", chapterID, "err", err)
			continue
		}
		pageFiles = append(pageFiles, files...)
	}
	if len(pageFiles) == 0 {
		return "", fmt.Errorf("jm: no pages downloaded for jm%s", detail.ID)
	}

	if err := buildPDF(outFile, pageFiles); err != nil {
		return "", fmt.Errorf("build pdf: %w", err)
	}
	return outFile, nil
}

// downloadChapter fetches one chapter's pages concurrently and writes
// them to tempDir as ordered PNGs.
func (c *Client) downloadChapter(ctx context.Context, chapterID, tempDir string, index int) ([]string, error) {
	data, err := c.reqAPI(ctx, "/chapter", map[string]string{"id": chapterID})
	if err != nil {
		return nil, err
	}
	photoID := NormalizeID(anyToString(data["id"]))
	if photoID == "" {
		photoID = chapterID
	}
	images := anyToStringSlice(data["images"])
	if len(images) == 0 {
		return nil, errors.New("chapter has no images")
	}

	scrambleID := c.fetchScrambleID(ctx, photoID)

	paths := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Threads)
	for idx, name := range images {
		g.Go(func() error {
			raw, err := c.downloadImage(gctx, photoID, name)
			if err != nil {
				return err
			}
			decoded, _, err := image.Decode(bytes.NewReader(raw))
			if err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			if num := calcSegmentationNum(scrambleID, photoID, trimExt(name)); num > 0 {
				decoded = unscrambleImage(decoded, num)
			}
			decoded = normalizeToRGBA8(decoded)

			outPath := filepath.Join(tempDir, fmt.Sprintf("%04d_%05d.png", index, idx+1))
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := png.Encode(f, decoded); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			paths[idx] = outPath
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// fetchScrambleID scrapes the chapter viewer page for the scramble id
// that parameterizes page segmentation, falling back to the historical
// constant.
func (c *Client) fetchScrambleID(ctx context.Context, photoID string) string {
	for _, domain := range c.domains.api() {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		u, err := url.Parse("https://" + domain + "/chapter_view_template")
		if err != nil {
			continue
		}
		q := u.Query()
		q.Set("id", photoID)
		q.Set("mode", "vertical")
		q.Set("page", "0")
		q.Set("app_img_shunt", "1")
		q.Set("express", "off")
		q.Set("v", ts)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			continue
		}
		setContentHeaders(req, ts)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}
		if m := scrambleIDPattern.FindSubmatch(raw); len(m) >= 2 {
			return string(m[1])
		}
	}
	return strconv.Itoa(fallbackScrambleID)
}

// downloadImage fetches one page, rotating over the image CDN domains
// starting from a random one to spread load.
func (c *Client) downloadImage(ctx context.Context, photoID, imgName string) ([]byte, error) {
	domains := c.domains.images()
	ordered := append([]string{domains[mrand.Intn(len(domains))]}, domains...)
	tried := map[string]struct{}{}

	for _, domain := range ordered {
		if _, ok := tried[domain]; ok {
			continue
		}
		tried[domain] = struct{}{}

		u := fmt.Sprintf("https://%s/media/photos/%s/%s", domain, photoID, imgName)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		setImageHeaders(req, c.refererDomain())
		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK && len(b) > 0 {
			return b, nil
		}
	}
	return nil, fmt.Errorf("download image %s/%s failed", photoID, imgName)
}

func (c *Client) refererDomain() string {
	if apis := c.domains.api(); len(apis) > 0 {
		return apis[0]
	}
	return defaultAPIDomains[0]
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
