package jm

import (
	"fmt"
	"image"
	"image/draw"
	"strconv"
)

const (
	fallbackScrambleID = 220980
	splitThreshold1    = 268850
	splitThreshold2    = 421926
)

// calcSegmentationNum returns how many horizontal strips the source
// shuffled this page into, or 0 when the page is stored unscrambled.
func calcSegmentationNum(scrambleID, photoID, filename string) int {
	sid, _ := strconv.Atoi(NormalizeID(scrambleID))
	id, _ := strconv.Atoi(NormalizeID(photoID))
	if sid <= 0 || id <= 0 || id < sid {
		return 0
	}
	if id < splitThreshold1 {
		return 10
	}
	x := 10
	if id >= splitThreshold2 {
		x = 8
	}
	h := md5hex(fmt.Sprintf("%d%s", id, filename))
	n := int(h[len(h)-1]) % x
	return n*2 + 2
}

// unscrambleImage reverses the vertical strip shuffle. The remainder
// rows that do not divide evenly go to the first strip.
func unscrambleImage(src image.Image, num int) image.Image {
	if num <= 1 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	over := h % num
	for i := 0; i < num; i++ {
		move := h / num
		ySrc := h - (move * (i + 1)) - over
		yDst := move * i
		if i == 0 {
			move += over
		} else {
			yDst += over
		}
		if ySrc < 0 {
			ySrc = 0
		}
		if ySrc+move > h {
			move = h - ySrc
		}
		if move <= 0 {
			continue
		}
		draw.Draw(dst, image.Rect(0, yDst, w, yDst+move), src, image.Point{X: 0, Y: ySrc}, draw.Src)
	}
	return dst
}

// normalizeToRGBA8 flattens any decoded format (webp, 16-bit png, ...)
// into plain RGBA so png.Encode and gofpdf handle it uniformly.
func normalizeToRGBA8(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
