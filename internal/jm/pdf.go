package jm

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// 1 px at 96 dpi
const pixelToMM = 0.2645833333

// buildPDF assembles the rendered page images into a single PDF, one
// page per image, sized to the image's pixel dimensions.
func buildPDF(outFile string, imageFiles []string) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "mm"})
	for _, file := range imageFiles {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		cfg, _, err := image.DecodeConfig(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		wmm := float64(cfg.Width) * pixelToMM
		hmm := float64(cfg.Height) * pixelToMM
		orientation := "P"
		if wmm > hmm {
			orientation = "L"
		}
		pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: wmm, Ht: hmm})
		imgType := strings.ToUpper(strings.TrimPrefix(filepath.Ext(file), "."))
		if imgType == "" {
			imgType = "PNG"
		}
		pdf.ImageOptions(file, 0, 0, wmm, hmm, false, gofpdf.ImageOptions{ImageType: imgType}, 0, "")
	}
	return pdf.OutputFileAndClose(outFile)
}
