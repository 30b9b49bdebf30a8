// scan.go - Scanned-document preprocessing before model upload

package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kaigodx/care_sheet_gemini/configs"
)

// PrepareScan loads a source document and returns upload-ready bytes with
// their MIME type. PDFs pass through untouched. Images are resized and
// enhanced adaptively: assessment sheets arrive as phone photos and fax
// scans of wildly varying quality, and handwritten 漢字 needs more contrast
// help than printed text.
func PrepareScan(path string) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("PDFの読み込みに失敗: %w", err)
		}
		return data, "application/pdf", nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("画像の読み込みに失敗: %w", err)
	}

	img = resizeToLimit(img, configs.MAX_IMAGE_DIMENSION)

	score := scanQuality(img)
	switch {
	case score < 50:
		img = enhanceAggressive(img)
	case score < 75:
		img = enhanceStandard(img)
	default:
		img = enhanceLight(img)
	}
	img = imaging.Sharpen(img, 1.0)

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	switch ext {
	case ".png":
		err = png.Encode(&buf, img)
		mimeType = "image/png"
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		return nil, "", fmt.Errorf("前処理済み画像のエンコードに失敗: %w", err)
	}
	return buf.Bytes(), mimeType, nil
}

// RawFile returns a file's bytes and a MIME type guessed from its
// extension, for the preprocessing-disabled path.
func RawFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return data, MIMETypeOf(path), nil
}

// MIMETypeOf maps the extensions this pipeline accepts to MIME types.
func MIMETypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// IsImage reports whether the file goes through the enhancement path.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func resizeToLimit(img image.Image, limit int) image.Image {
	if limit <= 0 {
		limit = 2500
	}
	bounds := img.Bounds()
	if bounds.Dx() <= limit && bounds.Dy() <= limit {
		return img
	}
	if bounds.Dx() > bounds.Dy() {
		return imaging.Resize(img, limit, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, limit, imaging.Lanczos)
}

// scanQuality scores brightness and contrast on a 0-100 scale, sampling
// every 10th pixel.
func scanQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var total float64
	min, max := 255.0, 0.0
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0
			total += brightness
			if brightness < min {
				min = brightness
			}
			if brightness > max {
				max = brightness
			}
			count++
		}
	}
	if count == 0 {
		return 0
	}

	avg := total / float64(count)
	contrast := max - min

	brightnessScore := 100.0 - math.Abs(avg-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)
	return brightnessScore*0.4 + contrastScore*0.6
}

func enhanceLight(img image.Image) image.Image {
	result := imaging.Sharpen(img, 2.0)
	result = imaging.AdjustContrast(result, 30)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 20)
	return imaging.AdjustGamma(result, 1.05)
}

func enhanceStandard(img image.Image) image.Image {
	result := imaging.Sharpen(img, 3.0)
	result = imaging.AdjustContrast(result, 45)
	result = imaging.AdjustBrightness(result, 15)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 35)
	return imaging.AdjustGamma(result, 1.15)
}

func enhanceAggressive(img image.Image) image.Image {
	result := imaging.Sharpen(img, 4.0)
	result = imaging.AdjustContrast(result, 60)
	result = imaging.AdjustBrightness(result, 25)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 55)
	result = imaging.AdjustGamma(result, 1.3)
	// blur then re-sharpen to knock out scanner noise
	result = imaging.Blur(result, 0.5)
	result = imaging.Sharpen(result, 2.5)
	return imaging.AdjustContrast(result, 20)
}
