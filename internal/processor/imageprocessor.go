// imageprocessor.go - Image preprocessing for better extraction accuracy

package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/bosocmputer/invoice_ocr_gemini/configs"
	"github.com/disintegration/imaging"
)

// PreprocessImage enhances an uploaded invoice image before the model call.
// It resizes to MAX_IMAGE_DIMENSION, then applies adaptive enhancement based
// on a quality score. Input and output are raw bytes; the mime type of the
// re-encoded image is returned alongside.
func PreprocessImage(data []byte, mimeType string) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	qualityScore := analyzeImageQuality(img)

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	maxDimension := configs.MAX_IMAGE_DIMENSION
	if maxDimension <= 0 {
		maxDimension = 2000
	}

	if width > maxDimension || height > maxDimension {
		if width > height {
			img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
		}
	}

	if qualityScore < 50 {
		img = applyAggressiveEnhancement(img)
	} else if qualityScore < 75 {
		img = applyStandardEnhancement(img)
	} else {
		img = applyLightEnhancement(img)
	}

	// Final sharpening pass for small text
	img = imaging.Sharpen(img, 1.0)

	var buf bytes.Buffer
	outMime := "image/jpeg"

	switch mimeType {
	case "image/png":
		err = png.Encode(&buf, img)
		outMime = "image/png"
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), outMime, nil
}

// analyzeImageQuality analyzes image and returns quality score (0-100)
func analyzeImageQuality(img image.Image) float64 {
	bounds := img.Bounds()

	var totalBrightness float64
	var minBrightness float64 = 255
	var maxBrightness float64 = 0
	pixelCount := 0

	// Sample every 10th pixel for performance
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			totalBrightness += brightness
			if brightness < minBrightness {
				minBrightness = brightness
			}
			if brightness > maxBrightness {
				maxBrightness = brightness
			}
			pixelCount++
		}
	}

	if pixelCount == 0 {
		return 0
	}

	avgBrightness := totalBrightness / float64(pixelCount)
	contrast := maxBrightness - minBrightness

	// Ideal: avgBrightness = 128, contrast = 200+
	brightnessScore := 100.0 - math.Abs(avgBrightness-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)

	return (brightnessScore * 0.4) + (contrastScore * 0.6)
}

// applyLightEnhancement for good quality images
func applyLightEnhancement(img image.Image) image.Image {
	result := img
	result = imaging.Sharpen(result, 2.0)
	result = imaging.AdjustContrast(result, 30)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 20)
	result = imaging.AdjustGamma(result, 1.05)
	return result
}

// applyStandardEnhancement for medium quality images
func applyStandardEnhancement(img image.Image) image.Image {
	result := img
	result = imaging.Sharpen(result, 3.0)
	result = imaging.AdjustContrast(result, 45)
	result = imaging.AdjustBrightness(result, 15)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 35)
	result = imaging.AdjustGamma(result, 1.15)
	return result
}

// applyAggressiveEnhancement for poor quality images
func applyAggressiveEnhancement(img image.Image) image.Image {
	result := img
	result = imaging.Sharpen(result, 4.0)
	result = imaging.AdjustContrast(result, 60)
	result = imaging.AdjustBrightness(result, 25)
	result = imaging.Grayscale(result)
	result = imaging.AdjustContrast(result, 55)
	result = imaging.AdjustGamma(result, 1.3)

	// Blur then re-sharpen to suppress scanner noise around glyph edges
	result = imaging.Blur(result, 0.5)
	result = imaging.Sharpen(result, 2.5)

	result = imaging.AdjustContrast(result, 20)

	return result
}
