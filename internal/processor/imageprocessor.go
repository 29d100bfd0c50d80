// imageprocessor.go - Image decoding and optional preprocessing before upload to the Generator

package processor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyImage is returned when there is nothing left to decode.
var ErrEmptyImage = errors.New("image payload is empty")

// DecodeImagePayload decodes a bare base64 image string.
// Standard encoding is tried first, then URL-safe, then both without padding.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyImage
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}

	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, fmt.Errorf("invalid base64 image payload: %w", firstErr)
}

// DetectMIME sniffs the image MIME type from the decoded bytes.
// Payloads that do not look like an image default to image/jpeg and are left for the
// Generator to accept or reject.
func DetectMIME(data []byte) string {
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	return "image/jpeg"
}

// PreprocessImage downscales png/jpeg images whose longest side exceeds maxDimension.
// Other formats (heic, heif, webp) and images already small enough are returned as they are.
func PreprocessImage(data []byte, mimeType string, maxDimension int) ([]byte, string, error) {
	var format imaging.Format
	switch mimeType {
	case "image/png":
		format = imaging.PNG
	case "image/jpeg":
		format = imaging.JPEG
	default:
		return data, mimeType, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return data, mimeType, nil
	}

	if width > height {
		img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
	}

	// Light sharpening keeps small glyphs legible after downscaling
	img = imaging.Sharpen(img, 0.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(95)); err != nil {
		return nil, "", fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), mimeType, nil
}
