package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// SampleSize is the fixed geometry of every stored face sample, in pixels.
const SampleSize = 150

// Normalize crops a detected face region out of a frame and converts it to the
// dataset's fixed geometry: a SampleSize x SampleSize grayscale crop.
func Normalize(frame image.Image, region image.Rectangle) *image.Gray {
	crop := imaging.Crop(frame, region)
	resized := imaging.Resize(crop, SampleSize, SampleSize, imaging.CatmullRom)
	gray := imaging.Grayscale(resized)

	out := image.NewGray(image.Rect(0, 0, SampleSize, SampleSize))
	draw.Draw(out, out.Bounds(), gray, image.Point{}, draw.Src)
	return out
}

// EncodeJPEGBase64 encodes an image as base64-wrapped JPEG, the form the
// audit store keeps face snapshots in.
func EncodeJPEGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode face image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
