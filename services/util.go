package services

import (
	"image"

	"github.com/disintegration/imaging"
)

func saveJPEG(img image.Image, path string) error {
	return imaging.Save(img, path, imaging.JPEGQuality(85))
}
