package vision

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"github.com/rwcarlsen/goexif/exif"
)

// ImageDirSource is a FrameSource over a directory of still images, used for
// offline enrollment and replay. Frames are ordered by EXIF capture time when
// every image carries one, otherwise by natural filename order so that
// frame_2.jpg precedes frame_10.jpg.
type ImageDirSource struct {
	dir   string
	files []string
	pos   int
}

func NewImageDirSource(dir string) (*ImageDirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image frames found in %s", dir)
	}

	natsort.Sort(files)
	sortByTakenAt(dir, files)

	return &ImageDirSource{dir: dir, files: files}, nil
}

// sortByTakenAt reorders files chronologically when all of them carry an EXIF
// capture timestamp. A partial set would interleave timed and untimed frames
// arbitrarily, so in that case the natural name order is kept.
func sortByTakenAt(dir string, files []string) {
	times := make(map[string]int64, len(files))
	for _, name := range files {
		ts, ok := takenAt(filepath.Join(dir, name))
		if !ok {
			return
		}
		times[name] = ts
	}
	sort.SliceStable(files, func(i, j int) bool {
		return times[files[i]] < times[files[j]]
	})
}

func takenAt(path string) (int64, bool) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer file.Close()

	exifData, err := exif.Decode(file)
	if err != nil {
		// file might just lack EXIF data
		return 0, false
	}
	dt, err := exifData.DateTime()
	if err != nil {
		return 0, false
	}
	return dt.Unix(), true
}

// Next returns the next frame, or io.EOF once the directory is exhausted
func (s *ImageDirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}

	path := filepath.Join(s.dir, s.files[s.pos])
	s.pos++

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	return img, nil
}

func (s *ImageDirSource) Close() error { return nil }
