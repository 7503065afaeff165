package dataset

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
)

// Store is the on-disk identity dataset: one directory per person label,
// containing that person's normalized face samples as JPEG files named by
// sequence index (face_0.jpg, face_1.jpg, ...). Samples are immutable once
// written; the store only ever appends.
type Store struct {
	root string
}

// New creates the dataset root if needed and returns a store over it
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) personDir(label string) string {
	return filepath.Join(s.root, label)
}

// ValidateLabel rejects labels that would escape the dataset root or collide
// with path syntax. Labels are used directly as directory names.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("person label must not be empty")
	}
	if strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
		return fmt.Errorf("invalid person label %q", label)
	}
	return nil
}

// AddSample appends one normalized face sample under the given label and
// returns the path it was written to.
func (s *Store) AddSample(label string, seq int, face *image.Gray) (string, error) {
	if err := ValidateLabel(label); err != nil {
		return "", err
	}

	dir := s.personDir(label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create person directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("face_%d.jpg", seq))
	if err := imaging.Save(face, path, imaging.JPEGQuality(95)); err != nil {
		return "", fmt.Errorf("failed to save face sample %s: %w", path, err)
	}
	return path, nil
}

// NextIndex returns the next free sequence index for a label
func (s *Store) NextIndex(label string) (int, error) {
	files, err := s.sampleFiles(label)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// Labels lists all person labels that have at least one sample, sorted.
// A label directory with no samples is not trainable and is not reported.
func (s *Store) Labels() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory %s: %w", s.root, err)
	}

	var labels []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := s.sampleFiles(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			labels = append(labels, entry.Name())
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// SampleCount returns the number of samples stored under a label
func (s *Store) SampleCount(label string) (int, error) {
	files, err := s.sampleFiles(label)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// Load reads every sample in the dataset and returns parallel face/label
// slices suitable for training. Labels are visited in sorted order and
// samples within a label in natural filename order, so an unchanged dataset
// always loads identically.
func (s *Store) Load() (faces []*image.Gray, labels []string, err error) {
	personLabels, err := s.Labels()
	if err != nil {
		return nil, nil, err
	}

	for _, label := range personLabels {
		files, err := s.sampleFiles(label)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range files {
			path := filepath.Join(s.personDir(label), name)
			img, err := imaging.Open(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read face sample %s: %w", path, err)
			}
			faces = append(faces, toGray(img))
			labels = append(labels, label)
		}
	}
	return faces, labels, nil
}

func (s *Store) sampleFiles(label string) ([]string, error) {
	dir := s.personDir(label)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read person directory %s: %w", dir, err)
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
	natsort.Sort(files)
	return files, nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	gray := imaging.Grayscale(img)
	out := image.NewGray(gray.Bounds())
	draw.Draw(out, out.Bounds(), gray, gray.Bounds().Min, draw.Src)
	return out
}
