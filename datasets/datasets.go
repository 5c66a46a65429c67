// Package datasets downloads, indexes and serves image datasets laid out as
// a two-level class hierarchy on disk (category/character/*.png), and adapts
// them to gomlx training loops.
package datasets

import (
	"image"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// This file holds the types shared by the dataset implementations.
//
// Datasets in this package use lazy loading: construction only walks the
// directory tree and records file locations, images are read and decoded
// from disk every time an example is requested.
//
// Layout and intended usage:
//
// Item
//   - One image file found during the index walk.
//   - ClassKey is "<grandparent>/<parent>", e.g. "Latin/character01".
//
// ClassIndex
//   - Dense ids 0..K-1 for every distinct ClassKey.
//
// Sample
//   - What Example returns: decoded image plus integer label, produced on
//     demand and never materialized in bulk.

var (
	// ErrDatasetNotFound is returned when the processed dataset tree is
	// missing and downloading was not requested.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrIndexOutOfRange is returned by Example for indices outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Item is one indexed image file.
type Item struct {
	Filename string
	ClassKey string
	Dir      string
}

// Path returns the full path of the image file.
func (it Item) Path() string {
	return filepath.Join(it.Dir, it.Filename)
}

// ClassIndex maps class keys to dense integer ids.
type ClassIndex map[string]int

// Names returns the class keys ordered by id.
func (c ClassIndex) Names() []string {
	names := make([]string, len(c))
	for key, id := range c {
		names[id] = key
	}
	return names
}

// Sample is a decoded image and its label.
type Sample struct {
	Image image.Image
	Label int
}

// ImageTransform is applied to every decoded image before it is returned.
type ImageTransform func(image.Image) (image.Image, error)

// LabelTransform is applied to every class id before it is returned.
type LabelTransform func(int) int

// Dataset is the random-access view implemented by the image datasets.
type Dataset interface {
	Len() int
	Example(i int) (Sample, error)
}

// BatchDataset can also read several examples in one call.
type BatchDataset interface {
	Dataset
	Batch(indices []int) ([]Sample, error)
}

// sortedKeys is used when lexicographic class ids are requested.
func sortedKeys(items []Item) []string {
	seen := make(map[string]bool)
	keys := make([]string, 0)
	for _, it := range items {
		if !seen[it.ClassKey] {
			seen[it.ClassKey] = true
			keys = append(keys, it.ClassKey)
		}
	}
	sort.Strings(keys)
	return keys
}
