package datasets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// FolderOptions configures how an ImageFolder is indexed and how its
// samples are produced.
type FolderOptions struct {
	// Suffix of image file names. ImageSuffix if empty.
	Suffix string

	// Transform is applied to every decoded image, if set.
	Transform ImageTransform

	// TargetTransform is applied to every label, if set.
	TargetTransform LabelTransform

	// SortClasses assigns class ids in lexicographic order of the class keys
	// instead of first-encounter order.
	SortClasses bool

	// CacheSize > 0 keeps up to that many produced samples in memory, keyed
	// by index. By default every Example call reads the file again.
	CacheSize int
}

// ImageFolder is a random-access dataset over every image found under a
// directory tree. Images are decoded lazily in Example.
type ImageFolder struct {
	root            string
	items           []Item
	classes         ClassIndex
	transform       ImageTransform
	targetTransform LabelTransform
	cache           *lru.Cache[int, Sample]
}

var _ Dataset = (*ImageFolder)(nil)

// NewImageFolder indexes every image under root.
func NewImageFolder(root string, opts FolderOptions) (*ImageFolder, error) {
	items, err := BuildIndex(root, opts.Suffix)
	if err != nil {
		return nil, err
	}
	ds := &ImageFolder{
		root:            root,
		items:           items,
		classes:         BuildClassIndex(items, opts.SortClasses),
		transform:       opts.Transform,
		targetTransform: opts.TargetTransform,
	}
	if opts.CacheSize > 0 {
		ds.cache, err = lru.New[int, Sample](opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create sample cache")
		}
	}
	return ds, nil
}

// Root returns the directory the dataset was indexed from.
func (d *ImageFolder) Root() string { return d.root }

// Len returns the number of indexed images.
func (d *ImageFolder) Len() int { return len(d.items) }

// NumClasses returns the number of distinct class keys.
func (d *ImageFolder) NumClasses() int { return len(d.classes) }

// Classes returns the class index. It must not be modified.
func (d *ImageFolder) Classes() ClassIndex { return d.classes }

// Items returns the indexed items in walk order. It must not be modified.
func (d *ImageFolder) Items() []Item { return d.items }

// Example reads and decodes image i and returns it with its label.
func (d *ImageFolder) Example(i int) (Sample, error) {
	if i < 0 || i >= len(d.items) {
		return Sample{}, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", i, len(d.items))
	}
	if d.cache != nil {
		if s, ok := d.cache.Get(i); ok {
			return s, nil
		}
	}

	it := d.items[i]
	img, err := decodeRGB(it.Path())
	if err != nil {
		return Sample{}, err
	}
	var out image.Image = img
	if d.transform != nil {
		if out, err = d.transform(out); err != nil {
			return Sample{}, errors.Wrapf(err, "failed to transform %s", it.Path())
		}
	}
	label := d.classes[it.ClassKey]
	if d.targetTransform != nil {
		label = d.targetTransform(label)
	}

	s := Sample{Image: out, Label: label}
	if d.cache != nil {
		d.cache.Add(i, s)
	}
	return s, nil
}

// Batch reads the examples at the given indices.
func (d *ImageFolder) Batch(indices []int) ([]Sample, error) {
	samples := make([]Sample, len(indices))
	for pos, idx := range indices {
		s, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		samples[pos] = s
	}
	return samples, nil
}

func decodeRGB(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return ToRGB(img), nil
}
