package datasets

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ImageSuffix is the file name suffix of images picked up by BuildIndex when
// no other suffix is given.
const ImageSuffix = "png"

// BuildIndex walks root recursively and returns one Item per file whose name
// ends in suffix, in walk order. The class key of an item is formed from the
// two innermost directory names of its containing directory.
func BuildIndex(root, suffix string) ([]Item, error) {
	if suffix == "" {
		suffix = ImageSuffix
	}
	items := make([]Item, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		dir := filepath.Dir(path)
		items = append(items, Item{
			Filename: d.Name(),
			ClassKey: classKey(dir),
			Dir:      dir,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to index %s", root)
	}
	return items, nil
}

// classKey joins the last two segments of dir with "/".
func classKey(dir string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	if len(parts) < 2 {
		return parts[len(parts)-1]
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

// BuildClassIndex assigns every distinct class key the next unused id, in the
// order keys are first encountered in items. With sorted set, ids follow the
// lexicographic order of the keys instead.
func BuildClassIndex(items []Item, sorted bool) ClassIndex {
	classes := make(ClassIndex)
	if sorted {
		for _, key := range sortedKeys(items) {
			classes[key] = len(classes)
		}
		return classes
	}
	for _, it := range items {
		if _, ok := classes[it.ClassKey]; !ok {
			classes[it.ClassKey] = len(classes)
		}
	}
	return classes
}
