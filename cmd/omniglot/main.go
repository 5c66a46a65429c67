// Command omniglot downloads and indexes the Omniglot dataset, then reads
// one shuffled batch as tensors to check the data is usable.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/Noofbiz/keita/datasets"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	root := flag.String("root", "data/omniglot", "dataset root directory")
	download := flag.Bool("download", true, "download the archives if the dataset is missing")
	progress := flag.Bool("progress", true, "show a progress bar while downloading")
	batchSize := flag.Int("batch", 16, "number of images in the sample batch")
	size := flag.Int("size", 28, "resize images so their shorter side has this many pixels (0 keeps the original size)")
	sorted := flag.Bool("sort-classes", false, "assign class ids in lexicographic order of class keys")
	cacheSize := flag.Int("cache", 0, "number of decoded samples kept in memory (0 disables the cache)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	defer klog.Flush()

	cfg := datasets.DefaultOmniglotConfig(*root)
	cfg.ShowProgress = *progress

	status := datasets.CheckOmniglot(cfg)
	if !status.Found && !*download {
		klog.Exitf("Omniglot not found under %s (missing %v): %s", cfg.ProcessedDir(), status.Missing, status.Hint)
	}

	opts := datasets.OmniglotOptions{
		Download: *download,
		FolderOptions: datasets.FolderOptions{
			SortClasses: *sorted,
			CacheSize:   *cacheSize,
		},
	}
	if *size > 0 {
		opts.Transform = datasets.ScaleShorter(*size)
	}
	ds, err := datasets.NewOmniglot(cfg, opts)
	if err != nil {
		klog.Fatalf("failed to open Omniglot: %+v", err)
	}
	klog.Infof("Omniglot ready: %d images, %d classes", ds.Len(), ds.NumClasses())

	batches, err := datasets.NewBatches("omniglot", ds, *batchSize, rand.New(rand.NewSource(*seed)), true)
	if err != nil {
		klog.Fatalf("failed to create batches: %v", err)
	}
	_, inputs, labels, err := batches.Yield()
	if err != nil {
		klog.Fatalf("failed to read a batch: %+v", err)
	}
	fmt.Printf("images: %d in %d classes\n", ds.Len(), ds.NumClasses())
	fmt.Printf("batch images %v, labels %v\n", inputs[0].Shape().Dimensions, labels[0].Shape().Dimensions)
}
