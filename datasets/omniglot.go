package datasets

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OmniglotOptions configures NewOmniglot.
type OmniglotOptions struct {
	FolderOptions

	// Download fetches and extracts the archives when the dataset is missing.
	Download bool
}

// Omniglot is the handwritten characters dataset: 50 alphabets, each with a
// folder per character holding its drawings. Class keys are
// "<alphabet>/<character>".
type Omniglot struct {
	*ImageFolder
	cfg OmniglotConfig
}

// NewOmniglot makes sure the dataset is on disk (downloading it if
// opts.Download is set) and indexes the processed folder. Without Download
// a missing dataset yields an error wrapping ErrDatasetNotFound.
func NewOmniglot(cfg OmniglotConfig, opts OmniglotOptions) (*Omniglot, error) {
	cfg = cfg.withDefaults()
	if opts.Download {
		if err := EnsureOmniglot(cfg); err != nil {
			return nil, err
		}
	}
	if status := CheckOmniglot(cfg); !status.Found {
		return nil, errors.Wrapf(ErrDatasetNotFound, "missing %s; %s",
			strings.Join(status.Missing, ", "), status.Hint)
	}

	folder, err := NewImageFolder(cfg.ProcessedDir(), opts.FolderOptions)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Indexed %d images in %d classes under %s", folder.Len(), folder.NumClasses(), folder.Root())
	return &Omniglot{ImageFolder: folder, cfg: cfg}, nil
}

// Config returns the configuration the dataset was loaded with.
func (o *Omniglot) Config() OmniglotConfig { return o.cfg }
