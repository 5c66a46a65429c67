package datasets

import (
	"archive/zip"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/examples/downloader"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Default locations of the Omniglot archives and the folders they unpack to.
var (
	OmniglotURLs = []string{
		"https://github.com/brendenlake/omniglot/raw/master/python/images_background.zip",
		"https://github.com/brendenlake/omniglot/raw/master/python/images_evaluation.zip",
	}
	OmniglotSubdirs = []string{"images_evaluation", "images_background"}
)

const (
	DefaultRawFolder       = "raw"
	DefaultProcessedFolder = "processed"
)

// OmniglotConfig says where the dataset lives on disk and where to fetch it
// from when it is missing.
type OmniglotConfig struct {
	// Root directory, e.g. "data/omniglot".
	Root string

	// RawFolder holds the downloaded archives, relative to Root.
	RawFolder string

	// ProcessedFolder holds the extracted images, relative to Root.
	ProcessedFolder string

	// URLs of the zip archives, fetched in order.
	URLs []string

	// RequiredSubdirs must all exist under ProcessedFolder for the dataset to
	// be considered present.
	RequiredSubdirs []string

	// ShowProgress draws progress bars while downloading and extracting.
	ShowProgress bool
}

// DefaultOmniglotConfig returns the configuration of the public Omniglot
// archives rooted at root.
func DefaultOmniglotConfig(root string) OmniglotConfig {
	return OmniglotConfig{
		Root:            root,
		RawFolder:       DefaultRawFolder,
		ProcessedFolder: DefaultProcessedFolder,
		URLs:            append([]string(nil), OmniglotURLs...),
		RequiredSubdirs: append([]string(nil), OmniglotSubdirs...),
	}
}

func (c OmniglotConfig) withDefaults() OmniglotConfig {
	if c.RawFolder == "" {
		c.RawFolder = DefaultRawFolder
	}
	if c.ProcessedFolder == "" {
		c.ProcessedFolder = DefaultProcessedFolder
	}
	if c.URLs == nil {
		c.URLs = OmniglotURLs
	}
	if c.RequiredSubdirs == nil {
		c.RequiredSubdirs = OmniglotSubdirs
	}
	return c
}

// RawDir is the directory archives are downloaded to.
func (c OmniglotConfig) RawDir() string {
	c = c.withDefaults()
	return filepath.Join(c.Root, c.RawFolder)
}

// ProcessedDir is the directory archives are extracted into.
func (c OmniglotConfig) ProcessedDir() string {
	c = c.withDefaults()
	return filepath.Join(c.Root, c.ProcessedFolder)
}

// DatasetStatus is the result of looking for the extracted dataset on disk.
type DatasetStatus struct {
	Found bool

	// Missing lists the required directories that were not found.
	Missing []string

	// Hint tells the caller how to get the dataset when it is not found.
	Hint string
}

// CheckOmniglot reports whether every required subdirectory exists.
func CheckOmniglot(cfg OmniglotConfig) DatasetStatus {
	cfg = cfg.withDefaults()
	status := DatasetStatus{Found: true}
	for _, sub := range cfg.RequiredSubdirs {
		dir := filepath.Join(cfg.ProcessedDir(), sub)
		if _, err := os.Stat(dir); err != nil {
			status.Found = false
			status.Missing = append(status.Missing, dir)
		}
	}
	if !status.Found {
		status.Hint = "enable download to fetch it into " + cfg.Root
	}
	return status
}

// EnsureOmniglot makes sure the extracted dataset exists under cfg.Root. If
// it is already present nothing is done. Otherwise every archive is
// downloaded into the raw folder and extracted into the processed folder,
// one at a time. The first failure aborts the whole operation; a partially
// downloaded dataset has to be removed by the caller before retrying.
func EnsureOmniglot(cfg OmniglotConfig) error {
	cfg = cfg.withDefaults()
	if CheckOmniglot(cfg).Found {
		return nil
	}

	for _, dir := range []string{cfg.RawDir(), cfg.ProcessedDir()} {
		if err := makeDir(dir); err != nil {
			return err
		}
	}

	for _, u := range cfg.URLs {
		klog.Infof("Downloading %s", u)
		archive, err := download(cfg, u)
		if err != nil {
			return err
		}
		if err := unzip(archive, cfg.ProcessedDir(), cfg.ShowProgress); err != nil {
			return err
		}
	}
	klog.Info("Download finished.")
	return nil
}

// makeDir creates dir, treating an already existing directory as success.
func makeDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return errors.Wrapf(err, "failed to create %s", dir)
}

// archiveName is the last path segment of the URL.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid archive URL %q", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", errors.Errorf("archive URL %q has no file name", rawURL)
	}
	return name, nil
}

// download fetches rawURL into the raw folder and returns the local path.
// The HTTP status is not checked: an error page saved in place of the
// archive is rejected by unzip.
func download(cfg OmniglotConfig, rawURL string) (string, error) {
	name, err := archiveName(rawURL)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(cfg.RawDir(), name)
	size, err := downloader.Download(rawURL, filePath, cfg.ShowProgress)
	if err != nil {
		return "", errors.Wrapf(err, "failed to download %s", rawURL)
	}
	klog.V(1).Infof("Saved %s (%d bytes)", filePath, size)
	return filePath, nil
}

// unzip extracts every entry of the archive under dest.
func unzip(archive, dest string, showProgress bool) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrapf(err, "failed to open archive %s", archive)
	}
	defer r.Close()

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(r.File)), "extracting "+filepath.Base(archive))
		defer bar.Close()
	}
	for _, zf := range r.File {
		if bar != nil {
			_ = bar.Add(1)
		}
		target := filepath.Join(dest, filepath.FromSlash(zf.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return errors.Errorf("archive %s: entry %q escapes %s", archive, zf.Name, dest)
		}
		if zf.FileInfo().IsDir() {
			if err := makeDir(target); err != nil {
				return err
			}
			continue
		}
		if err := makeDir(filepath.Dir(target)); err != nil {
			return err
		}
		if err := extractFile(zf, target); err != nil {
			return errors.Wrapf(err, "archive %s", archive)
		}
	}
	return nil
}

func extractFile(zf *zip.File, target string) error {
	src, err := zf.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open entry %s", zf.Name)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", target)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "failed to extract %s", zf.Name)
	}
	return dst.Close()
}
