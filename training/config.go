package training

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Config holds the hyperparameters of the sentence classifier and its
// training loop. Zero fields are replaced by defaults in WithDefaults.
type Config struct {
	// BatchSize is the number of sentence pairs per step; the assembled
	// batch holds twice as many sentences.
	BatchSize int `json:"batch_size"`

	// EmbedSize is the embedding vector size.
	EmbedSize int `json:"embed_size"`

	// HiddenSize of the LinearNet hidden layer.
	HiddenSize int `json:"hidden_size"`

	// NumClasses of the classifier output.
	NumClasses int `json:"num_classes"`

	Epochs int `json:"epochs"`

	// Optimizer is "adam" or "sgd".
	Optimizer    string  `json:"optimizer"`
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"adam_beta1"`
	Beta2        float64 `json:"adam_beta2"`
	Epsilon      float64 `json:"adam_eps"`

	// ClipNorm is the gradient clipping threshold, disabled if zero.
	ClipNorm float64 `json:"clip_norm"`

	// SplitFactor is the fraction of pairs used for training, the rest
	// validates.
	SplitFactor float64 `json:"split_factor"`

	// MinFreq is the minimum count for a token to enter the vocabulary.
	MinFreq int `json:"min_freq"`

	// Seed controls weight init and shuffling. If zero, time-based seed is used.
	Seed int64 `json:"seed"`
}

// DefaultConfig returns the defaults of the example training run.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills zero fields with defaults.
func (c Config) WithDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.EmbedSize == 0 {
		c.EmbedSize = 300
	}
	if c.HiddenSize == 0 {
		c.HiddenSize = 512
	}
	if c.NumClasses == 0 {
		c.NumClasses = 2
	}
	if c.Epochs == 0 {
		c.Epochs = 100
	}
	if c.Optimizer == "" {
		c.Optimizer = "adam"
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.001
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-8
	}
	if c.SplitFactor == 0 {
		c.SplitFactor = 0.9
	}
	if c.MinFreq == 0 {
		c.MinFreq = 1
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Validate reports configurations no trainer can run with.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.Errorf("invalid batch_size %d", c.BatchSize)
	case c.EmbedSize <= 0:
		return errors.Errorf("invalid embed_size %d", c.EmbedSize)
	case c.HiddenSize <= 0:
		return errors.Errorf("invalid hidden_size %d", c.HiddenSize)
	case c.NumClasses < 2:
		return errors.Errorf("num_classes must be at least 2, got %d", c.NumClasses)
	case c.SplitFactor <= 0 || c.SplitFactor > 1:
		return errors.Errorf("split_factor must be in (0, 1], got %g", c.SplitFactor)
	}
	return nil
}

// LoadConfig reads a JSON configuration file. Fields missing from the file
// take their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg.WithDefaults(), nil
}

// TemplateConfig is DefaultConfig with Seed left at zero, for writing a
// config file that picks a fresh seed on every run.
func TemplateConfig() Config {
	c := DefaultConfig()
	c.Seed = 0
	return c
}

// SaveConfig writes cfg as indented JSON to path, creating its directory.
func SaveConfig(path string, cfg Config) error {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}
