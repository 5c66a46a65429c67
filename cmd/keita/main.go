// Command keita trains a classifier telling normal sentences from their
// simplified rewrites. Input is a tab separated file of "normal<TAB>simple"
// pairs; hyperparameters come from an optional JSON file, with flags taking
// precedence.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/Noofbiz/keita/training"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	pairsPath := flag.String("pairs", "data/pairs.tsv", "tab separated sentence pairs (normal<TAB>simple)")
	configPath := flag.String("config", "", "path to a JSON training configuration (optional)")
	writeConfig := flag.String("write-config", "", "write the default configuration to this path and exit")
	printConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	vectorsPath := flag.String("vectors", "", "pretrained word vectors in GloVe text format (optional)")
	plotDir := flag.String("plots", "", "if set, write loss and accuracy plots to this directory")
	epochs := flag.Int("epochs", 0, "number of epochs (overrides JSON if > 0)")
	batchSize := flag.Int("batch-size", 0, "pairs per batch (overrides JSON if > 0)")
	learningRate := flag.Float64("learning-rate", 0, "learning rate (overrides JSON if > 0)")
	optimizer := flag.String("optimizer", "", "'adam' or 'sgd' (overrides JSON if set)")
	seed := flag.Int64("seed", 0, "random seed (overrides JSON if non-zero)")
	flag.Parse()
	defer klog.Flush()

	if *writeConfig != "" {
		if err := training.SaveConfig(*writeConfig, training.TemplateConfig()); err != nil {
			klog.Fatalf("failed to write default config: %v", err)
		}
		klog.Infof("Wrote default config to %s", *writeConfig)
		return
	}

	var cfg training.Config
	if *configPath != "" {
		var err error
		if cfg, err = training.LoadConfig(*configPath); err != nil {
			klog.Fatalf("%+v", err)
		}
		klog.Infof("Loaded config from %s", *configPath)
	}
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *learningRate > 0 {
		cfg.LearningRate = *learningRate
	}
	if *optimizer != "" {
		cfg.Optimizer = *optimizer
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		klog.Fatalf("invalid configuration: %v", err)
	}
	if *printConfig {
		out, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(out))
		return
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pairs, err := training.LoadPairs(*pairsPath)
	if err != nil {
		klog.Fatalf("%+v", err)
	}
	trainPairs, validPairs := training.SplitPairs(pairs, cfg.SplitFactor, rng)
	klog.Infof("Loaded %d pairs: %d train, %d valid", len(pairs), len(trainPairs), len(validPairs))

	vocab, err := training.BuildVocabulary(training.Sentences(trainPairs), cfg.EmbedSize, cfg.MinFreq, rng)
	if err != nil {
		klog.Fatalf("failed to build vocabulary: %v", err)
	}
	if *vectorsPath != "" {
		found, err := vocab.ReadVectors(*vectorsPath)
		if err != nil {
			klog.Fatalf("%+v", err)
		}
		klog.Infof("Pretrained vectors for %d of %d tokens", found, vocab.Len())
	}
	klog.Infof("Vocabulary: %d tokens, %d dims", vocab.Len(), vocab.Dim())

	train, err := training.NewPairIterator(trainPairs, vocab, cfg.BatchSize, rng, false)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	var valid training.PairSource
	if len(validPairs) > 0 {
		if valid, err = training.NewPairIterator(validPairs, vocab, cfg.BatchSize, nil, true); err != nil {
			klog.Fatalf("%v", err)
		}
	}

	net, err := training.NewLinearNet(cfg.EmbedSize, cfg.HiddenSize, cfg.NumClasses, rng)
	if err != nil {
		klog.Fatalf("failed to create model: %v", err)
	}
	opt, err := training.NewOptimizer(cfg, net.Parameters())
	if err != nil {
		klog.Fatalf("%v", err)
	}
	trainer := &training.Trainer{
		Model:     net,
		Criterion: training.NewCrossEntropy(net),
		Optimizer: opt,
		Vocab:     vocab,
		Rand:      rng,
	}

	var history training.History
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		res, err := trainer.TrainEpoch(epoch, train, valid)
		if err != nil {
			klog.Fatalf("training stopped: %+v", err)
		}
		history.Add(res)
	}

	if *plotDir != "" {
		if err := os.MkdirAll(*plotDir, 0o755); err != nil {
			klog.Fatalf("failed to create plot directory: %v", err)
		}
		if err := history.SaveLossPlot(filepath.Join(*plotDir, "loss.png")); err != nil {
			klog.Errorf("%v", err)
		}
		if err := history.SaveAccuracyPlot(filepath.Join(*plotDir, "accuracy.png")); err != nil {
			klog.Errorf("%v", err)
		}
		klog.Infof("Wrote plots to %s", *plotDir)
	}
}
