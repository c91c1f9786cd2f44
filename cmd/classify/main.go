// Package main provides the standalone batch classifier: it reads procedure
// signals from a JSON file, evaluates them against a reference artifact, and
// writes one classification result per input record. No databases required.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/neuroonc-procedure-classifier/internal/classifier"
	"github.com/neuroonc-procedure-classifier/internal/config"
	"github.com/neuroonc-procedure-classifier/internal/domain"
	"github.com/neuroonc-procedure-classifier/internal/reference"
)

func main() {
	cfg := config.LoadLiteConfig()

	rulesPath := flag.String("rules", cfg.RulesPath, "path to the reference rules artifact")
	inputPath := flag.String("input", "-", "input JSON file with an array of procedure signals ('-' for stdin)")
	outputPath := flag.String("output", "-", "output JSON file ('-' for stdout)")
	workers := flag.Int("workers", cfg.Workers, "batch parallelism (0 = all CPUs)")
	threshold := flag.Int("threshold", cfg.ReviewThreshold, "confidence score below which results are flagged for review")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if parsed, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		logger.SetLevel(parsed)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := run(*rulesPath, *inputPath, *outputPath, *workers, *threshold, logger); err != nil {
		logger.WithError(err).Fatal("Batch classification failed")
	}
}

func run(rulesPath, inputPath, outputPath string, workers, threshold int, logger *logrus.Logger) error {
	refs, err := reference.NewStore(rulesPath, logger)
	if err != nil {
		return fmt.Errorf("loading reference tables: %w", err)
	}

	signals, err := readSignals(inputPath)
	if err != nil {
		return fmt.Errorf("reading signals: %w", err)
	}
	if len(signals) == 0 {
		return fmt.Errorf("no signals in input")
	}

	engine := classifier.New(refs, logger)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := engine.ClassifyBatchWorkers(context.Background(), signals, workers)

	if err := writeResults(outputPath, results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	logSummary(results, threshold, logger)
	return nil
}

func readSignals(path string) ([]*domain.ProcedureSignal, error) {
	var reader io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader = f
	}

	var signals []*domain.ProcedureSignal
	if err := json.NewDecoder(reader).Decode(&signals); err != nil {
		return nil, fmt.Errorf("decoding signal array: %w", err)
	}
	return signals, nil
}

func writeResults(path string, results []*domain.ClassificationResult) error {
	var writer io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		writer = f
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func logSummary(results []*domain.ClassificationResult, threshold int, logger *logrus.Logger) {
	var tumor, excluded, needsReview int
	byCategory := make(map[string]int)

	for _, result := range results {
		byCategory[result.Category.String()]++
		if result.IsTumorRelated {
			tumor++
		}
		if result.IsExcluded {
			excluded++
		}
		if result.NeedsReview(threshold) {
			needsReview++
		}
	}

	logger.WithFields(logrus.Fields{
		"records":       len(results),
		"tumor_related": tumor,
		"excluded":      excluded,
		"needs_review":  needsReview,
		"by_category":   byCategory,
	}).Info("Batch classification completed")
}
