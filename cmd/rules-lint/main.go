// Package main provides the reference-artifact linter. It loads an artifact,
// runs the same integrity validation the engine applies at startup, and
// prints a summary. Exits non-zero on any violation, so rule changes can be
// gated in CI before a classification run ever sees them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/neuroonc-procedure-classifier/internal/reference"
)

func main() {
	rulesPath := flag.String("rules", "config/rules.yaml", "path to the reference rules artifact")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	snap, err := reference.LoadArtifact(*rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rules-lint: %s: %v\n", *rulesPath, err)
		os.Exit(1)
	}

	summary := snap.Describe()

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "rules-lint: encoding summary: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("%s: OK\n", *rulesPath)
	for _, key := range []string{"version", "primary_codes", "institutional_codes", "keyword_rules", "supporting_terms", "contradicting_terms"} {
		if value, ok := summary[key]; ok {
			fmt.Printf("  %-20s %v\n", key, value)
		}
	}
}
