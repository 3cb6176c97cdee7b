package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codecraft-hq/codecraft/pkg/policy"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy documents",
	Long: `Validate policy documents for syntax and semantic errors.

The lint command parses policy documents and performs the same validation
the import API applies:
  - YAML/JSON syntax validation
  - Rule key presence
  - Regular expression compilation
  - Severity level validation

Examples:
  # Lint a single document
  codecraft lint --file policies.yaml

  # Lint a directory
  codecraft lint --dir policies/

  # JSON output for CI/CD
  codecraft lint --file policies.yaml --format json`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "policy document to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of policy documents")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintResult is the validation result for a single document.
type lintResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	RuleKeys []string `json:"rule_keys,omitempty"`
	Rules    int      `json:"rules,omitempty"`
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list policy documents: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no policy documents found")
	}

	loader := policy.NewLoader(nil)
	results := make([]lintResult, 0, len(files))
	failed := false

	for _, file := range files {
		result := lintResult{File: file, Valid: true}

		data, err := os.ReadFile(file)
		if err != nil {
			result.Valid = false
			result.Error = err.Error()
		} else if profile, err := loader.Import(data, nil); err != nil {
			result.Valid = false
			result.Error = err.Error()
			var validationErr *policy.ValidationError
			if errors.As(err, &validationErr) {
				result.RuleKeys = validationErr.RuleKeys
			}
		} else {
			result.Rules = len(profile.Rules)
		}

		if !result.Valid {
			failed = true
		}
		results = append(results, result)
	}

	if lintFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s (%d rules)\n", r.File, r.Rules)
			} else {
				fmt.Printf("✗ %s: %s\n", r.File, r.Error)
			}
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
