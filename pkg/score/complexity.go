package score

import (
	"math"
	"strings"
)

// Analyzer is the static-analysis collaborator contract: it reports a
// complexity estimate for a body of code. A real analyzer (cyclomatic
// complexity, cognitive complexity) can replace the built-in heuristic
// without touching the scorer.
type Analyzer interface {
	Complexity(code string) float64
}

// controlKeywords are the line prefixes and fragments counted as control
// statements by the heuristic analyzer. The table is language-neutral on
// purpose: the engine scans code text without parsing it.
var controlKeywords = []string{
	"if ", "for ", "while ", "switch ", "case ",
	"def ", "func ", "class ", "try", "with ", "catch",
}

// HeuristicAnalyzer estimates complexity as the number of non-empty lines
// plus log2 of the control-statement count plus one, rounded to two decimal
// places. Cheap, deterministic, and good enough to detect whether a refactor
// made code heavier or lighter.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the built-in analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Complexity implements Analyzer.
func (a *HeuristicAnalyzer) Complexity(code string) float64 {
	var lineCount, controlCount int
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineCount++
		for _, keyword := range controlKeywords {
			if strings.Contains(line, keyword) {
				controlCount++
			}
		}
	}
	return round2(float64(lineCount) + math.Log2(float64(controlCount)+1))
}

// Delta returns complexity(after) − complexity(before), rounded to two
// decimal places.
func Delta(a Analyzer, before, after string) float64 {
	return round2(a.Complexity(after) - a.Complexity(before))
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
