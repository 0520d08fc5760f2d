// Package analyze extracts structured requirements from a raw project
// idea. Extraction is a pure function of its inputs: no network, no
// side effects, deterministic output for the same idea and context.
package analyze

import (
	"strings"

	"github.com/prakashgbid/caia-sub003/pkg/errors"
	"github.com/prakashgbid/caia-sub003/pkg/models"
)

// Requirements is the structured form of an idea, consumed by the
// hierarchy builder and the analysis streams.
type Requirements struct {
	// Idea is the original idea string, trimmed.
	Idea string
	// Objectives are the top-level goals extracted from the idea.
	// Always at least one.
	Objectives []string
	// Constraints are limiting conditions found in idea or context.
	Constraints []string
	// Signals are clarity indicators used by the confidence scorer.
	Signals ClaritySignals
	// Team is the caller-supplied team context, passed through.
	Team models.TeamContext
}

// ClaritySignals capture how well specified the idea is. The builder's
// default scoring function turns these into per-node confidence.
type ClaritySignals struct {
	// WordCount is the length of the idea in words.
	WordCount int
	// HasContext is true when the caller supplied extra context.
	HasContext bool
	// ActionVerbs counts recognized action verbs in the idea.
	ActionVerbs int
	// TechTerms counts recognized technology terms across idea,
	// context and the team's known stacks.
	TechTerms int
	// Ambiguous counts vague phrases that lower confidence.
	Ambiguous int
}

var actionVerbs = []string{
	"build", "create", "implement", "add", "design", "develop",
	"migrate", "integrate", "refactor", "deploy", "automate", "support",
}

var techTerms = []string{
	"api", "database", "auth", "login", "page", "service", "queue",
	"cache", "frontend", "backend", "mobile", "cli", "pipeline",
	"search", "payment", "dashboard", "notification", "storage",
}

var vaguePhrases = []string{
	"something like", "maybe", "somehow", "etc", "and so on",
	"or whatever", "stuff", "things",
}

// Analyzer extracts Requirements from raw input.
type Analyzer struct{}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze extracts requirements from idea, optional context and team
// context. An empty idea is a configuration error.
func (a *Analyzer) Analyze(idea, context string, team models.TeamContext) (*Requirements, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, errors.NewConfiguration("idea", "must not be empty")
	}

	req := &Requirements{
		Idea:       idea,
		Objectives: extractObjectives(idea),
		Team:       team,
	}
	req.Constraints = extractConstraints(idea, context, team)
	req.Signals = extractSignals(idea, context, team)
	return req, nil
}

// extractObjectives splits the idea into top-level goals. Sentences
// and "and"-joined clauses each become one objective; a one-clause
// idea yields a single objective.
func extractObjectives(idea string) []string {
	var objectives []string
	for _, sentence := range splitSentences(idea) {
		for _, clause := range strings.Split(sentence, " and ") {
			clause = strings.TrimSpace(clause)
			if clause != "" {
				objectives = append(objectives, clause)
			}
		}
	}
	if len(objectives) == 0 {
		objectives = []string{idea}
	}
	return objectives
}

func splitSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n'
	})
}

// extractConstraints collects limiting conditions from the inputs.
func extractConstraints(idea, context string, team models.TeamContext) []string {
	var constraints []string
	combined := strings.ToLower(idea + " " + context)

	for _, marker := range []string{"must ", "only ", "within ", "no more than", "cannot ", "without "} {
		if strings.Contains(combined, marker) {
			constraints = append(constraints, "idea contains requirement marker: "+strings.TrimSpace(marker))
		}
	}
	if team.TimelineWeeks > 0 {
		constraints = append(constraints, "timeline bounded")
	}
	if team.Size > 0 && team.Size <= 2 {
		constraints = append(constraints, "small team")
	}
	return constraints
}

// extractSignals counts clarity indicators in the inputs.
func extractSignals(idea, context string, team models.TeamContext) ClaritySignals {
	lower := strings.ToLower(idea)
	lowerAll := lower + " " + strings.ToLower(context)

	sig := ClaritySignals{
		WordCount:  len(strings.Fields(idea)),
		HasContext: strings.TrimSpace(context) != "",
	}
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			sig.ActionVerbs++
		}
	}
	for _, term := range techTerms {
		if strings.Contains(lowerAll, term) {
			sig.TechTerms++
		}
	}
	for _, tech := range team.Technologies {
		if t := strings.ToLower(strings.TrimSpace(tech)); t != "" && strings.Contains(lowerAll, t) {
			sig.TechTerms++
		}
	}
	for _, phrase := range vaguePhrases {
		if strings.Contains(lowerAll, phrase) {
			sig.Ambiguous++
		}
	}
	return sig
}

// Clarity folds the signals into a single score in [0,1]. Used as the
// builder's default confidence baseline.
func (s ClaritySignals) Clarity() float64 {
	score := 0.5

	// Reward specificity
	if s.ActionVerbs > 0 {
		score += 0.15
	}
	if s.TechTerms > 0 {
		score += 0.1
	}
	if s.TechTerms > 2 {
		score += 0.05
	}
	if s.HasContext {
		score += 0.1
	}
	if s.WordCount >= 4 {
		score += 0.1
	}

	// Penalize vagueness
	penalty := float64(s.Ambiguous) * 0.1
	if penalty > 0.3 {
		penalty = 0.3
	}
	score -= penalty

	if score < 0.0 {
		score = 0.0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
