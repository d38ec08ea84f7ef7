package validation

import (
	"fmt"
	"regexp"
	"strings"

	"code-reels/internal/utils/text"
)

// QualityRule holds the thresholds applied to one text field of a task
// type's response. Zero values disable the corresponding check.
type QualityRule struct {
	Field        string `yaml:"field" json:"field"`
	MinLength    int    `yaml:"min_length" json:"min_length,omitempty"`
	MaxLength    int    `yaml:"max_length" json:"max_length,omitempty"`
	MinNodes     int    `yaml:"min_nodes" json:"min_nodes,omitempty"`
	CheckTrivial bool   `yaml:"check_trivial" json:"check_trivial,omitempty"`
}

// QualityResult is the outcome of ValidateQuality.
type QualityResult struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// DefaultRules returns the built-in thresholds for the eli5, tldr and diagram
// task types.
func DefaultRules() map[string]QualityRule {
	return map[string]QualityRule{
		"eli5":    {Field: "eli5", MinLength: 50, MaxLength: 1000},
		"tldr":    {Field: "tldr", MinLength: 20, MaxLength: 300},
		"diagram": {Field: "diagram", MinLength: 50, MinNodes: 3, CheckTrivial: true},
	}
}

// DefaultTrivialPatterns returns the built-in placeholder diagram patterns.
// They are regular expressions matched against the whole diagram text.
func DefaultTrivialPatterns() []string {
	return []string{
		`(?i)\bstart\b[^\n]*-->[^\n]*\bend\b`,
		`(?is)\bstep\s*1\b.*\bstep\s*2\b.*\bstep\s*3\b`,
		`(?i)\b(?:placeholder|lorem ipsum)\b`,
	}
}

// ValidateQuality checks response against the rule registered for taskType.
// Task types without a rule are always valid. A missing or non-text field is
// measured as empty text.
func (v *Validator) ValidateQuality(taskType string, response any) QualityResult {
	rule, ok := v.rules[taskType]
	if !ok {
		return QualityResult{Valid: true}
	}

	content := fieldText(response, rule.Field)
	length := text.CountTrimmedRunes(content)

	var warnings []string
	if rule.MinLength > 0 && length < rule.MinLength {
		warnings = append(warnings, fmt.Sprintf("%s too short: %d characters (minimum %d)", rule.Field, length, rule.MinLength))
	}
	if rule.MaxLength > 0 && length > rule.MaxLength {
		warnings = append(warnings, fmt.Sprintf("%s too long: %d characters (maximum %d)", rule.Field, length, rule.MaxLength))
	}
	if rule.MinNodes > 0 {
		if nodes := CountDiagramNodes(content); nodes < rule.MinNodes {
			warnings = append(warnings, fmt.Sprintf("%s has too few nodes: %d (minimum %d)", rule.Field, nodes, rule.MinNodes))
		}
	}
	if rule.CheckTrivial {
		for _, re := range v.trivial {
			if re.MatchString(content) {
				warnings = append(warnings, fmt.Sprintf("%s matches trivial pattern %q", rule.Field, re.String()))
			}
		}
	}

	return QualityResult{Valid: len(warnings) == 0, Warnings: warnings}
}

func fieldText(response any, field string) string {
	if s, ok := response.(string); ok && field == "" {
		return s
	}
	obj, ok := asObject(response)
	if !ok {
		return ""
	}
	s, _ := obj[field].(string)
	return s
}

var (
	quotedLabel  = regexp.MustCompile(`"[^"]*"`)
	shapeLabel   = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	edgeLabel    = regexp.MustCompile(`\|[^|]*\|`)
	textEdge     = regexp.MustCompile(`--\s[^->]+?\s-->|==\s[^=>]+?\s==>|-\.\s[^.>]+?\s\.->`)
	edgeOperator = regexp.MustCompile(`\s*(?:<?-\.+->?|<?-{2,}>?|<?={2,}>?|~~~)\s*`)
	nodeID       = regexp.MustCompile(`^[A-Za-z0-9_][\w-]*`)
	shapeDecl    = regexp.MustCompile(`^[A-Za-z0-9_][\w-]*\s*[\[\(\{>]`)
)

// CountDiagramNodes counts the distinct node ids of a Mermaid style
// flowchart. Nodes are taken from shape declarations such as A[Label],
// B(Label) or C{Label} and from both ends of edges such as A --> B,
// A -.-> B, A ==> B or A -->|label| B. Header and styling lines are ignored.
func CountDiagramNodes(diagram string) int {
	nodes := make(map[string]struct{})

	for _, line := range strings.Split(diagram, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" || isKeywordLine(line) {
			continue
		}

		hasShape := shapeDecl.MatchString(line)

		line = quotedLabel.ReplaceAllString(line, "")
		line = shapeLabel.ReplaceAllString(line, "")
		line = edgeLabel.ReplaceAllString(line, "")
		line = textEdge.ReplaceAllString(line, "-->")

		segments := edgeOperator.Split(line, -1)
		if len(segments) < 2 && !hasShape {
			continue
		}

		for _, segment := range segments {
			for _, part := range strings.Split(segment, "&") {
				id := nodeID.FindString(strings.TrimSpace(part))
				if id == "" {
					continue
				}
				nodes[id] = struct{}{}
			}
		}
	}

	return len(nodes)
}

// isKeywordLine reports header, grouping, styling and comment lines, which
// declare no nodes.
func isKeywordLine(line string) bool {
	lower := strings.ToLower(line)
	if lower == "end" || strings.HasPrefix(lower, "%%") || strings.HasPrefix(lower, "```") {
		return true
	}

	word := lower
	if i := strings.IndexAny(lower, " \t"); i >= 0 {
		word = lower[:i]
	}
	switch word {
	case "graph", "flowchart", "subgraph", "direction", "classdef", "class", "style", "linkstyle", "click":
		return true
	}
	return false
}
