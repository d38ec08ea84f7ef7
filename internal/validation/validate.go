package validation

import (
	"fmt"
	"regexp"
)

// Result is the combined outcome of schema and quality validation.
type Result struct {
	Valid           bool     `json:"valid"`
	SchemaErrors    []string `json:"schema_errors,omitempty"`
	QualityWarnings []string `json:"quality_warnings,omitempty"`
}

// SchemaValid reports whether the response passed the schema gate.
func (r Result) SchemaValid() bool {
	return len(r.SchemaErrors) == 0
}

// Option configures a Validator.
type Option func(*options)

type options struct {
	rules    map[string]QualityRule
	patterns []string
}

// WithRules replaces the per task type quality rules.
func WithRules(rules map[string]QualityRule) Option {
	return func(o *options) {
		o.rules = rules
	}
}

// WithRule adds or replaces the rule for one task type.
func WithRule(taskType string, rule QualityRule) Option {
	return func(o *options) {
		if o.rules == nil {
			o.rules = make(map[string]QualityRule)
		}
		o.rules[taskType] = rule
	}
}

// WithTrivialPatterns replaces the trivial diagram patterns. An empty list
// disables trivial pattern detection.
func WithTrivialPatterns(patterns []string) Option {
	return func(o *options) {
		o.patterns = patterns
	}
}

// Validator applies schema and quality checks. It holds no mutable state after
// construction and is safe for concurrent use.
type Validator struct {
	rules   map[string]QualityRule
	trivial []*regexp.Regexp
}

// NewValidator creates a validator with DefaultRules and
// DefaultTrivialPatterns unless options override them.
func NewValidator(opts ...Option) (*Validator, error) {
	o := options{
		rules:    DefaultRules(),
		patterns: DefaultTrivialPatterns(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	rules := make(map[string]QualityRule, len(o.rules))
	for taskType, rule := range o.rules {
		if rule.Field == "" {
			return nil, fmt.Errorf("quality rule for %q: field is required", taskType)
		}
		if rule.MinLength < 0 || rule.MaxLength < 0 || rule.MinNodes < 0 {
			return nil, fmt.Errorf("quality rule for %q: thresholds must be non-negative", taskType)
		}
		if rule.MaxLength > 0 && rule.MinLength > rule.MaxLength {
			return nil, fmt.Errorf("quality rule for %q: min length %d exceeds max length %d",
				taskType, rule.MinLength, rule.MaxLength)
		}
		rules[taskType] = rule
	}

	trivial := make([]*regexp.Regexp, 0, len(o.patterns))
	for _, pattern := range o.patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile trivial pattern %q: %w", pattern, err)
		}
		trivial = append(trivial, re)
	}

	return &Validator{rules: rules, trivial: trivial}, nil
}

// Rule returns the quality rule registered for taskType.
func (v *Validator) Rule(taskType string) (QualityRule, bool) {
	rule, ok := v.rules[taskType]
	return rule, ok
}

// Validate runs ValidateSchema and ValidateQuality. The result is valid only
// when both pass.
func (v *Validator) Validate(taskType string, response any, schema Schema) Result {
	schemaResult := ValidateSchema(response, schema)
	qualityResult := v.ValidateQuality(taskType, response)

	return Result{
		Valid:           schemaResult.Valid && qualityResult.Valid,
		SchemaErrors:    schemaResult.Errors,
		QualityWarnings: qualityResult.Warnings,
	}
}
