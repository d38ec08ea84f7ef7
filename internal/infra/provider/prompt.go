package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"code-reels/internal/utils/text"
	"code-reels/internal/validation"
)

// maxInputRunes bounds the serialized context embedded in a prompt.
const maxInputRunes = 10000

var instructions = map[string]string{
	"eli5": "Explain the following code as if to a curious five year old. " +
		"Use plain words and one everyday analogy.",
	"tldr": "Summarize the following code in two or three short sentences " +
		"for a busy engineer.",
	"diagram": "Describe the following code as a Mermaid flowchart. " +
		"Use at least three distinct, meaningfully labelled nodes and no placeholder steps.",
}

// BuildPrompt renders the prompt for taskType. The payload is embedded as
// JSON and the response is asked to be a JSON object shaped like schema.
func BuildPrompt(taskType string, payload any, schema validation.Schema) (string, error) {
	if taskType == "" {
		return "", errors.New("task type cannot be empty")
	}

	input, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt context: %w", err)
	}

	var b strings.Builder
	if instruction, ok := instructions[taskType]; ok {
		b.WriteString(instruction)
	} else {
		fmt.Fprintf(&b, "Perform the %q task on the following input.", taskType)
	}
	b.WriteString("\n\n")

	if len(schema) > 0 {
		fields := make([]string, 0, len(schema))
		for field := range schema {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		b.WriteString("Respond with only a JSON object containing these fields:\n")
		for _, field := range fields {
			fmt.Fprintf(&b, "- %q (%s)\n", field, schema[field])
		}
	} else {
		b.WriteString("Respond with only a JSON object.\n")
	}

	b.WriteString("\nInput:\n")
	b.WriteString(text.Truncate(string(input), maxInputRunes, "\n...(truncated)"))
	return b.String(), nil
}
