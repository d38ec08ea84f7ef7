package provider_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-reels/internal/infra/provider"
	"code-reels/internal/validation"
)

func TestBuildPrompt_KnownTask(t *testing.T) {
	schema := validation.Schema{
		"tldr":     validation.KindString,
		"keywords": validation.KindArray,
	}
	prompt, err := provider.BuildPrompt("tldr", map[string]any{"code": "func main() {}"}, schema)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Summarize the following code"))
	// fields are listed in name order
	keywords := strings.Index(prompt, `- "keywords" (array)`)
	tldr := strings.Index(prompt, `- "tldr" (string)`)
	assert.True(t, keywords >= 0 && tldr > keywords, prompt)
	assert.Contains(t, prompt, `"code": "func main() {}"`)
}

func TestBuildPrompt_UnknownTaskWithoutSchema(t *testing.T) {
	prompt, err := provider.BuildPrompt("haiku", "some input", nil)
	require.NoError(t, err)

	assert.Contains(t, prompt, `Perform the "haiku" task`)
	assert.Contains(t, prompt, "Respond with only a JSON object.\n")
	assert.Contains(t, prompt, `"some input"`)
}

func TestBuildPrompt_TruncatesLargeInput(t *testing.T) {
	prompt, err := provider.BuildPrompt("eli5", strings.Repeat("x", 20000), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(prompt, "...(truncated)"))
	assert.Less(t, len(prompt), 11000)
}

func TestBuildPrompt_Errors(t *testing.T) {
	_, err := provider.BuildPrompt("", "x", nil)
	assert.Error(t, err)

	_, err = provider.BuildPrompt("eli5", map[string]any{"ch": make(chan int)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal prompt context")
}
