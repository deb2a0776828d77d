package agent

import (
	"regexp"
	"strings"
)

// thinkBlock matches a reasoning segment the model wraps in <think> tags.
// Non-greedy and dot-matches-newline: each block is removed whole even
// when it spans lines.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Clean strips reasoning blocks and newlines from raw model output.
func Clean(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	return strings.ReplaceAll(out, "\n", "")
}
