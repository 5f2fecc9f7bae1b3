package rag

import (
	"fmt"
	"strings"
)

// FormatContext renders retrieved chunks as the numbered block the prompt
// composer appends before answering a knowledge question.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Relevant knowledge base excerpts:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(r.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}
