package chunker

import "strings"

// Tokenize splits text into whitespace-delimited tokens. It approximates
// the embedding model's tokenizer closely enough for budgeting purposes
// while staying fully deterministic across platforms.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the token length of text under the same rules the
// Chunker budgets with.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
