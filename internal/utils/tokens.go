package utils

import "strings"

// TruncationMarker is appended to prompt sections cut by TruncateToTokenLimit.
const TruncationMarker = "\n[... truncated ...]"

// CountTokens estimates the number of tokens in the given text using the
// 1 token ~= 4 characters heuristic. Non-empty text counts as at least 1.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within limit tokens. The cut
// lands on the last line break inside the budget when one exists, and the
// result ends with TruncationMarker. Text already within the limit is
// returned unchanged.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	keep := charLimit - len([]rune(TruncationMarker))
	if keep <= 0 {
		return string(runes[:charLimit])
	}
	cut := string(runes[:keep])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + TruncationMarker
}
