package backend

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token count of a text.
type TokenCounter func(text string) int

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the cl100k_base encoding. When the encoding
// cannot be loaded it falls back to four characters per token.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return ApproximateTokens(text)
	}
	return len(encoding.Encode(text, nil, nil))
}

// ApproximateTokens is the four-characters-per-token heuristic.
func ApproximateTokens(text string) int {
	return (len(text) + 3) / 4
}
