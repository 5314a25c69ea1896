package agentloop

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// LoopDetectionConfig holds the repetition thresholds.
type LoopDetectionConfig struct {
	// Tool-call detection.
	MinToolCalls      int `json:"min_tool_calls"`
	ToolCallWindow    int `json:"tool_call_window"`
	MaxUniqueToolKeys int `json:"max_unique_tool_keys"`
	MinToolKeyRepeats int `json:"min_tool_key_repeats"`

	// Text detection over the latest response.
	MinResponseLength  int `json:"min_response_length"`
	MinSentences       int `json:"min_sentences"`
	MinSentenceLength  int `json:"min_sentence_length"`
	MinSentenceRepeats int `json:"min_sentence_repeats"`
}

// DefaultLoopDetectionConfig returns the default thresholds.
func DefaultLoopDetectionConfig() LoopDetectionConfig {
	return LoopDetectionConfig{
		MinToolCalls:       12,
		ToolCallWindow:     20,
		MaxUniqueToolKeys:  2,
		MinToolKeyRepeats:  6,
		MinResponseLength:  200,
		MinSentences:       3,
		MinSentenceLength:  30,
		MinSentenceRepeats: 3,
	}
}

// ToolCallLoopDetection describes a trailing window dominated by one or two
// identical calls.
type ToolCallLoopDetection struct {
	ToolCountsWindow    map[string]int `json:"tool_counts_window"`
	WindowSize          int            `json:"window_size"`
	UniqueToolKeyCount  int            `json:"unique_tool_key_count"`
	MaxKeyCount         int            `json:"max_key_count"`
	TotalToolCallRounds int            `json:"total_tool_call_rounds"`
	TotalToolCalls      int            `json:"total_tool_calls"`
}

// TextLoopDetection describes a latest response that repeats a sentence.
type TextLoopDetection struct {
	RepeatCount    int `json:"repeat_count"`
	TotalSentences int `json:"total_sentences"`
	TotalRounds    int `json:"total_rounds"`
	ResponseLength int `json:"response_length"`
}

// DetectToolCallLoop flattens every call of the turn and inspects the
// trailing window. It returns nil when the turn looks healthy.
func DetectToolCallLoop(rounds []*ToolCallRound, cfg LoopDetectionConfig) *ToolCallLoopDetection {
	var calls []ToolCall
	for _, r := range rounds {
		calls = append(calls, r.toolCalls...)
	}
	if len(calls) < cfg.MinToolCalls {
		return nil
	}

	window := calls
	if cfg.ToolCallWindow > 0 && len(window) > cfg.ToolCallWindow {
		window = window[len(window)-cfg.ToolCallWindow:]
	}

	counts := make(map[string]int)
	maxCount := 0
	for _, c := range window {
		k := c.key()
		counts[k]++
		if counts[k] > maxCount {
			maxCount = counts[k]
		}
	}

	if len(counts) > cfg.MaxUniqueToolKeys || maxCount < cfg.MinToolKeyRepeats {
		return nil
	}
	return &ToolCallLoopDetection{
		ToolCountsWindow:    counts,
		WindowSize:          len(window),
		UniqueToolKeyCount:  len(counts),
		MaxKeyCount:         maxCount,
		TotalToolCallRounds: len(rounds),
		TotalToolCalls:      len(calls),
	}
}

var (
	sentenceBoundary = regexp.MustCompile(`[.!?\n]+`)
	nonAlphanumeric  = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// DetectTextLoop checks whether the most recent response repeats the same
// sentence. Earlier rounds are not examined.
func DetectTextLoop(rounds []*ToolCallRound, cfg LoopDetectionConfig) *TextLoopDetection {
	if len(rounds) == 0 {
		return nil
	}
	text := rounds[len(rounds)-1].response
	length := utf8.RuneCountInString(text)
	if length < cfg.MinResponseLength {
		return nil
	}

	var sentences []string
	for _, s := range sentenceBoundary.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < cfg.MinSentences {
		return nil
	}

	counts := make(map[string]int)
	maxCount := 0
	for _, s := range sentences {
		norm := normalizeSentence(s)
		if utf8.RuneCountInString(norm) < cfg.MinSentenceLength {
			continue
		}
		counts[norm]++
		if counts[norm] > maxCount {
			maxCount = counts[norm]
		}
	}
	if maxCount < cfg.MinSentenceRepeats {
		return nil
	}
	return &TextLoopDetection{
		RepeatCount:    maxCount,
		TotalSentences: len(sentences),
		TotalRounds:    len(rounds),
		ResponseLength: length,
	}
}

func normalizeSentence(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}
