package convo

import (
	"errors"
	"fmt"
)

// ErrUnsupportedModel is returned when a model is not in the supported set.
// There is deliberately no fallback encoding: a wrong guess here would make
// the local budget drift from what the API actually bills and allows.
var ErrUnsupportedModel = errors.New("unsupported model")

// supportedModels are the chat-completion models whose message framing the
// budgeter knows how to account for.
var supportedModels = map[string]struct{}{
	"gpt-3.5-turbo":      {},
	"gpt-3.5-turbo-0301": {},
	"gpt-4":              {},
	"gpt-4-0314":         {},
	"gpt-4-32k":          {},
	"gpt-4-32k-0314":     {},
}

const (
	// Every message follows <im_start>{role}\n{content}<im_end>\n.
	perMessageOverhead = 4
	// Every reply is primed with <im_start>assistant.
	replyPrimingOverhead = 2
)

// CountTokens returns the token cost of sending conv to model, including the
// per-message framing overhead of the chat-completions wire format.
func CountTokens(conv []Message, model string) (int, error) {
	if _, ok := supportedModels[model]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}

	total := replyPrimingOverhead
	for _, m := range conv {
		total += perMessageOverhead
		total += estimateTokens(string(m.Role))
		total += estimateTokens(m.Content)
	}
	return total, nil
}

// RemainingBudget returns how many completion tokens are left after the
// conversation itself is paid for. May be negative; the caller must then
// truncate further or fail.
func RemainingBudget(conv []Message, model string, maxTokens int) (int, error) {
	used, err := CountTokens(conv, model)
	if err != nil {
		return 0, err
	}
	return maxTokens - used, nil
}

// estimateTokens estimates the token count of text with a Unicode-aware
// heuristic: ASCII runs ~4 chars per token, non-ASCII (CJK, Cyrillic, emoji)
// ~1 char per token.
func estimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
