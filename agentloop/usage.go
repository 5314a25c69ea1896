package agentloop

import (
	"sync"

	"github.com/martinemde/toolloop/backend"
)

// UsageTotals accumulates token counts across turns. It is safe for
// concurrent use.
type UsageTotals struct {
	mu         sync.Mutex
	prompt     int
	completion int
	reports    int
}

// Report implements UsageSink.
func (u *UsageTotals) Report(promptTokens, completionTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompt += promptTokens
	u.completion += completionTokens
	u.reports++
}

// Aggregate folds in usage that was not reported directly, such as a
// sub-agent turn's total.
func (u *UsageTotals) Aggregate(usage backend.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompt += usage.InputTokens
	u.completion += usage.OutputTokens
}

// Totals returns the accumulated prompt and completion tokens.
func (u *UsageTotals) Totals() (promptTokens, completionTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.prompt, u.completion
}

// Reports returns how many times Report was called.
func (u *UsageTotals) Reports() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reports
}
