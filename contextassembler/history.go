package contextassembler

// AddToHistory appends one conversational turn to the assembler's bounded
// history slot. The bound is enforced by the caller via maxEntries on
// GetHistory; AddToHistory itself never truncates.
func (a *Assembler) AddToHistory(role, content string, metadata map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if metadata == nil {
		metadata = map[string]any{}
	}
	a.history = append(a.history, HistoryEntry{Role: role, Content: content, Metadata: metadata})
}

// GetHistory returns the most recent maxEntries turns, or the full history
// when maxEntries <= 0.
func (a *Assembler) GetHistory(maxEntries int) []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if maxEntries <= 0 || maxEntries >= len(a.history) {
		out := make([]HistoryEntry, len(a.history))
		copy(out, a.history)
		return out
	}
	start := len(a.history) - maxEntries
	out := make([]HistoryEntry, maxEntries)
	copy(out, a.history[start:])
	return out
}

// ClearHistory empties the history slot.
func (a *Assembler) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}
