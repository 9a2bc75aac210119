package core

import (
	"slices"
)

// DeletedEntryLabel names the entry of an orphaned history record.
const DeletedEntryLabel = "deleted entry"

// HistoryLine is a history record resolved against the current entries.
type HistoryLine struct {
	HistoryEntry
	EntryName string `json:"entryName"`
	Orphaned  bool   `json:"orphaned"`
}

// HistoryFor returns the records of one entry, newest first.
func HistoryFor(all []HistoryEntry, entryID int64) []HistoryEntry {
	var out []HistoryEntry
	for _, h := range all {
		if h.EntryID == entryID {
			out = append(out, h)
		}
	}
	slices.SortStableFunc(out, func(a, b HistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// DescribeHistory attaches entry names. Records whose entry no longer exists
// are labeled DeletedEntryLabel.
func DescribeHistory(history []HistoryEntry, entries []FinanceEntry) []HistoryLine {
	names := make(map[int64]string, len(entries))
	for _, e := range entries {
		names[e.ID] = e.Name
	}
	out := make([]HistoryLine, 0, len(history))
	for _, h := range history {
		name, ok := names[h.EntryID]
		if !ok {
			name = DeletedEntryLabel
		}
		out = append(out, HistoryLine{HistoryEntry: h, EntryName: name, Orphaned: !ok})
	}
	return out
}
