package models

import "time"

// MemoryType places a memory in one of the retention tiers.
type MemoryType string

const (
	// MemoryShortTerm holds recent conversational context, evicted
	// oldest-first when the tier cap is exceeded.
	MemoryShortTerm MemoryType = "short_term"
	// MemoryLongTerm holds durable facts, evicted lowest-importance,
	// then oldest, first.
	MemoryLongTerm MemoryType = "long_term"
	// MemoryWorking holds scratch state for the task at hand, evicted
	// oldest-first.
	MemoryWorking MemoryType = "working"
)

// Valid reports whether t is a known tier.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryShortTerm, MemoryLongTerm, MemoryWorking:
		return true
	}
	return false
}

// MemoryImportance orders memories for retention and retrieval.
type MemoryImportance string

const (
	ImportanceLow      MemoryImportance = "low"
	ImportanceMedium   MemoryImportance = "medium"
	ImportanceHigh     MemoryImportance = "high"
	ImportanceCritical MemoryImportance = "critical"
)

// Rank maps an importance to its ordinal, low lowest. Unknown values
// rank below low so malformed imports never displace real entries.
func (i MemoryImportance) Rank() int {
	switch i {
	case ImportanceLow:
		return 1
	case ImportanceMedium:
		return 2
	case ImportanceHigh:
		return 3
	case ImportanceCritical:
		return 4
	}
	return 0
}

// Valid reports whether i is a known importance level.
func (i MemoryImportance) Valid() bool {
	return i.Rank() > 0
}

// Memory is one stored entry in a memory store.
type Memory struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Type       MemoryType        `json:"type"`
	Importance MemoryImportance  `json:"importance"`
	Timestamp  time.Time         `json:"timestamp"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MemoryStats summarizes the contents of one memory store.
type MemoryStats struct {
	Total        int                      `json:"total"`
	ByType       map[MemoryType]int       `json:"by_type"`
	ByImportance map[MemoryImportance]int `json:"by_importance"`
}
