package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadenza-ai/cadenza/pkg/models"
)

const (
	// DefaultMaxShortTerm caps the short_term tier.
	DefaultMaxShortTerm = 50
	// DefaultMaxLongTerm caps the long_term tier.
	DefaultMaxLongTerm = 100
	// DefaultMaxWorking caps the working tier.
	DefaultMaxWorking = 50

	// contextMaxMemories bounds how many entries a context block holds.
	contextMaxMemories = 10
	// retrievalMaxKeywords bounds how many input tokens drive retrieval.
	retrievalMaxKeywords = 5
	// retrievalMinKeywordLen filters out short stopword-ish tokens.
	retrievalMinKeywordLen = 3
)

// StoreConfig caps each retention tier. Zero values get defaults.
type StoreConfig struct {
	MaxShortTerm int
	MaxLongTerm  int
	MaxWorking   int
}

func (c *StoreConfig) setDefaults() {
	if c.MaxShortTerm <= 0 {
		c.MaxShortTerm = DefaultMaxShortTerm
	}
	if c.MaxLongTerm <= 0 {
		c.MaxLongTerm = DefaultMaxLongTerm
	}
	if c.MaxWorking <= 0 {
		c.MaxWorking = DefaultMaxWorking
	}
}

type entry struct {
	mem models.Memory
	seq uint64
}

// Store is one tiered memory store. Eviction runs after every add:
// short_term and working drop their oldest entries, long_term drops the
// least important, oldest first within equal importance. Safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
	config  StoreConfig
}

// NewStore creates an empty store with the given tier caps.
func NewStore(config StoreConfig) *Store {
	config.setDefaults()
	return &Store{
		entries: make(map[string]*entry),
		config:  config,
	}
}

// Add stores a new memory and returns it with generated id and
// timestamp. Unknown importance values are normalized to medium.
func (s *Store) Add(content string, typ models.MemoryType, importance models.MemoryImportance, tags []string, metadata map[string]string) models.Memory {
	if !importance.Valid() {
		importance = models.ImportanceMedium
	}
	mem := models.Memory{
		ID:         newMemoryID(),
		Content:    content,
		Type:       typ,
		Importance: importance,
		Timestamp:  time.Now(),
		Tags:       tags,
		Metadata:   metadata,
	}
	s.Put(mem)
	return mem
}

// Put stores a memory as-is, keeping caller-supplied id and timestamp.
// Used by imports. An existing entry with the same id is replaced.
func (s *Store) Put(mem models.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mem.ID == "" {
		mem.ID = newMemoryID()
	}
	if mem.Timestamp.IsZero() {
		mem.Timestamp = time.Now()
	}
	s.nextSeq++
	s.entries[mem.ID] = &entry{mem: mem, seq: s.nextSeq}
	s.evictLocked()
}

// Get returns the memory with the given id.
func (s *Store) Get(id string) (models.Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return models.Memory{}, false
	}
	return e.mem, true
}

// Delete removes a memory by id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// Clear removes all memories, or only those of the given types.
func (s *Store) Clear(types ...models.MemoryType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) == 0 {
		s.entries = make(map[string]*entry)
		return
	}
	for id, e := range s.entries {
		for _, t := range types {
			if e.mem.Type == t {
				delete(s.entries, id)
				break
			}
		}
	}
}

// ByType returns all memories of one tier.
func (s *Store) ByType(typ models.MemoryType) []models.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(func(e *entry) bool { return e.mem.Type == typ })
}

// ByTags returns memories carrying at least one of the given tags.
func (s *Store) ByTags(tags []string) []models.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(func(e *entry) bool {
		for _, want := range tags {
			for _, have := range e.mem.Tags {
				if want == have {
					return true
				}
			}
		}
		return false
	})
}

// Recent returns up to count memories, newest first, optionally
// filtered to one tier (pass "" for all).
func (s *Store) Recent(count int, typ models.MemoryType) []models.Memory {
	s.mu.RLock()
	ordered := s.orderedLocked(func(e *entry) bool {
		return typ == "" || e.mem.Type == typ
	})
	s.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return newerFirst(ordered[i], ordered[j]) })
	out := make([]models.Memory, 0, count)
	for _, e := range ordered {
		if len(out) == count {
			break
		}
		out = append(out, e.mem)
	}
	return out
}

// Important returns memories at or above the given importance, ordered
// by importance then recency, both descending.
func (s *Store) Important(min models.MemoryImportance) []models.Memory {
	s.mu.RLock()
	ordered := s.orderedLocked(func(e *entry) bool {
		return e.mem.Importance.Rank() >= min.Rank()
	})
	s.mu.RUnlock()

	sortByRelevance(ordered)
	out := make([]models.Memory, len(ordered))
	for i, e := range ordered {
		out[i] = e.mem
	}
	return out
}

// Search returns memories whose content or tags contain the keyword,
// case-insensitively, newest first.
func (s *Store) Search(keyword string) []models.Memory {
	needle := strings.ToLower(keyword)

	s.mu.RLock()
	ordered := s.orderedLocked(func(e *entry) bool {
		if strings.Contains(strings.ToLower(e.mem.Content), needle) {
			return true
		}
		for _, tag := range e.mem.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		return false
	})
	s.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return newerFirst(ordered[i], ordered[j]) })
	out := make([]models.Memory, len(ordered))
	for i, e := range ordered {
		out[i] = e.mem
	}
	return out
}

// Relevant retrieves memories related to the input: the input's first
// few tokens of three or more characters each run a keyword search, the
// hits are deduplicated by id and ordered by importance then recency.
func (s *Store) Relevant(input string, max int) []models.Memory {
	tokens := strings.Fields(input)
	if len(tokens) > retrievalMaxKeywords {
		tokens = tokens[:retrievalMaxKeywords]
	}

	seen := make(map[string]bool)
	var hits []*entry
	s.mu.RLock()
	for _, token := range tokens {
		if len(token) < retrievalMinKeywordLen {
			continue
		}
		needle := strings.ToLower(token)
		for _, e := range s.entries {
			if seen[e.mem.ID] {
				continue
			}
			if memoryMatches(&e.mem, needle) {
				seen[e.mem.ID] = true
				hits = append(hits, e)
			}
		}
	}
	s.mu.RUnlock()

	sortByRelevance(hits)
	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]models.Memory, len(hits))
	for i, e := range hits {
		out[i] = e.mem
	}
	return out
}

// Context renders a bulleted block of memories relevant to the input
// for prepending to a model prompt. Returns "" when nothing matches.
func (s *Store) Context(input string) string {
	memories := s.Relevant(input, contextMaxMemories)
	if len(memories) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relevant memories\n")
	for _, mem := range memories {
		b.WriteString("- ")
		b.WriteString(mem.Content)
		b.WriteString("\n")
		if len(mem.Tags) > 0 {
			b.WriteString("  tags: ")
			b.WriteString(strings.Join(mem.Tags, ", "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats summarizes the store by tier and importance.
func (s *Store) Stats() models.MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.MemoryStats{
		Total:        len(s.entries),
		ByType:       map[models.MemoryType]int{models.MemoryShortTerm: 0, models.MemoryLongTerm: 0, models.MemoryWorking: 0},
		ByImportance: map[models.MemoryImportance]int{models.ImportanceLow: 0, models.ImportanceMedium: 0, models.ImportanceHigh: 0, models.ImportanceCritical: 0},
	}
	for _, e := range s.entries {
		stats.ByType[e.mem.Type]++
		stats.ByImportance[e.mem.Importance]++
	}
	return stats
}

// Len returns the total number of stored memories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type exportEnvelope struct {
	Memories []models.Memory `json:"memories"`
}

// Export serializes all memories to JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	ordered := s.orderedLocked(func(*entry) bool { return true })
	s.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	env := exportEnvelope{Memories: make([]models.Memory, len(ordered))}
	for i, e := range ordered {
		env.Memories[i] = e.mem
	}
	return json.MarshalIndent(env, "", "  ")
}

// Import loads memories from an Export payload, replacing entries with
// matching ids, and returns how many were loaded. Entries with an
// unknown tier are skipped.
func (s *Store) Import(data []byte) (int, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("memory: parsing import payload: %w", err)
	}
	count := 0
	for _, mem := range env.Memories {
		if !mem.Type.Valid() {
			continue
		}
		if !mem.Importance.Valid() {
			mem.Importance = models.ImportanceMedium
		}
		s.Put(mem)
		count++
	}
	return count, nil
}

func (s *Store) collectLocked(keep func(*entry) bool) []models.Memory {
	var out []models.Memory
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e.mem)
		}
	}
	return out
}

func (s *Store) orderedLocked(keep func(*entry) bool) []*entry {
	var out []*entry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// evictLocked enforces the tier caps. Caller holds the write lock.
func (s *Store) evictLocked() {
	s.evictTierLocked(models.MemoryShortTerm, s.config.MaxShortTerm, false)
	s.evictTierLocked(models.MemoryLongTerm, s.config.MaxLongTerm, true)
	s.evictTierLocked(models.MemoryWorking, s.config.MaxWorking, false)
}

func (s *Store) evictTierLocked(typ models.MemoryType, max int, byImportance bool) {
	var tier []*entry
	for _, e := range s.entries {
		if e.mem.Type == typ {
			tier = append(tier, e)
		}
	}
	if len(tier) <= max {
		return
	}

	if byImportance {
		sort.Slice(tier, func(i, j int) bool {
			ri, rj := tier[i].mem.Importance.Rank(), tier[j].mem.Importance.Rank()
			if ri != rj {
				return ri < rj
			}
			return olderFirst(tier[i], tier[j])
		})
	} else {
		sort.Slice(tier, func(i, j int) bool { return olderFirst(tier[i], tier[j]) })
	}

	for _, e := range tier[:len(tier)-max] {
		delete(s.entries, e.mem.ID)
	}
}

func memoryMatches(mem *models.Memory, needle string) bool {
	if strings.Contains(strings.ToLower(mem.Content), needle) {
		return true
	}
	for _, tag := range mem.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// sortByRelevance orders importance-descending, then newest-first.
func sortByRelevance(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := entries[i].mem.Importance.Rank(), entries[j].mem.Importance.Rank()
		if ri != rj {
			return ri > rj
		}
		return newerFirst(entries[i], entries[j])
	})
}

func newerFirst(a, b *entry) bool {
	if !a.mem.Timestamp.Equal(b.mem.Timestamp) {
		return a.mem.Timestamp.After(b.mem.Timestamp)
	}
	return a.seq > b.seq
}

func olderFirst(a, b *entry) bool {
	if !a.mem.Timestamp.Equal(b.mem.Timestamp) {
		return a.mem.Timestamp.Before(b.mem.Timestamp)
	}
	return a.seq < b.seq
}

func newMemoryID() string {
	return "mem_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
