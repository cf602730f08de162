package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

// promoteCount is how many entries move to long-term storage per consolidation.
const promoteCount = 10

// Entry is a single memory record held by an agent.
type Entry struct {
	ID         string                 `json:"id"`
	AgentName  string                 `json:"agent_name"`
	Content    string                 `json:"content"`
	Importance float64                `json:"importance"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Mirror replicates long-term writes to a shared store.
type Mirror interface {
	PushToList(ctx context.Context, key string, value interface{}, maxLen int64) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager keeps bounded short-term memory per agent and consolidates the most
// important entries into long-term JSON files.
type Manager struct {
	mu        sync.Mutex
	shortTerm map[string][]Entry
	limit     int
	dir       string
	mirror    Mirror
	log       *logger.Logger
}

// NewManager creates a memory manager persisting long-term entries under dir.
// mirror may be nil when no shared store is configured.
func NewManager(dir string, shortTermLimit int, mirror Mirror) *Manager {
	if shortTermLimit <= 0 {
		shortTermLimit = 100
	}
	return &Manager{
		shortTerm: make(map[string][]Entry),
		limit:     shortTermLimit,
		dir:       dir,
		mirror:    mirror,
		log:       logger.Get().With("component", "memory"),
	}
}

// Remember stores a short-term entry for the agent. When the short-term store
// exceeds its limit the most important entries are promoted to long-term.
func (m *Manager) Remember(ctx context.Context, agent, content string, importance float64, metadata map[string]interface{}) (Entry, error) {
	if agent == "" {
		return Entry{}, errors.Wrap(errors.ErrInvalidInput, "agent name cannot be empty")
	}
	if content == "" {
		return Entry{}, errors.Wrap(errors.ErrInvalidInput, "memory content cannot be empty")
	}

	entry := Entry{
		ID:         uuid.NewString(),
		AgentName:  agent,
		Content:    content,
		Importance: importance,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.shortTerm[agent] = append(m.shortTerm[agent], entry)
	if len(m.shortTerm[agent]) > m.limit {
		if err := m.consolidateLocked(ctx, agent); err != nil {
			return Entry{}, err
		}
	}

	return entry, nil
}

// Consolidate promotes the most important short-term entries of the agent into
// long-term storage. Safe to call when nothing is held.
func (m *Manager) Consolidate(ctx context.Context, agent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consolidateLocked(ctx, agent)
}

// ConsolidateAll flushes every agent with held short-term entries.
func (m *Manager) ConsolidateAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var merr errors.MultiError
	for agent := range m.shortTerm {
		if err := m.consolidateLocked(ctx, agent); err != nil {
			merr.Add(err)
		}
	}
	return merr.ToError()
}

func (m *Manager) consolidateLocked(ctx context.Context, agent string) error {
	held := m.shortTerm[agent]
	if len(held) == 0 {
		return nil
	}

	sorted := make([]Entry, len(held))
	copy(sorted, held)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	n := promoteCount
	if n > len(sorted) {
		n = len(sorted)
	}
	promoted := sorted[:n]

	longTerm, err := m.loadLongTerm(agent)
	if err != nil {
		return err
	}
	longTerm = append(longTerm, promoted...)
	if err := m.saveLongTerm(agent, longTerm); err != nil {
		return err
	}

	if m.mirror != nil {
		for _, entry := range promoted {
			if err := m.mirror.PushToList(ctx, longTermKey(agent), entry, int64(m.limit)*10); err != nil {
				m.log.Warn("Failed to mirror memory entry", "agent", agent, "error", err)
			}
		}
	}

	// Drop the promoted entries, keep the rest in arrival order
	promotedIDs := make(map[string]struct{}, n)
	for _, entry := range promoted {
		promotedIDs[entry.ID] = struct{}{}
	}
	remaining := held[:0]
	for _, entry := range held {
		if _, ok := promotedIDs[entry.ID]; !ok {
			remaining = append(remaining, entry)
		}
	}
	m.shortTerm[agent] = remaining

	m.log.Debug("Consolidated memory", "agent", agent, "promoted", n, "remaining", len(remaining))

	return nil
}

// Recall returns long-term entries whose content contains the query,
// case-insensitive, newest first, up to limit.
func (m *Manager) Recall(_ context.Context, agent, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	longTerm, err := m.loadLongTerm(agent)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := make([]Entry, 0, limit)
	for i := len(longTerm) - 1; i >= 0 && len(matches) < limit; i-- {
		if query == "" || strings.Contains(strings.ToLower(longTerm[i].Content), needle) {
			matches = append(matches, longTerm[i])
		}
	}

	return matches, nil
}

// ShortTermCount returns how many short-term entries the agent holds.
func (m *Manager) ShortTermCount(agent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shortTerm[agent])
}

// LongTerm returns all persisted entries for the agent.
func (m *Manager) LongTerm(agent string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLongTerm(agent)
}

// Clear drops the agent's short-term entries and deletes its long-term file.
func (m *Manager) Clear(ctx context.Context, agent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.shortTerm, agent)

	if err := os.Remove(m.longTermPath(agent)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove long-term memory file")
	}

	if m.mirror != nil {
		if err := m.mirror.Delete(ctx, longTermKey(agent)); err != nil {
			m.log.Warn("Failed to clear mirrored memory", "agent", agent, "error", err)
		}
	}

	return nil
}

func (m *Manager) longTermPath(agent string) string {
	return filepath.Join(m.dir, agent+"_longterm.json")
}

func longTermKey(agent string) string {
	return "memory:longterm:" + agent
}

func (m *Manager) loadLongTerm(agent string) ([]Entry, error) {
	data, err := os.ReadFile(m.longTermPath(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read long-term memory")
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "unmarshal long-term memory")
	}
	return entries, nil
}

func (m *Manager) saveLongTerm(agent string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal long-term memory")
	}
	if err := os.WriteFile(m.longTermPath(agent), data, 0o640); err != nil {
		return errors.Wrap(err, "write long-term memory")
	}
	return nil
}
