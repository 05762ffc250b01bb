package clinical

import (
	"context"
	"sync"

	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/selector"
	"github.com/harmwatch/harmwatch/internal/timewindow"
)

// MemorySource is an in-memory FactSource for development mode and tests.
type MemorySource struct {
	mu    sync.RWMutex
	facts map[string][]fact.Fact // by encounter id
}

func NewMemorySource() *MemorySource {
	return &MemorySource{facts: make(map[string][]fact.Fact)}
}

// Add records facts for an encounter, as the ETL boundary would.
func (m *MemorySource) Add(encounterID string, facts ...fact.Fact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[encounterID] = append(m.facts[encounterID], facts...)
}

func (m *MemorySource) ListFacts(_ context.Context, encounterID string, kind fact.Kind, codes []string, w *timewindow.Window) ([]fact.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []fact.Fact
	for _, f := range m.facts[encounterID] {
		if f.Kind() != kind {
			continue
		}
		if len(codes) > 0 && !matchesCode(f, codes) {
			continue
		}
		if w != nil && !selector.InsideWindow(f, *w) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func matchesCode(f fact.Fact, codes []string) bool {
	var code string
	switch v := f.(type) {
	case fact.Observation:
		code = v.Code
	case fact.ProcedureRequest:
		code = v.Code
	case fact.Flag:
		code = v.Code
	default:
		// Medication orders carry identifier sets, not codes; kind-level
		// filtering is enough for them.
		return true
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
