package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/veridoc/veridoc/internal/report"
)

// Memory is an in-process Store used by tests and by analyses that opt out
// of persistence. Append-only semantics match the SQLite store.
type Memory struct {
	mu      sync.Mutex
	reports map[string]*report.Report
	entries []Entry
	nextID  int64
}

func NewMemory() *Memory {
	return &Memory{reports: make(map[string]*report.Report), nextID: 1}
}

func (m *Memory) SaveReport(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.DocumentID]; ok {
		return ErrDuplicate
	}
	cp := *r
	m.reports[r.DocumentID] = &cp
	return nil
}

func (m *Memory) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Record(ctx context.Context, r *report.Report, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.DocumentID]; ok {
		return ErrDuplicate
	}
	cp := *r
	m.reports[r.DocumentID] = &cp
	e.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Report(ctx context.Context, documentID string) (*report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) Reports(ctx context.Context, f Filter) ([]*report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*report.Report
	for _, r := range m.reports {
		if f.RiskLevel != "" && r.Risk.RiskLevel != f.RiskLevel {
			continue
		}
		if r.Risk.OverallScore < f.MinScore {
			continue
		}
		if !f.Since.IsZero() && r.AnalyzedAt.Before(f.Since) {
			continue
		}
		if f.ManualOnly && !r.RequiresManualReview {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnalyzedAt.Equal(out[j].AnalyzedAt) {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Entries(ctx context.Context, documentID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if documentID == "" || e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
