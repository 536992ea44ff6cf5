// Package session holds the per-user analysis context: the loaded table, its
// profile, cached derived artifacts and the chat history.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

// ErrNoDataset is returned by operations that need a loaded table.
var ErrNoDataset = errors.New("no dataset loaded")

// Session is one user's context. It is not safe for concurrent use; the
// Manager serializes access through Do.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	table   *dataset.Table
	profile *analysis.Profile
	history chat.History
	bins    int

	visuals  []viz.Visualization
	insights []analysis.Insight
	cached   bool
}

// New returns an empty session. bins configures auto histograms; zero means
// viz.DefaultBins.
func New(id string, bins int) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now, bins: bins}
}

// Load installs a freshly loaded table. The profile is computed first so a
// failure leaves the previous state untouched. The chat history is cleared
// since it referred to the previous dataset.
func (s *Session) Load(t *dataset.Table) error {
	if err := s.install(t); err != nil {
		return err
	}
	s.history.Clear()
	return nil
}

// Replace swaps in a transformed table (cleaning, capping, normalizing) and
// keeps the conversation.
func (s *Session) Replace(t *dataset.Table) error {
	if s.table == nil {
		return ErrNoDataset
	}
	return s.install(t)
}

func (s *Session) install(t *dataset.Table) error {
	if t == nil {
		return ErrNoDataset
	}
	p, err := analysis.NewProfile(t)
	if err != nil {
		return fmt.Errorf("profile dataset: %w", err)
	}
	s.table, s.profile = t, p
	s.invalidate()
	s.touch()
	return nil
}

func (s *Session) invalidate() {
	s.visuals, s.insights, s.cached = nil, nil, false
}

func (s *Session) touch() { s.UpdatedAt = time.Now() }

// Loaded reports whether a dataset is present.
func (s *Session) Loaded() bool { return s.table != nil }

// Table returns the current table, nil when none is loaded.
func (s *Session) Table() *dataset.Table { return s.table }

// Profile returns the profile of the current table.
func (s *Session) Profile() *analysis.Profile { return s.profile }

// Name is the dataset name, empty when none is loaded.
func (s *Session) Name() string {
	if s.table == nil {
		return ""
	}
	return s.table.Name
}

// History is the session's conversation.
func (s *Session) History() *chat.History { return &s.history }

// Visualizations returns the auto-generated charts, computing them once per
// table.
func (s *Session) Visualizations() ([]viz.Visualization, error) {
	if err := s.derive(); err != nil {
		return nil, err
	}
	return s.visuals, nil
}

// Insights returns the heuristic insights, computing them once per table.
func (s *Session) Insights() ([]analysis.Insight, error) {
	if err := s.derive(); err != nil {
		return nil, err
	}
	return s.insights, nil
}

func (s *Session) derive() error {
	if s.table == nil {
		return ErrNoDataset
	}
	if !s.cached {
		s.visuals = viz.Auto(s.table, s.profile, s.bins)
		s.insights = analysis.Insights(s.table, s.profile)
		s.cached = true
	}
	return nil
}
