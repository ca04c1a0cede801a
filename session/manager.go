package session

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/backtalk/backtalk/query"
)

// ErrStale reports a session load that was superseded by a newer one
// before its survey fetch completed.
var ErrStale = errors.New("session: load superseded by a newer one")

// Manager opens sessions against a backend. Loads are guarded by a
// generation counter: when a new Open starts before an earlier fetch
// returns, the earlier one is discarded instead of applied, so the
// last load started always wins.
type Manager struct {
	backend Backend
	stores  func(surveyHash string) Store

	gen uint64
}

func NewManager(backend Backend, stores func(surveyHash string) Store) *Manager {
	return &Manager{backend: backend, stores: stores}
}

// Open fetches the survey behind hash, builds a session bound to that
// survey's store, and initializes it with answers extracted from
// rawQuery. Returns ErrStale if another Open started meanwhile.
func (m *Manager) Open(ctx context.Context, hash, rawQuery string) (*Session, error) {
	gen := atomic.AddUint64(&m.gen, 1)

	survey, err := m.backend.Survey(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "session: fetch survey")
	}
	if atomic.LoadUint64(&m.gen) != gen {
		return nil, ErrStale
	}

	s := New(survey, m.stores(hash), m.backend)
	if err := s.Initialize(query.Extract(rawQuery)); err != nil {
		return nil, err
	}
	return s, nil
}
