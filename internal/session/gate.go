package session

import (
	"context"
	"sync"

	"github.com/kmchat/kmchat/internal/common/logtrace"
)

// StatusChecker reports whether the messaging SDK holds a session.
type StatusChecker interface {
	IsLoggedIn(ctx context.Context) (bool, error)
}

// Gate resolves the initial session state exactly once.
type Gate struct {
	checker StatusChecker
	store   *Store
	once    sync.Once
	result  State
}

// NewGate returns a gate writing its result to store.
func NewGate(checker StatusChecker, store *Store) *Gate {
	return &Gate{checker: checker, store: store}
}

// CheckSession queries the SDK and records the answer. Errors and timeouts resolve to
// Unauthenticated. Only the first call contacts the SDK; later calls return the first
// result.
func (g *Gate) CheckSession(ctx context.Context) State {
	g.once.Do(func() {
		g.result = g.check(ctx)
		g.store.Set(g.result)
	})
	return g.result
}

func (g *Gate) check(ctx context.Context) State {
	logger := logtrace.Logger(ctx)
	loggedIn, err := g.checker.IsLoggedIn(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("session check failed, treating as logged out")
		return Unauthenticated
	}
	if loggedIn {
		logger.Debug().Msg("existing session found")
		return Authenticated
	}
	return Unauthenticated
}
