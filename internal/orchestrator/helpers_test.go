package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/kmsdk/fakesdk"
	"github.com/kmchat/kmchat/internal/session"
)

type recorder struct {
	mu      sync.Mutex
	routes  []Route
	notices []Notice
}

func (r *recorder) Navigate(_ context.Context, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

func (r *recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type harness struct {
	fake  *fakesdk.Boundary
	store *session.Store
	rec   *recorder
	deps  Deps
}

func newHarness(t *testing.T, state session.State) *harness {
	t.Helper()
	fake := fakesdk.New()
	store := session.NewStore()
	store.Set(state)
	rec := &recorder{}
	return &harness{
		fake:  fake,
		store: store,
		rec:   rec,
		deps: Deps{
			SDK:       kmsdk.NewClient(fake, kmsdk.WithCallTimeout(200*time.Millisecond)),
			Navigator: rec,
			Notifier:  rec,
		},
	}
}
