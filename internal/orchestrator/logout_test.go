package orchestrator

import (
	"context"
	"testing"

	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/kmsdk/fakesdk"
	"github.com/kmchat/kmchat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogout(t *testing.T) {
	h := newHarness(t, session.Authenticated)
	h.fake.LoggedIn(true)
	flow := NewLogoutFlow(h.deps, h.store)

	require.NoError(t, flow.Logout(context.Background()))
	assert.Equal(t, []fakesdk.Call{fakesdk.CallLogout}, h.fake.Calls())
	assert.Equal(t, session.Unauthenticated, h.store.State())
	assert.Equal(t, []Route{RouteLogin}, h.rec.Routes())
	assert.False(t, h.fake.IsSessionActive())
}

func TestLogoutFailureKeepsSession(t *testing.T) {
	h := newHarness(t, session.Authenticated)
	h.fake.LoggedIn(true).On(fakesdk.CallLogout, fakesdk.Response{Status: kmsdk.StatusError})
	flow := NewLogoutFlow(h.deps, h.store)

	err := flow.Logout(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogout)
	assert.Equal(t, "Logout Failed.", err.Error())
	assert.Equal(t, session.Authenticated, h.store.State())
	assert.Empty(t, h.rec.Routes(), "user stays on the home screen")

	notices := h.rec.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Equal(t, "Logout Failed.", notices[0].Message)
}

func TestLogoutTimeout(t *testing.T) {
	h := newHarness(t, session.Authenticated)
	h.fake.On(fakesdk.CallLogout, fakesdk.Hold())
	flow := NewLogoutFlow(h.deps, h.store)

	err := flow.Logout(context.Background())
	assert.ErrorIs(t, err, ErrLogout)
	assert.ErrorIs(t, err, kmsdk.ErrTimeout)
	assert.Equal(t, session.Authenticated, h.store.State())
}
