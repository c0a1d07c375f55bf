package app

import (
	"context"
	"testing"
	"time"

	"github.com/kmchat/kmchat/internal/common/eventbus"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/kmsdk/fakesdk"
	"github.com/kmchat/kmchat/internal/orchestrator"
	"github.com/kmchat/kmchat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, fake *fakesdk.Boundary, timeout time.Duration) (*App, <-chan eventbus.Event) {
	t.Helper()
	bus := eventbus.New()
	events, unsubscribe := bus.Subscribe("*", 32)
	t.Cleanup(unsubscribe)
	a := New(kmsdk.NewClient(fake, kmsdk.WithCallTimeout(timeout)), Options{AppID: "app-1", Bus: bus})
	return a, events
}

func drain(events <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func topics(events []eventbus.Event) []string {
	var out []string
	for _, e := range events {
		out = append(out, e.Topic)
	}
	return out
}

func TestStartRoutes(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		want     Screen
		state    session.State
	}{
		{name: "existing session", loggedIn: true, want: ScreenHome, state: session.Authenticated},
		{name: "no session", loggedIn: false, want: ScreenLogin, state: session.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, events := newApp(t, fakesdk.New().LoggedIn(tt.loggedIn), time.Second)
			assert.Equal(t, ScreenWaiting, a.Screen())

			assert.Equal(t, tt.want, a.Start(context.Background()))
			assert.Equal(t, tt.state, a.Session().State())
			assert.Equal(t, []string{NavTopic(tt.want)}, topics(drain(events)))
		})
	}
}

func TestStartWaitsForSessionCheck(t *testing.T) {
	fake := fakesdk.New().On(fakesdk.CallIsLoggedIn, fakesdk.Hold())
	a, _ := newApp(t, fake, 200*time.Millisecond)

	done := make(chan Screen, 1)
	go func() { done <- a.Start(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ScreenWaiting, a.Screen())
	assert.Equal(t, session.Unknown, a.Session().State())

	select {
	case s := <-done:
		assert.Equal(t, ScreenLogin, s, "a timed out check counts as logged out")
	case <-time.After(2 * time.Second):
		t.Fatal("start did not finish")
	}
}

func TestLoginNavigatesHomeOnce(t *testing.T) {
	fake := fakesdk.New()
	a, events := newApp(t, fake, time.Second)
	ctx := context.Background()
	a.Start(ctx)
	drain(events)

	require.NoError(t, a.PressLogin(ctx, "u1", "p1"))
	assert.Equal(t, ScreenHome, a.Screen())
	assert.Equal(t, session.Authenticated, a.Session().State())
	assert.Equal(t, []string{NavTopic(ScreenHome)}, topics(drain(events)))
	assert.Equal(t, 1, fake.Count(fakesdk.CallLoginUser))
	assert.Equal(t, "app-1", fake.LastUser.ApplicationID)
}

func TestLoginFailurePublishesNotice(t *testing.T) {
	fake := fakesdk.New().On(fakesdk.CallLoginUser, fakesdk.Fail("Invalid credentials"))
	a, events := newApp(t, fake, time.Second)
	ctx := context.Background()
	a.Start(ctx)
	drain(events)

	err := a.PressLogin(ctx, "u1", "bad")
	assert.ErrorIs(t, err, orchestrator.ErrLogin)
	assert.Equal(t, ScreenLogin, a.Screen())

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, NoticeTopic(orchestrator.LevelError), got[0].Topic)
	notice, ok := got[0].Data.(orchestrator.Notice)
	require.True(t, ok)
	assert.Equal(t, "Invalid credentials", notice.Message)
}

func TestVisitorThenConversationActions(t *testing.T) {
	fake := fakesdk.New()
	fake.On(fakesdk.CallBuildConversation, fakesdk.Succeed("CH9"), fakesdk.Succeed("CH42"))
	a, _ := newApp(t, fake, time.Second)
	ctx := context.Background()
	a.Start(ctx)

	require.NoError(t, a.PressLoginAsVisitor(ctx))
	assert.Equal(t, "app-1", fake.LastVisitorAppID)

	key, err := a.PressBuildConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, kmsdk.ChannelKey("CH9"), key)
	assert.Equal(t, map[string]any{"appId": "app-1"}, fake.LastAttributes)

	out, err := a.PressSendMessage(ctx, "hi", map[string]string{"Name": "Alex Williams", "ID": "X123Y24"})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.SendDone, out.State)
	assert.Equal(t, kmsdk.ChannelKey("CH42"), out.ChannelKey)

	require.NoError(t, a.PressOpenConversations(ctx))
	require.NoError(t, a.ConfirmOpenSpecific(ctx, " CH9 "))
	assert.Equal(t, "CH9", fake.LastOpenedKey)

	key, err = a.PressCreateConversation(ctx, kmsdk.ConversationAttributes{GroupName: "sales"})
	require.NoError(t, err)
	assert.Equal(t, kmsdk.ChannelKey("CH1"), key)
}

func TestActionsBeforeLoginAreRejected(t *testing.T) {
	fake := fakesdk.New()
	a, _ := newApp(t, fake, time.Second)
	ctx := context.Background()
	a.Start(ctx)

	_, err := a.PressBuildConversation(ctx)
	assert.ErrorIs(t, err, orchestrator.ErrNotAuthenticated)
	assert.Equal(t, []fakesdk.Call{fakesdk.CallIsLoggedIn}, fake.Calls())
}

func TestLogoutFailureStaysHome(t *testing.T) {
	fake := fakesdk.New().LoggedIn(true).On(fakesdk.CallLogout, fakesdk.Response{Status: kmsdk.StatusError})
	a, events := newApp(t, fake, time.Second)
	ctx := context.Background()
	require.Equal(t, ScreenHome, a.Start(ctx))
	drain(events)

	err := a.PressLogout(ctx)
	assert.ErrorIs(t, err, orchestrator.ErrLogout)
	assert.Equal(t, ScreenHome, a.Screen())
	assert.Equal(t, session.Authenticated, a.Session().State())
	assert.Equal(t, []string{NoticeTopic(orchestrator.LevelError)}, topics(drain(events)))

	require.NoError(t, a.PressLogout(ctx))
	assert.Equal(t, ScreenLogin, a.Screen())
	assert.Equal(t, session.Unauthenticated, a.Session().State())
}

func TestSendObserver(t *testing.T) {
	var seen []orchestrator.SendState
	bus := eventbus.New()
	a := New(kmsdk.NewClient(fakesdk.New().LoggedIn(true)), Options{
		Bus:          bus,
		SendObserver: func(_, to orchestrator.SendState) { seen = append(seen, to) },
	})
	ctx := context.Background()
	a.Start(ctx)

	_, err := a.PressSendMessage(ctx, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.SendState{
		orchestrator.SendCreating, orchestrator.SendSending, orchestrator.SendOpening, orchestrator.SendDone,
	}, seen)
}
