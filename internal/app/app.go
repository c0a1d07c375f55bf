// Package app is the screen model. It owns the session store, the startup gate and the
// orchestrators, maps each user action to one orchestrator operation, and publishes
// navigation and notices on an event bus for the presentation layer to render.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/kmchat/kmchat/internal/common/eventbus"
	"github.com/kmchat/kmchat/internal/common/logtrace"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/orchestrator"
	"github.com/kmchat/kmchat/internal/session"
	"github.com/rs/zerolog/log"
)

// Screen is the entry point currently presented.
type Screen string

const (
	ScreenWaiting Screen = "waiting"
	ScreenLogin   Screen = "login"
	ScreenHome    Screen = "home"
)

// PublishTimeout bounds how long a publish waits for a slow subscriber.
const PublishTimeout = 100 * time.Millisecond

// NavTopic is the topic announcing that screen was entered.
func NavTopic(s Screen) string {
	return "nav." + string(s)
}

// NoticeTopic is the topic carrying notices of the given level.
func NoticeTopic(l orchestrator.Level) string {
	return "notice." + string(l)
}

// Options configures an App.
type Options struct {
	AppID        string
	Bus          *eventbus.Bus // defaults to a private bus
	SendObserver func(from, to orchestrator.SendState)
}

// App wires the user actions to the orchestrators.
type App struct {
	appID string
	bus   *eventbus.Bus
	store *session.Store
	gate  *session.Gate

	auth   *orchestrator.AuthFlow
	logout *orchestrator.LogoutFlow
	conv   *orchestrator.ConversationFlow

	mu     sync.RWMutex
	screen Screen
}

// New builds an App on top of sdk.
func New(sdk orchestrator.SDK, opts Options) *App {
	bus := opts.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	a := &App{
		appID:  opts.AppID,
		bus:    bus,
		store:  session.NewStore(),
		screen: ScreenWaiting,
	}
	a.store.OnChange(func(s session.State) {
		log.Debug().Str("session", s.String()).Msg("session state changed")
	})

	deps := orchestrator.Deps{SDK: sdk, Navigator: a, Notifier: a}
	a.gate = session.NewGate(sdk, a.store)
	a.auth = orchestrator.NewAuthFlow(deps, a.store)
	a.logout = orchestrator.NewLogoutFlow(deps, a.store)

	var convOpts []orchestrator.ConversationOption
	if opts.SendObserver != nil {
		convOpts = append(convOpts, orchestrator.WithSendObserver(opts.SendObserver))
	}
	a.conv = orchestrator.NewConversationFlow(deps, a.store, convOpts...)
	return a
}

// Bus returns the bus navigation and notices are published on.
func (a *App) Bus() *eventbus.Bus { return a.bus }

// Session returns the session store.
func (a *App) Session() *session.Store { return a.store }

// Screen returns the current screen.
func (a *App) Screen() Screen {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.screen
}

// Start resolves the session once and enters Home or Login. The screen stays Waiting
// until the check answers.
func (a *App) Start(ctx context.Context) Screen {
	ctx = logtrace.WithOperation(ctx, "start")
	switch a.gate.CheckSession(ctx) {
	case session.Authenticated:
		a.enter(ctx, ScreenHome)
	default:
		a.enter(ctx, ScreenLogin)
	}
	return a.Screen()
}

// Navigate implements orchestrator.Navigator.
func (a *App) Navigate(ctx context.Context, route orchestrator.Route) {
	switch route {
	case orchestrator.RouteHome:
		a.enter(ctx, ScreenHome)
	case orchestrator.RouteLogin:
		a.enter(ctx, ScreenLogin)
	default:
		logtrace.Logger(ctx).Warn().Str("route", string(route)).Msg("unknown route")
	}
}

// Notify implements orchestrator.Notifier.
func (a *App) Notify(ctx context.Context, n orchestrator.Notice) {
	a.bus.Publish(NoticeTopic(n.Level), n, PublishTimeout)
}

func (a *App) enter(ctx context.Context, s Screen) {
	a.mu.Lock()
	a.screen = s
	a.mu.Unlock()
	logtrace.Logger(ctx).Debug().Str("screen", string(s)).Msg("screen entered")
	a.bus.Publish(NavTopic(s), s, PublishTimeout)
}

// PressLogin logs in with the configured application id.
func (a *App) PressLogin(ctx context.Context, userID, password string) error {
	ctx = logtrace.WithOperation(ctx, "login")
	return a.auth.LoginWithCredentials(ctx, orchestrator.Credentials{
		UserID:   userID,
		Password: password,
		AppID:    a.appID,
	})
}

// PressLoginAsVisitor logs in anonymously with the configured application id.
func (a *App) PressLoginAsVisitor(ctx context.Context) error {
	ctx = logtrace.WithOperation(ctx, "loginAsVisitor")
	return a.auth.LoginAsVisitor(ctx, a.appID)
}

// PressBuildConversation creates a conversation carrying only the configured application id.
func (a *App) PressBuildConversation(ctx context.Context) (kmsdk.ChannelKey, error) {
	ctx = logtrace.WithOperation(ctx, "buildConversation")
	return a.conv.CreateConversation(ctx, kmsdk.ConversationAttributes{AppID: a.appID})
}

// PressCreateConversation creates a conversation from attrs.
func (a *App) PressCreateConversation(ctx context.Context, attrs kmsdk.ConversationAttributes) (kmsdk.ChannelKey, error) {
	ctx = logtrace.WithOperation(ctx, "createConversation")
	return a.conv.CreateConversation(ctx, attrs)
}

// PressOpenConversations opens the default conversation view.
func (a *App) PressOpenConversations(ctx context.Context) error {
	ctx = logtrace.WithOperation(ctx, "openConversation")
	return a.conv.OpenConversation(ctx)
}

// ConfirmOpenSpecific opens the conversation whose key the user typed.
func (a *App) ConfirmOpenSpecific(ctx context.Context, input string) error {
	ctx = logtrace.WithOperation(ctx, "openSpecificConversation")
	return a.conv.OpenSpecificConversation(ctx, input)
}

// PressSendMessage runs the create, send and open pipeline.
func (a *App) PressSendMessage(ctx context.Context, body string, metadata map[string]string) (orchestrator.SendOutcome, error) {
	ctx = logtrace.WithOperation(ctx, "sendMessage")
	return a.conv.SendMessage(ctx, body, metadata)
}

// PressLogout ends the session.
func (a *App) PressLogout(ctx context.Context) error {
	ctx = logtrace.WithOperation(ctx, "logout")
	return a.logout.Logout(ctx)
}
