package orchestrator

import (
	"context"

	"github.com/kmchat/kmchat/internal/common/logtrace"
	"github.com/kmchat/kmchat/internal/session"
)

// LogoutFlow terminates the active session.
type LogoutFlow struct {
	Deps
	store *session.Store
}

// NewLogoutFlow returns a LogoutFlow mutating store.
func NewLogoutFlow(deps Deps, store *session.Store) *LogoutFlow {
	return &LogoutFlow{Deps: deps.withDefaults(), store: store}
}

// Logout ends the session and navigates to the login screen. When the SDK reports a
// failure the session state is left as it was, since the backend may still hold it.
func (l *LogoutFlow) Logout(ctx context.Context) error {
	logger := logtrace.Logger(ctx)

	if err := l.SDK.Logout(ctx); err != nil {
		logger.Error().Err(err).Str("state", l.store.State().String()).Msg("logout failed")
		l.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Error", Message: msgLogoutFailed})
		return kindError(ErrLogout, err)
	}

	logger.Info().Msg("logged out")
	l.store.Set(session.Unauthenticated)
	l.Navigator.Navigate(ctx, RouteLogin)
	return nil
}
