package orchestrator

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/kmchat/kmchat/internal/common/logtrace"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/session"
)

// Credentials is the input of a credentialed login. It is handed to the SDK once and not
// retained.
type Credentials struct {
	UserID   string `validate:"required"`
	Password string `validate:"required"`
	AppID    string
}

// AuthFlow performs credentialed and visitor logins.
type AuthFlow struct {
	Deps
	store    *session.Store
	validate *validator.Validate
}

// NewAuthFlow returns an AuthFlow mutating store.
func NewAuthFlow(deps Deps, store *session.Store) *AuthFlow {
	return &AuthFlow{
		Deps:     deps.withDefaults(),
		store:    store,
		validate: validator.New(),
	}
}

// LoginWithCredentials logs in with a user id and password. An active session is logged
// out first; if that logout fails the login is not attempted. On success the session
// becomes Authenticated and the flow navigates home exactly once.
func (a *AuthFlow) LoginWithCredentials(ctx context.Context, creds Credentials) error {
	logger := logtrace.Logger(ctx)

	if err := a.validate.Struct(creds); err != nil {
		e := ErrValidation.MsgErr(msgMissingCredentials, err)
		logger.Info().Err(err).Msg("login rejected before contacting the sdk")
		a.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Validation Error", Message: e.Error()})
		return e
	}

	loggedIn, err := a.SDK.IsLoggedIn(ctx)
	if err != nil {
		e := stepError(ErrSessionCheck, err)
		logger.Error().Err(err).Msg("login status query failed")
		a.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Error", Message: e.Error()})
		return e
	}

	if loggedIn {
		logger.Info().Msg("existing session found, logging out before login")
		if err := a.SDK.Logout(ctx); err != nil {
			e := kindError(ErrLogoutConflict, err)
			logger.Error().Err(err).Msg("pre-flight logout failed, login aborted")
			a.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Error", Message: msgLogoutConflict})
			return e
		}
		a.store.Set(session.Unauthenticated)
	}

	return a.complete(ctx, "loginUser", func() (string, error) {
		return a.SDK.LoginUser(ctx, kmsdk.User{
			UserID:        creds.UserID,
			Password:      creds.Password,
			ApplicationID: creds.AppID,
		})
	})
}

// LoginAsVisitor logs in anonymously with a single SDK call.
func (a *AuthFlow) LoginAsVisitor(ctx context.Context, appID string) error {
	return a.complete(ctx, "loginAsVisitor", func() (string, error) {
		return a.SDK.LoginAsVisitor(ctx, appID)
	})
}

func (a *AuthFlow) complete(ctx context.Context, call string, login func() (string, error)) error {
	logger := logtrace.Logger(ctx)

	msg, err := login()
	if err != nil {
		e := stepError(ErrLogin, err)
		logger.Error().Err(err).Str("call", call).Msg("login failed")
		a.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Login Error", Message: e.Error()})
		return e
	}

	logger.Info().Str("call", call).Str("message", msg).Msg("login succeeded")
	a.store.Set(session.Authenticated)
	a.Navigator.Navigate(ctx, RouteHome)
	return nil
}
