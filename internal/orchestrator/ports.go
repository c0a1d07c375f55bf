// Package orchestrator sequences the messaging SDK calls behind each user action: login
// with its pre-flight logout guard, visitor login, conversation creation, the
// create-send-open message pipeline, opening conversations, and logout.
//
// Orchestrators talk to the SDK through the SDK interface, mutate the shared
// session.Store, and report to the presentation layer through a Navigator and a Notifier.
// Every operation surfaces its failure both as a returned error and as a Notice.
package orchestrator

import (
	"context"

	"github.com/kmchat/kmchat/internal/kmsdk"
)

// SDK is the typed messaging SDK surface. *kmsdk.Client implements it.
type SDK interface {
	IsLoggedIn(ctx context.Context) (bool, error)
	LoginUser(ctx context.Context, user kmsdk.User) (string, error)
	LoginAsVisitor(ctx context.Context, appID string) (string, error)
	Logout(ctx context.Context) error
	BuildConversation(ctx context.Context, attrs kmsdk.ConversationAttributes) (kmsdk.ChannelKey, error)
	SendMessage(ctx context.Context, msg kmsdk.Message) error
	OpenConversation(ctx context.Context) error
	OpenParticularConversation(ctx context.Context, key kmsdk.ChannelKey, skipBackPress bool) error
}

var _ SDK = (*kmsdk.Client)(nil)

// Route names a screen the presentation layer can navigate to.
type Route string

const (
	RouteLogin Route = "login"
	RouteHome  Route = "home"
)

// Navigator switches screens.
type Navigator interface {
	Navigate(ctx context.Context, route Route)
}

// Level classifies a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a message for the user, the equivalent of an alert dialog.
type Notice struct {
	Level      Level
	Title      string
	Message    string
	ChannelKey kmsdk.ChannelKey // set when the notice concerns a conversation
}

// Notifier shows notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, Route) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

// Deps bundles the collaborators shared by all orchestrators. Nil Navigator and Notifier
// are replaced with no-ops.
type Deps struct {
	SDK       SDK
	Navigator Navigator
	Notifier  Notifier
}

func (d Deps) withDefaults() Deps {
	if d.Navigator == nil {
		d.Navigator = nopNavigator{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	return d
}
