package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmchat/kmchat/internal/common/logtrace"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/session"
)

// SkipBackPress is passed to every specific-conversation open.
const SkipBackPress = true

// ConversationFlow creates, opens and sends into conversations. It reads the session
// state and refuses to work without an authenticated session.
type ConversationFlow struct {
	Deps
	store        *session.Store
	onTransition func(from, to SendState)
}

// ConversationOption configures a ConversationFlow.
type ConversationOption func(*ConversationFlow)

// WithSendObserver registers fn to see every send pipeline transition.
func WithSendObserver(fn func(from, to SendState)) ConversationOption {
	return func(f *ConversationFlow) {
		f.onTransition = fn
	}
}

// NewConversationFlow returns a ConversationFlow reading store.
func NewConversationFlow(deps Deps, store *session.Store, opts ...ConversationOption) *ConversationFlow {
	f := &ConversationFlow{Deps: deps.withDefaults(), store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ConversationFlow) requireSession(ctx context.Context) error {
	if f.store.IsAuthenticated() {
		return nil
	}
	logtrace.Logger(ctx).Info().Str("state", f.store.State().String()).Msg("conversation operation without a session")
	f.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Error", Message: msgNotAuthenticated})
	return ErrNotAuthenticated
}

func (f *ConversationFlow) reportFailure(ctx context.Context, err error, key kmsdk.ChannelKey, msg string) {
	f.Notifier.Notify(ctx, Notice{Level: LevelError, Title: "Error", Message: msg, ChannelKey: key})
	logtrace.Logger(ctx).Error().Err(err).Str("channel_key", key.String()).Msg(msg)
}

// CreateConversation builds a conversation from attrs, which may be empty, and reports
// the new channel key.
func (f *ConversationFlow) CreateConversation(ctx context.Context, attrs kmsdk.ConversationAttributes) (kmsdk.ChannelKey, error) {
	if err := f.requireSession(ctx); err != nil {
		return "", err
	}

	key, err := f.SDK.BuildConversation(ctx, attrs)
	if err != nil {
		e := stepError(ErrBuild, err)
		f.reportFailure(ctx, err, "", e.Error())
		return "", e
	}

	logtrace.Logger(ctx).Info().Str("channel_key", key.String()).Msg("conversation created")
	f.Notifier.Notify(ctx, Notice{
		Level:      LevelInfo,
		Title:      "Success",
		Message:    "ClientChannelKey: " + key.String(),
		ChannelKey: key,
	})
	return key, nil
}

// SendMessage creates a conversation without opening it, sends body into it, and then
// opens it. Each step starts only after the previous one succeeded. A failure while
// creating or sending stops the pipeline. A failure while opening is reported, but the
// message stays delivered and the outcome keeps the channel key so the conversation can
// be opened by hand.
func (f *ConversationFlow) SendMessage(ctx context.Context, body string, metadata map[string]string) (SendOutcome, error) {
	logger := logtrace.Logger(ctx)
	p := newSendPipeline(func(from, to SendState) {
		logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("send pipeline transition")
		if f.onTransition != nil {
			f.onTransition(from, to)
		}
	})

	if err := f.requireSession(ctx); err != nil {
		return *p.out, err
	}

	p.advance(SendCreating)
	key, err := f.SDK.BuildConversation(ctx, kmsdk.ConversationAttributes{CreateOnly: true})
	if err != nil {
		p.fail()
		e := stepError(ErrBuild, err)
		f.reportFailure(ctx, err, "", e.Error())
		return *p.out, e
	}
	p.out.ChannelKey = key

	p.advance(SendSending)
	err = f.SDK.SendMessage(ctx, kmsdk.Message{ChannelKey: key, Body: body, Metadata: metadata})
	if err != nil {
		p.fail()
		e := stepError(ErrSend, err)
		f.reportFailure(ctx, err, key, e.Error())
		return *p.out, e
	}
	p.out.Delivered = true
	logger.Info().Str("channel_key", key.String()).Msg("message sent")

	p.advance(SendOpening)
	if err := f.SDK.OpenParticularConversation(ctx, key, SkipBackPress); err != nil {
		p.fail()
		e := stepError(ErrOpen, err)
		f.reportFailure(ctx, err, key, fmt.Sprintf("Message delivered to %s, but the conversation could not be opened: %s", key, e.Error()))
		return *p.out, e
	}

	p.advance(SendDone)
	return *p.out, nil
}

// OpenConversation opens the SDK's default, most recent conversation.
func (f *ConversationFlow) OpenConversation(ctx context.Context) error {
	if err := f.requireSession(ctx); err != nil {
		return err
	}
	if err := f.SDK.OpenConversation(ctx); err != nil {
		e := stepError(ErrOpen, err)
		f.reportFailure(ctx, err, "", e.Error())
		return e
	}
	return nil
}

// OpenSpecificConversation opens the conversation named by channelKey. Input that is
// empty after trimming is ignored without error and without contacting the SDK.
func (f *ConversationFlow) OpenSpecificConversation(ctx context.Context, channelKey string) error {
	key := kmsdk.ChannelKey(strings.TrimSpace(channelKey))
	if key == "" {
		return nil
	}
	if err := f.requireSession(ctx); err != nil {
		return err
	}
	if err := f.SDK.OpenParticularConversation(ctx, key, SkipBackPress); err != nil {
		e := stepError(ErrOpen, err)
		f.reportFailure(ctx, err, key, e.Error())
		return e
	}
	logtrace.Logger(ctx).Info().Str("channel_key", key.String()).Msg("specific conversation opened")
	return nil
}
