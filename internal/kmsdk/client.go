package kmsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kmchat/kmchat/internal/common/logtrace"
)

// DefaultCallTimeout bounds the wait for a single Boundary callback.
const DefaultCallTimeout = 30 * time.Second

// Client adapts a Boundary into blocking calls with typed results. Each call waits for
// its callback, the context, or the call timeout, whichever comes first.
type Client struct {
	boundary    Boundary
	callTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallTimeout sets the per-call timeout. Zero or negative disables it, leaving only
// the context to bound the wait.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// NewClient returns a Client for b.
func NewClient(b Boundary, opts ...ClientOption) *Client {
	c := &Client{
		boundary:    b,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reply struct {
	status  string
	payload string
}

// await invokes a boundary call and waits for its first completion. Later completions,
// and completions arriving after the wait ended, are dropped.
func (c *Client) await(ctx context.Context, call string, invoke func(done Callback)) (reply, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	ch := make(chan reply, 1)
	var once sync.Once
	invoke(func(status, payload string) {
		once.Do(func() {
			ch <- reply{status: status, payload: payload}
		})
	})

	select {
	case r := <-ch:
		logtrace.Logger(ctx).Debug().Str("call", call).Str("status", r.status).Msg("sdk call completed")
		return r, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logtrace.Logger(ctx).Warn().Str("call", call).Msg("sdk call timed out")
			return reply{}, ErrTimeout.Msg(fmt.Sprintf("%s did not complete in time", call))
		}
		return reply{}, ErrCanceled.Err(ctx.Err())
	}
}

func (c *Client) awaitStatus(ctx context.Context, call string, invoke func(done StatusCallback)) (string, error) {
	r, err := c.await(ctx, call, func(done Callback) {
		invoke(func(status string) { done(status, "") })
	})
	return r.status, err
}

// IsLoggedIn reports whether the boundary holds an authenticated session.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	status, err := c.awaitStatus(ctx, "isLoggedIn", c.boundary.IsLoggedIn)
	if err != nil {
		return false, err
	}
	return status == StatusTrue, nil
}

// LoginUser logs in with a credential bundle and returns the backend's message.
func (c *Client) LoginUser(ctx context.Context, user User) (string, error) {
	r, err := c.await(ctx, "loginUser", func(done Callback) {
		c.boundary.LoginUser(user, done)
	})
	if err != nil {
		return "", err
	}
	if r.status != StatusSuccess {
		return "", backendError(r.payload, "login failed")
	}
	return r.payload, nil
}

// LoginAsVisitor logs in anonymously. Any status other than Error counts as success.
func (c *Client) LoginAsVisitor(ctx context.Context, appID string) (string, error) {
	r, err := c.await(ctx, "loginAsVisitor", func(done Callback) {
		c.boundary.LoginAsVisitor(appID, done)
	})
	if err != nil {
		return "", err
	}
	if r.status == StatusError {
		return "", backendError(r.payload, "visitor login failed")
	}
	return r.payload, nil
}

// Logout terminates the boundary session.
func (c *Client) Logout(ctx context.Context) error {
	status, err := c.awaitStatus(ctx, "logout", c.boundary.Logout)
	if err != nil {
		return err
	}
	if status != StatusSuccess {
		return backendError("", "logout failed")
	}
	return nil
}

// BuildConversation creates a conversation and returns its channel key.
func (c *Client) BuildConversation(ctx context.Context, attrs ConversationAttributes) (ChannelKey, error) {
	bundle := attrs.Bundle()
	if _, err := DecodeAttributes(bundle); err != nil {
		return "", ErrInvalidPayload.MsgErr(err.Error(), err)
	}
	r, err := c.await(ctx, "buildConversation", func(done Callback) {
		c.boundary.BuildConversation(bundle, done)
	})
	if err != nil {
		return "", err
	}
	if r.status != StatusSuccess {
		return "", backendError(r.payload, "conversation creation failed")
	}
	if r.payload == "" {
		return "", ErrBackend.Msg("backend returned an empty channel key")
	}
	return ChannelKey(r.payload), nil
}

// SendMessage sends msg into its conversation.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if msg.ChannelKey == "" {
		return ErrInvalidPayload.Msg("message has no channel key")
	}
	payload, err := msg.Payload()
	if err != nil {
		return ErrInvalidPayload.MsgErr(err.Error(), err)
	}
	r, err := c.await(ctx, "sendMessage", func(done Callback) {
		c.boundary.SendMessage(payload, done)
	})
	if err != nil {
		return err
	}
	if r.status != StatusSuccess {
		return backendError(r.payload, "message could not be sent")
	}
	return nil
}

// OpenConversation opens the default, most recent conversation view.
func (c *Client) OpenConversation(ctx context.Context) error {
	r, err := c.await(ctx, "openConversation", func(done Callback) {
		c.boundary.OpenConversation(done)
	})
	if err != nil {
		return err
	}
	if r.status == StatusError {
		return backendError(r.payload, "conversation could not be opened")
	}
	return nil
}

// OpenParticularConversation opens the conversation identified by key.
func (c *Client) OpenParticularConversation(ctx context.Context, key ChannelKey, skipBackPress bool) error {
	r, err := c.await(ctx, "openParticularConversation", func(done Callback) {
		c.boundary.OpenParticularConversation(string(key), skipBackPress, done)
	})
	if err != nil {
		return err
	}
	if r.status == StatusError {
		return backendError(r.payload, "conversation could not be opened")
	}
	return nil
}
