// Package httpsdk implements kmsdk.Boundary against a messaging backend's REST API.
//
// The SDK owns authentication persistence: the token issued at login is kept in a Store
// and attached to every later request. Each boundary call runs on its own goroutine and
// reports through its callback; nothing here blocks the caller.
package httpsdk

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kmchat/kmchat/internal/common/httpclient"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrClosed is reported by calls that finish after Close. Their results are not persisted.
var ErrClosed = errors.New("httpsdk: sdk is closed")

// Options configures an SDK.
type Options struct {
	ServerURL          string
	RequestTimeout     time.Duration
	ReadAttempts       uint
	InsecureSkipVerify bool
	Store              Store  // defaults to a MemoryStore
	Viewer             Viewer // defaults to a viewer that shows nothing
}

// SDK is the REST-backed boundary.
type SDK struct {
	serverURL string
	http      httpclient.HTTPClientInterface
	store     Store
	viewer    Viewer
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	state *SessionState
}

var _ kmsdk.Boundary = (*SDK)(nil)

// New creates an SDK and loads any persisted session from the store.
func New(opts Options) (*SDK, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("httpsdk: server URL is required")
	}
	if _, err := url.Parse(opts.ServerURL); err != nil {
		return nil, errors.Wrapf(err, "httpsdk: invalid server URL %q", opts.ServerURL)
	}
	store := opts.Store
	if store == nil {
		store = &MemoryStore{}
	}
	viewer := opts.Viewer
	if viewer == nil {
		viewer = nopViewer{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SDK{
		serverURL: strings.TrimRight(opts.ServerURL, "/"),
		store:     store,
		viewer:    viewer,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.http = httpclient.NewClient(s, httpclient.ClientOptions{
		Timeout:               opts.RequestTimeout,
		ReadAttempts:          opts.ReadAttempts,
		DisableCertValidation: opts.InsecureSkipVerify,
	})

	state, err := store.Load()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "httpsdk: loading session")
	}
	s.state = state
	return s, nil
}

// Close abandons in-flight calls and waits for their goroutines to exit. Callbacks of
// abandoned calls still fire, with an error status, and a login that completes after
// Close does not store its token.
func (s *SDK) Close() {
	s.cancel()
	s.wg.Wait()
}

// GetServerURL implements httpclient.Configurator.
func (s *SDK) GetServerURL() string {
	return s.serverURL
}

// GetToken implements httpclient.Configurator.
func (s *SDK) GetToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return ""
	}
	return s.state.Token
}

// Session returns a copy of the current session, or nil when logged out.
func (s *SDK) Session() *SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	cp := *s.state
	return &cp
}

func (s *SDK) setSession(state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	if state == nil {
		if err := s.store.Clear(); err != nil {
			return err
		}
		s.state = nil
		return nil
	}
	if err := s.store.Save(state); err != nil {
		return err
	}
	s.state = state
	return nil
}

// run executes fn on a goroutine and delivers its result to cb.
func (s *SDK) run(call string, fn func(ctx context.Context) (string, string), cb kmsdk.Callback) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		status, payload := fn(s.ctx)
		if status == kmsdk.StatusError {
			log.Error().Str("call", call).Str("message", payload).Msg("sdk call failed")
		}
		cb(status, payload)
	}()
}

func failure(err error) (string, string) {
	return kmsdk.StatusError, err.Error()
}

func (s *SDK) IsLoggedIn(cb kmsdk.StatusCallback) {
	s.run("isLoggedIn", func(context.Context) (string, string) {
		if s.tokenActive() {
			return kmsdk.StatusTrue, ""
		}
		return kmsdk.StatusFalse, ""
	}, func(status, _ string) { cb(status) })
}

// tokenActive reports whether a token is stored and, when it is a JWT with an expiry, that
// the expiry lies in the future. Opaque tokens count as active until logout.
func (s *SDK) tokenActive() bool {
	token := s.GetToken()
	if token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return s.now().Before(claims.ExpiresAt.Time)
}

func (s *SDK) LoginUser(user kmsdk.User, cb kmsdk.Callback) {
	s.run("loginUser", func(ctx context.Context) (string, string) {
		body, _ := sjson.SetBytes([]byte(`{}`), "userId", user.UserID)
		body, _ = sjson.SetBytes(body, "password", user.Password)
		body, _ = sjson.SetBytes(body, "applicationId", user.ApplicationID)
		return s.login(ctx, "v1/users/login", body, user.ApplicationID, false)
	}, cb)
}

func (s *SDK) LoginAsVisitor(appID string, cb kmsdk.Callback) {
	s.run("loginAsVisitor", func(ctx context.Context) (string, string) {
		body, _ := sjson.SetBytes([]byte(`{}`), "applicationId", appID)
		return s.login(ctx, "v1/visitors/login", body, appID, true)
	}, cb)
}

func (s *SDK) login(ctx context.Context, path string, body []byte, appID string, visitor bool) (string, string) {
	resp, err := s.http.PostJSON(ctx, path, body)
	if err != nil {
		return failure(err)
	}
	res := gjson.ParseBytes(resp)
	token := res.Get("token").String()
	if token == "" {
		return failure(errors.New("login response carried no token"))
	}
	state := &SessionState{
		Token:      token,
		UserID:     res.Get("userId").String(),
		Visitor:    visitor,
		AppID:      appID,
		LoggedInAt: s.now().UTC(),
	}
	if err := s.setSession(state); err != nil {
		return failure(errors.Wrap(err, "persisting session"))
	}
	msg := res.Get("message").String()
	if msg == "" {
		msg = "logged in as " + state.UserID
	}
	return kmsdk.StatusSuccess, msg
}

func (s *SDK) Logout(cb kmsdk.StatusCallback) {
	s.run("logout", func(ctx context.Context) (string, string) {
		if s.GetToken() == "" {
			return kmsdk.StatusSuccess, ""
		}
		if _, err := s.http.PostJSON(ctx, "v1/users/logout", nil); err != nil {
			return failure(err)
		}
		if err := s.setSession(nil); err != nil {
			return failure(errors.Wrap(err, "clearing session"))
		}
		return kmsdk.StatusSuccess, ""
	}, func(status, _ string) { cb(status) })
}

func (s *SDK) BuildConversation(attributes map[string]any, cb kmsdk.Callback) {
	s.run("buildConversation", func(ctx context.Context) (string, string) {
		attrs, err := kmsdk.DecodeAttributes(attributes)
		if err != nil {
			return failure(err)
		}
		if attrs.AppID == "" {
			if st := s.Session(); st != nil {
				attrs.AppID = st.AppID
			}
		}
		body, err := conversationBody(attrs)
		if err != nil {
			return failure(err)
		}
		resp, err := s.http.PostJSON(ctx, "v1/conversations", body)
		if err != nil {
			return failure(err)
		}
		key := gjson.GetBytes(resp, "clientChannelKey").String()
		if key == "" {
			return failure(errors.New("backend returned no clientChannelKey"))
		}
		return kmsdk.StatusSuccess, key
	}, cb)
}

func conversationBody(attrs kmsdk.ConversationAttributes) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			body, err = sjson.SetBytes(body, path, v)
		}
	}
	for k, v := range attrs.Extra {
		set(escapePath(k), v)
	}
	set("createOnly", attrs.CreateOnly)
	if attrs.AppID != "" {
		set("appId", attrs.AppID)
	}
	if attrs.GroupName != "" {
		set("groupName", attrs.GroupName)
	}
	if len(attrs.AgentIDs) > 0 {
		set("agentIds", attrs.AgentIDs)
	}
	if len(attrs.BotIDs) > 0 {
		set("botIds", attrs.BotIDs)
	}
	if attrs.ClientConversationID != "" {
		set("clientConversationId", attrs.ClientConversationID)
	}
	if len(attrs.Metadata) > 0 {
		set("metadata", attrs.Metadata)
	}
	if err != nil {
		return nil, errors.Wrap(err, "encoding conversation attributes")
	}
	return body, nil
}

// escapePath makes an arbitrary key safe to use as an sjson path.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SDK) SendMessage(msg kmsdk.MessagePayload, cb kmsdk.Callback) {
	s.run("sendMessage", func(ctx context.Context) (string, string) {
		if msg.ChannelID == "" {
			return failure(errors.New("channelID is required"))
		}
		body, _ := sjson.SetBytes([]byte(`{}`), "message", msg.Message)
		meta := msg.MessageMetadata
		if meta == "" {
			meta = "{}"
		}
		if !gjson.Valid(meta) {
			return failure(errors.New("messageMetadata is not valid JSON"))
		}
		body, _ = sjson.SetRawBytes(body, "metadata", []byte(meta))
		path := "v1/conversations/" + url.PathEscape(msg.ChannelID) + "/messages"
		if _, err := s.http.PostJSON(ctx, path, body); err != nil {
			return failure(err)
		}
		return kmsdk.StatusSuccess, "Message sent"
	}, cb)
}

func (s *SDK) OpenConversation(cb kmsdk.Callback) {
	s.run("openConversation", func(ctx context.Context) (string, string) {
		return s.open(ctx, "v1/conversations/latest", nil, false)
	}, cb)
}

func (s *SDK) OpenParticularConversation(channelKey string, skipBackPress bool, cb kmsdk.Callback) {
	s.run("openParticularConversation", func(ctx context.Context) (string, string) {
		if channelKey == "" {
			return failure(errors.New("channel key is required"))
		}
		query := map[string]string{"skipBackPress": strconv.FormatBool(skipBackPress)}
		return s.open(ctx, "v1/conversations/"+url.PathEscape(channelKey), query, skipBackPress)
	}, cb)
}

func (s *SDK) open(ctx context.Context, path string, query map[string]string, skipBackPress bool) (string, string) {
	resp, err := s.http.GetJSON(ctx, path, query)
	if err != nil {
		return failure(err)
	}
	conv := parseConversation(resp)
	if err := s.viewer.Show(conv, skipBackPress); err != nil {
		return failure(errors.Wrap(err, "rendering conversation"))
	}
	return kmsdk.StatusSuccess, conv.ChannelKey
}
