package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/kmchat/kmchat/internal/common/apperrors"
	"github.com/kmchat/kmchat/internal/common/eventbus"
	"github.com/kmchat/kmchat/internal/kmsdk/httpsdk"
	"github.com/kmchat/kmchat/internal/orchestrator"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	color.NoColor = true
}

type chatBackend struct {
	mu       sync.Mutex
	messages map[string][]byte
}

func newChatBackend(t *testing.T) *httptest.Server {
	t.Helper()
	b := &chatBackend{messages: map[string][]byte{}}

	r := chi.NewRouter()
	r.Post("/v1/users/login", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		if gjson.GetBytes(body, "password").String() != "p1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid userId or password"}`))
			return
		}
		w.Write([]byte(`{"token":"opaque","userId":"` + gjson.GetBytes(body, "userId").String() + `"}`))
	})
	r.Post("/v1/visitors/login", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"token":"opaque","userId":"visitor-7"}`))
	})
	r.Post("/v1/users/logout", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/v1/conversations", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"clientChannelKey":"CH42"}`))
	})
	r.Post("/v1/conversations/{key}/messages", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		b.mu.Lock()
		b.messages[chi.URLParam(req, "key")] = body
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/v1/conversations/latest", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"clientChannelKey":"CH41","messages":[]}`))
	})
	r.Get("/v1/conversations/{key}", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"clientChannelKey":"` + chi.URLParam(req, "key") + `","groupName":"support",
			"messages":[{"from":"u1","message":"hi","metadata":{"ID":"X123Y24","Name":"Alex Williams"}}]}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// resetFlags restores every flag of cmd and its children to its default so runs of the
// shared root command do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setContext hands ctx to cmd and every descendant. Cobra keeps the context a
// subcommand saw on its first run, which would leak a canceled one into later runs.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	jsonOutput, configFile, loaded = false, "", nil

	var out bytes.Buffer
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	setContext(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestEndToEnd(t *testing.T) {
	srv := newChatBackend(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	stateDir := filepath.Join(dir, "state")

	out, err := execute(t, "config", "init", "--config", cfgPath,
		"--app-id", "app-1", "--backend", srv.URL, "--state-dir", stateDir, "--log-level", "disabled")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+cfgPath)

	_, err = execute(t, "config", "init", "--config", cfgPath, "--app-id", "a", "--backend", srv.URL)
	assert.Equal(t, apperrors.ExitValidation, apperrors.ExitCodeOf(err), "existing file needs --force")

	out, err = execute(t, "status", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "→ login")
	assert.Contains(t, out, "✓ unauthenticated")

	out, err = execute(t, "send", "hi", "--config", cfgPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrNotAuthenticated)
	assert.Equal(t, apperrors.ExitValidation, apperrors.ExitCodeOf(err))
	assert.Contains(t, out, "✗ Error: Log in before working with conversations.")

	out, err = execute(t, "login", "--config", cfgPath, "--user", "u1", "--password", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "→ home")
	assert.Contains(t, out, "✓ Logged in as u1")

	store := httpsdk.NewFileStore(filepath.Join(stateDir, httpsdk.DefaultStateFile))
	state, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "u1", state.UserID)

	out, err = execute(t, "status", "--config", cfgPath, "--json")
	require.NoError(t, err)
	assert.Equal(t, "authenticated", gjson.Get(out, "session").String(), out)
	assert.Equal(t, "u1", gjson.Get(out, "user_id").String())

	out, err = execute(t, "status", "--config", cfgPath, "--json")
	require.NoError(t, err)
	assert.Equal(t, "authenticated", gjson.Get(out, "session").String(), "each run starts with a live context")

	out, err = execute(t, "send", "hi", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversation CH42 (support)")
	assert.Contains(t, out, "u1 ▶ hi")
	assert.Contains(t, out, "ID=X123Y24 Name=Alex Williams")
	assert.Contains(t, out, "✓ Message sent to CH42")

	out, err = execute(t, "conversation", "create", "--config", cfgPath, "--attr", "groupName=sales")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Success: ClientChannelKey: CH42")

	out, err = execute(t, "conversation", "open", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversation CH41")
	assert.Contains(t, out, "no messages yet")

	out, err = execute(t, "logout", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "→ login")
	assert.Contains(t, out, "✓ Logged out")

	state, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	out, err = execute(t, "login", "--config", cfgPath, "--user", "u1", "--password", "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrLogin)
	assert.Contains(t, out, "✗ Login Error: Invalid userId or password")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, apperrors.ExitFailure, reportError(&stdout, &stderr, err))
	assert.Empty(t, stdout.String()+stderr.String(), "notice already printed")

	out, err = execute(t, "visitor", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Logged in as visitor")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "status", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConfig)
	assert.Equal(t, apperrors.ExitValidation, apperrors.ExitCodeOf(err))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kmchat "+Version)
}

func TestReportError(t *testing.T) {
	jsonOutput = false
	var stdout, stderr bytes.Buffer
	code := reportError(&stdout, &stderr, apperrors.New("boom").SetExitCode(apperrors.ExitTimeout))
	assert.Equal(t, apperrors.ExitTimeout, code)
	assert.Equal(t, "Error: boom\n", stderr.String())

	jsonOutput = true
	defer func() { jsonOutput = false }()
	stdout.Reset()
	code = reportError(&stdout, &stderr, handled(apperrors.New("quiet")))
	assert.Equal(t, apperrors.ExitFailure, code)
	assert.Equal(t, "quiet", gjson.Get(stdout.String(), "error").String())
	assert.Equal(t, int64(1), gjson.Get(stdout.String(), "exit_code").Int())
}

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", in: nil, want: map[string]string{}},
		{name: "pairs", in: []string{"Name=Alex Williams", "ID=X123Y24"}, want: map[string]string{"Name": "Alex Williams", "ID": "X123Y24"}},
		{name: "value with equals", in: []string{"q=a=b"}, want: map[string]string{"q": "a=b"}},
		{name: "empty value", in: []string{"k="}, want: map[string]string{"k": ""}},
		{name: "later wins", in: []string{"k=1", "k=2"}, want: map[string]string{"k": "2"}},
		{name: "no equals", in: []string{"novalue"}, wantErr: true},
		{name: "empty key", in: []string{"=v"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValues(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ExitValidation, apperrors.ExitCodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttributesFromFlags(t *testing.T) {
	attrs, err := attributesFromFlags([]string{
		"groupName=support",
		"agentIds=a1,a2",
		"createOnly=true",
		"teamId=t9",
	}, "app-2")
	require.NoError(t, err)
	assert.Equal(t, "support", attrs.GroupName)
	assert.Equal(t, []string{"a1", "a2"}, attrs.AgentIDs)
	assert.True(t, attrs.CreateOnly)
	assert.Equal(t, "app-2", attrs.AppID)
	assert.Equal(t, map[string]any{"teamId": "t9"}, attrs.Extra)

	_, err = attributesFromFlags([]string{"createOnly=maybe"}, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitValidation, apperrors.ExitCodeOf(err))
}

func TestPrinterText(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, false)

	p.event(eventbus.Event{Topic: "nav.home", Data: "ignored"})
	p.event(eventbus.Event{Topic: "notice.error", Data: orchestrator.Notice{
		Level: orchestrator.LevelError, Title: "Login Error", Message: "nope",
	}})
	p.event(eventbus.Event{Topic: "notice.info", Data: orchestrator.Notice{
		Level: orchestrator.LevelInfo, Message: "done",
	}})
	require.NoError(t, p.Show(httpsdk.Conversation{
		ChannelKey: "CH1",
		Messages: []httpsdk.ViewMessage{
			{From: "u1", Body: "line one\nline two"},
			{Body: "anonymous"},
		},
	}, true))
	p.result("finished", map[string]any{"ignored": true})

	assert.Equal(t, "✗ Login Error: nope\n"+
		"✓ done\n"+
		"\nConversation CH1\n"+
		"  u1 ▶ line one\n      line two\n"+
		"  unknown ▶ anonymous\n"+
		"\n"+
		"✓ finished\n", out.String())
}

func TestPrinterJSON(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, true)

	p.event(eventbus.Event{Topic: "notice.info", Data: orchestrator.Notice{Level: orchestrator.LevelInfo, Message: "created"}})
	require.NoError(t, p.Show(httpsdk.Conversation{ChannelKey: "CH1"}, true))
	assert.Empty(t, out.String(), "json mode prints once at the end")

	p.result("ignored", map[string]any{"channel_key": "CH1"})
	doc := out.String()
	assert.Equal(t, "success", gjson.Get(doc, "status").String())
	assert.Equal(t, "CH1", gjson.Get(doc, "channel_key").String())
	assert.Equal(t, "created", gjson.Get(doc, "notices.0.Message").String())
	assert.Equal(t, "CH1", gjson.Get(doc, "conversations.0.ChannelKey").String())
}
