package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/kmchat/kmchat/internal/app"
	"github.com/kmchat/kmchat/internal/common/eventbus"
	"github.com/kmchat/kmchat/internal/config"
	"github.com/kmchat/kmchat/internal/kmsdk"
	"github.com/kmchat/kmchat/internal/kmsdk/httpsdk"
	"github.com/spf13/cobra"
)

// runtime is one CLI invocation's wiring: the REST boundary, the blocking adapter and
// the screen model, plus a subscription that renders what the app publishes.
type runtime struct {
	sdk     *httpsdk.SDK
	app     *app.App
	printer *printer

	events      <-chan eventbus.Event
	unsubscribe func()
}

func newRuntime(cfg *config.Config, out io.Writer, asJSON bool) (*runtime, error) {
	requestTimeout, err := cfg.Backend.GetRequestTimeout()
	if err != nil {
		return nil, err
	}
	callTimeout, err := cfg.Client.GetCallTimeout()
	if err != nil {
		return nil, err
	}
	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}

	p := newPrinter(out, asJSON)
	sdk, err := httpsdk.New(httpsdk.Options{
		ServerURL:          cfg.Backend.URL,
		RequestTimeout:     requestTimeout,
		ReadAttempts:       cfg.Backend.ReadAttempts,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
		Store:              httpsdk.NewFileStore(filepath.Join(stateDir, httpsdk.DefaultStateFile)),
		Viewer:             p,
	})
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	events, unsubscribe := bus.Subscribe("*", 64)
	client := kmsdk.NewClient(sdk, kmsdk.WithCallTimeout(callTimeout))

	return &runtime{
		sdk:         sdk,
		app:         app.New(client, app.Options{AppID: cfg.AppID, Bus: bus}),
		printer:     p,
		events:      events,
		unsubscribe: unsubscribe,
	}, nil
}

// start resolves the session and renders the resulting navigation.
func (r *runtime) start(ctx context.Context) app.Screen {
	s := r.app.Start(ctx)
	r.flush()
	return s
}

// flush renders every event published so far. Publishing is synchronous, so after an
// action returns its events are already queued.
func (r *runtime) flush() {
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return
			}
			r.printer.event(e)
		default:
			return
		}
	}
}

// result renders the command's final output.
func (r *runtime) result(text string, fields map[string]any) {
	r.flush()
	r.printer.result(text, fields)
}

func (r *runtime) close() {
	r.flush()
	r.unsubscribe()
	r.app.Bus().Shutdown()
	r.sdk.Close()
}

// runtimeRunE builds a runtime for the loaded config, starts the app and hands it to fn.
func runtimeRunE(fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(loaded, cmd.OutOrStdout(), jsonOutput)
		if err != nil {
			return err
		}
		defer rt.close()

		rt.start(cmd.Context())
		err = fn(cmd, rt, args)
		rt.flush()
		return err
	}
}
