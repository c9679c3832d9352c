package subsystem

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// WebGUI serves the main booth control page. Every route is a thin wrapper
// around one event-service operation; the page itself is a static form so
// the GUI process carries no booth state of its own.
type WebGUI struct{}

func (WebGUI) Name() string { return "web-gui" }

func (WebGUI) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("web-gui", flag.ContinueOnError)
	addr := fs.String("addr", "0.0.0.0:8081", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, mainPage)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	r.Post("/capture", operation(logger, "capture", svc.Capture))
	r.Post("/capture/delayed", func(w http.ResponseWriter, _ *http.Request) {
		id, err := svc.DelayedCapture()
		if err != nil {
			logger.Warn("gui_operation_failed", "op", "delayed_capture", "error", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "scheduled %s\n", id)
	})
	r.Post("/wink", operation(logger, "wink", svc.Wink))
	r.Post("/dizzy", operation(logger, "dizzy", svc.Dizzy))
	r.Post("/print", operation(logger, "print_last", svc.PrintLast))
	r.Post("/recording/toggle", operation(logger, "toggle_recording", svc.ToggleRecording))
	r.Post("/say", func(w http.ResponseWriter, req *http.Request) {
		text := req.FormValue("text")
		if text == "" {
			http.Error(w, "missing text", http.StatusBadRequest)
			return
		}
		operation(logger, "say", func() error { return svc.Say(text) })(w, req)
	})
	r.Post("/close", operation(logger, "close", svc.Close))

	return serveUntilExit(ctx, logger, flags, *addr, r)
}

// SayGUI is the reduced text-to-speech page served on a second port (or
// subdomain) for guests: it can only make the booth talk.
type SayGUI struct{}

func (SayGUI) Name() string { return "say-gui" }

func (SayGUI) HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
	flags coord.Flags, args []string) error {

	fs := flag.NewFlagSet("say-gui", flag.ContinueOnError)
	addr := fs.String("addr", "0.0.0.0:8082", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, sayPage)
	})
	r.Post("/say", func(w http.ResponseWriter, req *http.Request) {
		text := req.FormValue("text")
		if text == "" {
			http.Error(w, "missing text", http.StatusBadRequest)
			return
		}
		operation(logger, "say", func() error { return svc.Say(text) })(w, req)
	})

	return serveUntilExit(ctx, logger, flags, *addr, r)
}

// operation adapts a fire-and-forget proxy call to an HTTP handler.
func operation(logger *slog.Logger, name string, call func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := call(); err != nil {
			logger.Warn("gui_operation_failed", "op", name, "error", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		fmt.Fprintln(w, "accepted")
	}
}

// serveUntilExit runs the HTTP server until the shared exit flag latches or
// the context is cancelled, then shuts it down with a short grace period.
func serveUntilExit(ctx context.Context, logger *slog.Logger, flags coord.Flags,
	addr string, handler http.Handler) error {

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("gui_listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-flags.ExitChan():
		logger.Info("gui_stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const mainPage = `<!doctype html>
<html><head><title>sketchbooth</title></head>
<body>
<h1>sketchbooth</h1>
<form method="post" action="/capture"><button>Capture</button></form>
<form method="post" action="/capture/delayed"><button>Delayed capture</button></form>
<form method="post" action="/print"><button>Print previous</button></form>
<form method="post" action="/say">
  <input name="text" placeholder="Something to say"/>
  <button>Say</button>
</form>
<form method="post" action="/wink"><button>Wink</button></form>
<form method="post" action="/recording/toggle"><button>Toggle recording</button></form>
<form method="post" action="/close"><button>Shut down</button></form>
</body></html>
`

const sayPage = `<!doctype html>
<html><head><title>sketchbooth say</title></head>
<body>
<h1>Make the booth talk</h1>
<form method="post" action="/say">
  <input name="text" placeholder="Something to say"/>
  <button>Say</button>
</form>
</body></html>
`
