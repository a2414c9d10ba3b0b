package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"github.com/mogaika/moiety/engine"
	"github.com/mogaika/moiety/loader"
	"github.com/mogaika/moiety/screen"
	"github.com/mogaika/moiety/status"
)

// Server serves the resource tree and, when a player is attached, the
// operator surface of that player.
type Server struct {
	Resources loader.Transport
	Player    *engine.Player
	Screen    *screen.Compositor
	Hub       *status.Hub
	WebDir    string
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	gz := func(h http.HandlerFunc) http.Handler { return gzhttp.GzipHandler(h) }

	if s.Resources != nil {
		r.Handle("/resources/{stack}/{type}/{file}", gz(s.HandlerResource)).Methods(http.MethodGet, http.MethodHead)
	}
	if s.Hub != nil {
		r.Handle("/ws/status", s.Hub)
		r.Handle("/api/status", gz(s.HandlerStatus)).Methods(http.MethodGet)
	}
	if s.Player != nil {
		r.Handle("/api/state", gz(s.HandlerState)).Methods(http.MethodGet)
		r.HandleFunc("/api/input/{kind}", s.HandlerInput).Methods(http.MethodPost)
		r.HandleFunc("/api/goto/{stack}/{card}", s.HandlerGoto).Methods(http.MethodPost)
	}
	if s.Screen != nil {
		r.HandleFunc("/screen.png", s.HandlerScreen).Methods(http.MethodGet)
	}
	if s.WebDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.WebDir)))
	}

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	return handlers.LoggingHandler(os.Stdout, h)
}

// StartServer serves until ctx is cancelled.
func StartServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[web] Starting server %v", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
