package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/shade"
)

// maxBodySize bounds command request bodies
const maxBodySize = 4096

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.hub.ServeHTTP)

	r.Route("/shades", func(r chi.Router) {
		r.Get("/", s.handleListShades)
		r.Route("/{address}", func(r chi.Router) {
			r.Get("/", s.handleGetShade)
			r.Get("/info", s.handleGetInfo)
			r.Post("/position", s.handleCommand(ActionPosition))
			r.Post("/open", s.handleCommand(ActionOpen))
			r.Post("/close", s.handleCommand(ActionClose))
			r.Post("/stop", s.handleCommand(ActionStop))
			r.Post("/scene", s.handleCommand(ActionScene))
			r.Post("/identify", s.handleCommand(ActionIdentify))
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, ww.Status())
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Shades    int    `json:"shades"`
	HomeKey   bool   `json:"home_key"`
	Clients   int    `json:"websocket_clients"`
	NATS      bool   `json:"nats"`
	UptimeSec int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Shades:    len(s.manager.Shades()),
		HomeKey:   s.manager.HasHomeKey(),
		Clients:   s.hub.Clients(),
		NATS:      s.nats != nil,
		UptimeSec: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleListShades(w http.ResponseWriter, r *http.Request) {
	shades := s.manager.Shades()
	states := make([]shade.State, 0, len(shades))
	for _, sh := range shades {
		states = append(states, sh.State())
	}
	respondJSON(w, http.StatusOK, states)
}

func (s *Server) handleGetShade(w http.ResponseWriter, r *http.Request) {
	sh, err := s.manager.Get(chi.URLParam(r, "address"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sh.State())
}

// handleGetInfo returns cached device information, reading it from the
// shade on first request or when ?refresh=true is given
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	sh, err := s.manager.Get(chi.URLParam(r, "address"))
	if err != nil {
		respondError(w, err)
		return
	}

	if info, ok := sh.Info(); ok && r.URL.Query().Get("refresh") != "true" {
		respondJSON(w, http.StatusOK, info)
		return
	}

	ctx, cancel := s.commandContext(r)
	defer cancel()
	info, err := sh.QueryInfo(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCommand(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := s.manager.Get(chi.URLParam(r, "address"))
		if err != nil {
			respondError(w, err)
			return
		}

		cmd := Command{}
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err := dec.Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		cmd.Action = action

		ctx, cancel := s.commandContext(r)
		defer cancel()
		if err := Execute(ctx, sh, cmd); err != nil {
			logging.Warn("Command failed",
				zap.String("device", sh.Name()),
				zap.String("action", action),
				zap.Error(err),
			)
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, resultFor(nil))
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, StatusCode(err), resultFor(err))
}
