package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/event"
	"github.com/code-payments/flipchat-billing/flags"
	"github.com/code-payments/flipchat-billing/model"
	"github.com/code-payments/flipchat-billing/session"
)

var errWaitTimeout = errors.New("timed out waiting for billing result")

type eventStream = event.ChanStream[session.Event, session.Event]

// Server exposes the session manager over HTTP. Every request gets its own
// context id and waits for the events carrying it.
type Server struct {
	log         *zap.Logger
	manager     *session.Manager
	waitTimeout time.Duration

	streamsMu sync.RWMutex
	streams   map[session.ContextID]*eventStream
}

func NewServer(log *zap.Logger, manager *session.Manager, waitTimeout time.Duration) *Server {
	if waitTimeout <= 0 {
		waitTimeout = flags.DefaultWaitTimeout
	}

	s := &Server{
		log:         log,
		manager:     manager,
		waitTimeout: waitTimeout,
		streams:     make(map[session.ContextID]*eventStream),
	}
	manager.AddHandler(event.HandlerFunc[session.ContextID, session.Event](s.handleEvent))
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	s.Routes(r)
	return r
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.GetStatus)

		r.Get("/products/{productID}", s.GetProduct)

		r.Get("/purchases", s.ListPurchases)
		r.Post("/purchases", s.StartPurchase)
		r.Post("/purchases/{token}/consume", s.ConsumePurchase)
	})
}

func (s *Server) handleEvent(id session.ContextID, e session.Event) {
	// Readiness changes and unsolicited purchases have no waiter.
	if id == 0 {
		return
	}

	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	stream, ok := s.streams[id]
	if !ok {
		s.log.Debug("Dropping event without a waiter", zap.Uint64("context", uint64(id)))
		return
	}
	err := stream.Notify(e, flags.DefaultNotifyTimeout)
	switch {
	case errors.Is(err, event.ErrNotifyTimeout):
		s.log.Warn("Closed stream of a slow waiter", zap.String("stream_id", stream.ID()))
	case err != nil:
		s.log.Debug("Failed to notify stream", zap.Error(err), zap.String("stream_id", stream.ID()))
	}
}

// openStream allocates a context id and registers a stream for its events.
// The returned func releases the stream.
func (s *Server) openStream() (session.ContextID, *eventStream, func(), error) {
	raw, err := model.GenerateContextID()
	if err != nil {
		return 0, nil, nil, errors.Wrap(err, "error generating context id")
	}
	id := session.ContextID(raw)

	stream := event.NewChanStream[session.Event, session.Event](
		model.ContextIDString(raw),
		flags.DefaultStreamBufferSize,
		func(e session.Event) (session.Event, bool) {
			return e, true
		},
	)

	s.streamsMu.Lock()
	s.streams[id] = stream
	s.streamsMu.Unlock()

	release := func() {
		s.streamsMu.Lock()
		delete(s.streams, id)
		s.streamsMu.Unlock()

		stream.Close()
	}
	return id, stream, release, nil
}

// await collects events from stream until done reports the last one.
func (s *Server) await(ctx context.Context, stream *eventStream, done func(session.Event) bool) ([]session.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	var events []session.Event
	for {
		select {
		case e, ok := <-stream.Channel():
			if !ok {
				return events, event.ErrStreamClosed
			}
			events = append(events, e)
			if done(e) {
				return events, nil
			}
		case <-ctx.Done():
			return events, errWaitTimeout
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeManagerError maps a synchronous rejection to a response.
func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrShutdown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrPurchaseInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Warn("Unexpected manager error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeWaitError(w http.ResponseWriter, err error) {
	if errors.Is(err, errWaitTimeout) {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	s.log.Warn("Failed waiting for billing result", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
