// Package monitor exposes a read-only HTTP view of a running session:
// the system/driver status and the most recent record. It implements
// eeg.Observer so the orchestrator can hand it records without knowing
// anything about HTTP.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/neuracq/neuracq/pkg/eeg"
)

type Server struct {
	srv      *http.Server
	statusFn func() eeg.SystemStatus

	mu   sync.RWMutex
	last *eeg.ProcessedData
}

func NewServer(port int, statusFn func() eeg.SystemStatus) *Server {
	return &Server{
		srv:      &http.Server{Addr: fmt.Sprintf(":%d", port)},
		statusFn: statusFn,
	}
}

// Observe keeps the latest record for /records/last. It never blocks
// beyond a brief lock, so the acquisition cadence is unaffected.
func (s *Server) Observe(rec *eeg.ProcessedData) {
	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	handler := httprouter.New()

	handler.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.statusFn())
	})

	handler.GET("/records/last", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		last := s.last
		s.mu.RUnlock()
		if last == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(last)
	})

	s.srv.Handler = handler

	go func() {
		<-ctx.Done()
		s.srv.Shutdown(context.Background())
	}()

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
