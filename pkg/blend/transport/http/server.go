// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package http exposes a Repository's Sync handler over a single HTTP
// endpoint, and provides the client-side Requester that drives it — the
// peer-to-peer exchange transport that spec.md places outside the core
// (POST /v1/sync, an external collaborator), kept as a thin, swappable edge the way the
// teacher's pkg/serve/httpserver keeps protocol plumbing out of its
// repository core.
package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/blendvc/blendvc/modules/blend/exchange"
	"github.com/blendvc/blendvc/pkg/blend/repo"
)

const SyncPath = "/v1/sync"

// Server serves one Repository's HandleSync over POST /v1/sync.
type Server struct {
	srv *http.Server
	r   *mux.Router
	rep *repo.Repository
}

// NewServer builds a Server listening on addr and serving rep.
func NewServer(addr string, rep *repo.Repository) *Server {
	s := &Server{rep: rep}
	r := mux.NewRouter()
	r.HandleFunc(SyncPath, s.handleSync).Methods(http.MethodPost)
	s.r = r
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

func (s *Server) Shutdown() error { return s.srv.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hw := NewResponseWriter(w)
	s.r.ServeHTTP(hw, r)
	logrus.Infof("%s %s status=%d written=%d spent=%v", r.Method, r.URL.Path, hw.StatusCode(), hw.Written(), time.Since(start))
}

// malformedRequest reports that the request body could not be read as a
// wire-encoded Sync packet — a transport-layer fault distinct from the
// repo package's four error classes, always a client-side 400.
type malformedRequest struct {
	op  string
	err error
}

func (e *malformedRequest) Error() string { return e.op + ": " + e.err.Error() }
func (e *malformedRequest) Unwrap() error { return e.err }

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 256<<20))
	if err != nil {
		renderError(w, &malformedRequest{op: "read sync request body", err: err})
		return
	}
	req, err := exchange.DecodeSync(body)
	if err != nil {
		renderError(w, &malformedRequest{op: "decode sync request", err: err})
		return
	}
	reply, err := s.rep.HandleSync(req)
	if err != nil {
		renderError(w, err)
		return
	}
	encoded, err := exchange.EncodeExchange(reply)
	if err != nil {
		logrus.Errorf("encode sync reply: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}
