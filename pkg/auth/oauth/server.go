// SPDX-FileCopyrightText: Copyright 2026 Popcorn Time, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/popcorntime/session/pkg/logger"
)

// callbackResult is the (code, state) pair handed back by the provider's
// redirect.
type callbackResult struct {
	code  string
	state string
}

// callbackServer is the ephemeral loopback endpoint used during one
// authorization attempt. It exposes exactly two routes: the root path
// redirects the browser to the authorization URL, and the callback path
// forwards (code, state) to the broker and then shuts the server down.
type callbackServer struct {
	server     *http.Server
	successURL string

	shutdownOnce sync.Once
	done         chan struct{}
}

func newCallbackServer(authorizeURL, successURL string, port int, results chan<- callbackResult) *callbackServer {
	s := &callbackServer{
		successURL: successURL,
		done:       make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.Redirect(w, r, authorizeURL, http.StatusFound)
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code := query.Get("code")
		state := query.Get("state")
		if code == "" || state == "" {
			http.Error(w, "missing code or state", http.StatusBadRequest)
			return
		}

		// Capacity-1 channel; one attempt expects exactly one message.
		// A duplicate callback is dropped rather than blocking the handler.
		select {
		case results <- callbackResult{code: code, state: state}:
		default:
			logger.Warn("duplicate authorization callback dropped")
		}

		s.triggerShutdown()
		http.Redirect(w, r, s.successURL, http.StatusFound)
	})

	s.server = &http.Server{
		// Loopback only: the redirect target is this machine's browser.
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// run serves until the callback (or the broker) triggers shutdown. The
// shutdown is cooperative so the listening socket is always released, even
// when the browser never visits the callback.
func (s *callbackServer) run() error {
	go func() {
		<-s.done
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("failed to shutdown authorization callback server: %v", err)
		}
	}()

	logger.Infof("starting authorization callback server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("callback server failed: %w", err)
	}
	return nil
}

// triggerShutdown is safe to call from any goroutine, any number of times.
func (s *callbackServer) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.done) })
}
