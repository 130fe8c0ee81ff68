package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/pambridge/internal/logger"
	"github.com/marmos91/pambridge/internal/protocol/bridgerpc"
)

// ModuleState is the state shared by all actions performed on one PAM
// handle. The loader glue creates it on first use and releases it when the
// handle is destroyed.
//
// The RPC server inside is created lazily on the first action that needs
// it and then reused: its socket directory survives across actions and is
// removed exactly once, at Release. Actions arm and disarm admission on it
// but never tear it down.
type ModuleState struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	server   *bridgerpc.Server
	released bool
}

// NewModuleState returns a fresh state with a live root context.
func NewModuleState() *ModuleState {
	ctx, cancel := context.WithCancel(context.Background())
	return &ModuleState{ctx: ctx, cancel: cancel}
}

// Context is the root context actions derive theirs from. It is cancelled
// at Release.
func (s *ModuleState) Context() context.Context {
	return s.ctx
}

// ensureServer returns the shared RPC server, creating it on first call.
func (s *ModuleState) ensureServer() (*bridgerpc.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("module state already released")
	}
	if s.server != nil {
		return s.server, nil
	}

	server, err := bridgerpc.NewServer()
	if err != nil {
		return nil, err
	}
	s.server = server
	return server, nil
}

// Release cancels every in-flight action and closes the server. Safe to
// call more than once.
func (s *ModuleState) Release() {
	s.cancel()

	s.mu.Lock()
	server := s.server
	s.server = nil
	alreadyReleased := s.released
	s.released = true
	s.mu.Unlock()

	if server != nil {
		server.Close()
	}
	if !alreadyReleased {
		logger.Debug("module state released")
	}
}
