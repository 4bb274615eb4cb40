package dealloc

import (
	"context"
	"sync"
)

var (
	defaultMu  sync.Mutex
	defaultSvc *Service
)

// Default returns the process-wide service, creating and starting it on first
// use.
func Default() *Service {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSvc == nil {
		defaultSvc = New()
		defaultSvc.Start(context.Background())
	}
	return defaultSvc
}

// ShutdownDefault stops the process-wide service. A later Default call
// creates a fresh one.
func ShutdownDefault() {
	defaultMu.Lock()
	svc := defaultSvc
	defaultSvc = nil
	defaultMu.Unlock()

	if svc != nil {
		svc.Close()
	}
}
