// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tenpo/internal/metrics"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*MaintenanceService)(nil)
)

// fakeHTTPServer blocks in ListenAndServe until Shutdown is called.
type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error

	started   chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	shutdowns atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer()
	svc := NewHTTPServerService(server, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-server.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", server.shutdowns.Load())
	}
}

func TestHTTPServerServiceErrors(t *testing.T) {
	t.Run("listen failure", func(t *testing.T) {
		bindErr := errors.New("bind: address already in use")
		server := newFakeHTTPServer()
		server.listenErr = bindErr

		err := NewHTTPServerService(server, ":0", time.Second).Serve(context.Background())
		if !errors.Is(err, bindErr) {
			t.Errorf("Serve() = %v, want %v", err, bindErr)
		}
	})

	t.Run("shutdown failure", func(t *testing.T) {
		shutdownErr := errors.New("shutdown timeout")
		server := newFakeHTTPServer()
		server.shutdownErr = shutdownErr
		svc := NewHTTPServerService(server, ":0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		<-server.started
		cancel()

		if err := <-errCh; !errors.Is(err, shutdownErr) {
			t.Errorf("Serve() = %v, want %v", err, shutdownErr)
		}
	})

	t.Run("default timeout", func(t *testing.T) {
		if svc := NewHTTPServerService(newFakeHTTPServer(), ":0", 0); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("shutdownTimeout = %v, want 10s", svc.shutdownTimeout)
		}
	})
}

type fakeFlowStore struct {
	removed int
	err     error
	calls   atomic.Int32
}

func (f *fakeFlowStore) CleanupExpired(context.Context) (int, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

type fakeCache struct{ calls atomic.Int32 }

func (f *fakeCache) Cleanup() int {
	f.calls.Add(1)
	return 2
}

func TestMaintenanceRunOnce(t *testing.T) {
	store := &fakeFlowStore{removed: 3}
	roles := &fakeCache{}
	before := testutil.ToFloat64(metrics.FlowStoreCleanupRemoved)

	svc := NewMaintenanceService(time.Hour, FlowCleanupTask(store), CacheCleanupTask("role-cache", roles))
	svc.RunOnce(context.Background())

	if store.calls.Load() != 1 || roles.calls.Load() != 1 {
		t.Errorf("task calls = flow %d cache %d, want 1 each", store.calls.Load(), roles.calls.Load())
	}
	if got := testutil.ToFloat64(metrics.FlowStoreCleanupRemoved) - before; got != 3 {
		t.Errorf("cleanup metric delta = %v, want 3", got)
	}
}

func TestMaintenanceFailingTaskDoesNotStopOthers(t *testing.T) {
	store := &fakeFlowStore{err: errors.New("disk full")}
	roles := &fakeCache{}

	NewMaintenanceService(time.Hour, FlowCleanupTask(store), CacheCleanupTask("role-cache", roles)).RunOnce(context.Background())

	if roles.calls.Load() != 1 {
		t.Error("cache cleanup skipped after flow cleanup failed")
	}
}

func TestMaintenanceServeTicks(t *testing.T) {
	store := &fakeFlowStore{}
	svc := NewMaintenanceService(10*time.Millisecond, FlowCleanupTask(store))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want deadline exceeded", err)
	}
	if store.calls.Load() < 2 {
		t.Errorf("cleanup ran %d times, want several", store.calls.Load())
	}
}

func TestMaintenanceDefaultInterval(t *testing.T) {
	if svc := NewMaintenanceService(0); svc.interval != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", svc.interval)
	}
}
