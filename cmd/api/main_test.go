package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/pratik-mahalle/wiman/internal/testutil"
)

func TestServe_ListenFailureStillDrains(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer taken.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	drained := false
	drain := func(context.Context) {
		if ctx.Err() == nil {
			t.Error("workers drained before their context was cancelled")
		}
		drained = true
	}

	server := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	err = serve(ctx, stop, server, time.Second, drain, testutil.NewTestLogger())
	if err == nil {
		t.Fatal("serve() error = nil, want the listen failure")
	}
	if !drained {
		t.Error("serve() returned without draining the workers")
	}
}

func TestServe_SignalShutsDown(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())

	drained := make(chan struct{})
	drain := func(context.Context) { close(drained) }

	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, stop, server, time.Second, drain, testutil.NewTestLogger()) }()

	stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancellation")
	}
	select {
	case <-drained:
	default:
		t.Error("serve() returned without draining the workers")
	}
}
