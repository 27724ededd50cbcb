package worker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "localhost:-1", Handler: http.NotFoundHandler()}

	err := Serve(context.Background(), discardLogger(), "bad", srv)
	require.Error(t, err)
	assert.NotErrorIs(t, err, http.ErrServerClosed)
}

func TestServe_WaitsForInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := &http.Server{Addr: "localhost:19095", Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, discardLogger(), "slow", srv) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:19095/missing")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	respCh := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://localhost:19095/slow")
		if err != nil {
			respCh <- 0
			return
		}
		_ = resp.Body.Close()
		respCh <- resp.StatusCode
	}()

	<-started
	cancel()

	assert.Equal(t, http.StatusNoContent, <-respCh, "in-flight request completes")
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}
