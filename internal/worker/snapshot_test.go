package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"github.com/sakif/steam-arena/internal/model"
)

type fakeSnapshotter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSnapshotter) Snapshot(context.Context) (*model.SnapshotRun, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.SnapshotRun{RecordedAt: time.Now().UTC(), Created: 3}, nil
}

func TestSnapshot_Disabled(t *testing.T) {
	snap := &fakeSnapshotter{}
	err := NewSnapshot(snap, 0, discardLogger()).Serve(context.Background())
	assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	assert.Zero(t, snap.calls.Load())
}

func TestSnapshot_RunsOnInterval(t *testing.T) {
	snap := &fakeSnapshotter{}
	s := NewSnapshot(snap, 50*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return snap.calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestSnapshot_FailureKeepsScheduling(t *testing.T) {
	snap := &fakeSnapshotter{err: errors.New("disk full")}
	s := NewSnapshot(snap, 50*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	require.Eventually(t, func() bool { return snap.calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestSnapshot_String(t *testing.T) {
	assert.Equal(t, "playtime-snapshot", NewSnapshot(&fakeSnapshotter{}, time.Hour, discardLogger()).String())
}
