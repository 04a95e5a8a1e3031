package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{Type: "x"})
	require.Error(t, err)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}
	q := NewQueue("retry", handler, QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "mail"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQueueDropsAfterMaxRetriesAndRecoversPanics(t *testing.T) {
	var mu sync.Mutex
	var dropped []Job
	dropCh := make(chan struct{})
	handler := func(ctx context.Context, job Job) error {
		panic("boom")
	}
	q := NewQueue("drop", handler, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnDrop: func(j Job, err error) {
			mu.Lock()
			dropped = append(dropped, j)
			mu.Unlock()
			close(dropCh)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "mail"}))
	select {
	case <-dropCh:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dropped")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, "job-1", dropped[0].ID)
	assert.Equal(t, 2, dropped[0].Attempt)
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{Type: "a"}))
	var full bool
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(Job{Type: "b"}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)
}
