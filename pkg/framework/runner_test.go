package framework

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerFirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner().Go(
		NamedRun("blocker", RunFunc(blockUntilDone)),
		RunFunc(func(context.Context) error { return boom }),
	)
	err := r.Wait()
	require.ErrorIs(t, err, boom)
	require.Equal(t, "boom", err.Error())
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner().Go(RunFunc(blockUntilDone), RunFunc(blockUntilDone))
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestRunnerAllSucceed(t *testing.T) {
	var n int32
	fn := RunFunc(func(context.Context) error {
		atomic.AddInt32(&n, 1)
		return nil
	})
	require.NoError(t, NewRunner().Go(fn, fn, fn).Wait())
	require.Equal(t, int32(3), n)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, context.Canceled).Aggregate())
	a, b := errors.New("a"), errors.New("b")
	err := errs.Add(a, b).Aggregate()
	require.ErrorIs(t, err, b)
	require.Equal(t, "multiple errors:\n  a\n  b", err.Error())
}

type closeCounter struct {
	n int32
}

func (c *closeCounter) Close() error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &closeCounter{}
	require.NoError(t, RunWithContextCloser(context.Background(), c, func() error { return nil }))
	require.Equal(t, int32(1), c.n)

	c = &closeCounter{}
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	go cancel()
	err := RunWithContextCloser(ctx, closerFunc(func() error {
		c.Close()
		close(unblock)
		return nil
	}), func() error {
		<-unblock
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, int32(1), c.n)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
