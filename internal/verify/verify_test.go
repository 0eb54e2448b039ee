package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/nathanhui97/autoflow/internal/dom/domtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastWaiter(t *testing.T) *Waiter {
	t.Helper()
	w := NewWaiter(zaptest.NewLogger(t))
	w.Interval = 5 * time.Millisecond
	return w
}

func TestWaitForSucceeds(t *testing.T) {
	t.Parallel()
	w := fastWaiter(t)
	calls := 0
	err := w.WaitFor(context.Background(), time.Second, "third poll", func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitForTimesOut(t *testing.T) {
	t.Parallel()
	w := fastWaiter(t)
	err := w.WaitFor(context.Background(), 30*time.Millisecond, "the impossible", func(context.Context) (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "the impossible")
}

func TestWaitForHonorsContext(t *testing.T) {
	t.Parallel()
	w := fastWaiter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.WaitFor(ctx, time.Second, "never", func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForPropagatesProbeError(t *testing.T) {
	t.Parallel()
	w := fastWaiter(t)
	boom := errors.New("boom")
	err := w.WaitFor(context.Background(), time.Second, "x", func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWaitQuiescentSettles(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><div id="d">x</div></body></html>`)
	w := fastWaiter(t)

	start := time.Now()
	err := w.WaitQuiescent(context.Background(), p, QuiesceSpec{
		Quiet:   30 * time.Millisecond,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitQuiescentTimesOutUnderChurn(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><div id="d">x</div></body></html>`)
	w := fastWaiter(t)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				p.Bump()
			}
		}
	}()

	err := w.WaitQuiescent(context.Background(), p, QuiesceSpec{
		Quiet:   40 * time.Millisecond,
		Timeout: 150 * time.Millisecond,
	})
	close(done)
	<-stopped
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

type fakeNet struct{ pending atomic.Int32 }

func (f *fakeNet) Pending() int { return int(f.pending.Load()) }

func TestWaitQuiescentWaitsForNetwork(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body></body></html>`)
	w := fastWaiter(t)

	net := &fakeNet{}
	net.pending.Store(2)
	timer := time.AfterFunc(60*time.Millisecond, func() { net.pending.Store(0) })
	defer timer.Stop()

	start := time.Now()
	err := w.WaitQuiescent(context.Background(), p, QuiesceSpec{
		Quiet:   20 * time.Millisecond,
		Timeout: time.Second,
		Net:     net,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond,
		"settle must wait for pending requests to drain")
}

func TestCaptureAndDiff(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body>
		<input id="q" type="text" value="old">
		<div id="gone">bye</div>
	</body></html>`)
	ctx := context.Background()

	el := p.El("#q")
	before, err := CaptureState(ctx, el)
	require.NoError(t, err)
	require.True(t, before.Exists)
	assert.Equal(t, "old", before.Value)

	require.NoError(t, el.SetValue(ctx, "new"))
	require.NoError(t, el.Focus(ctx))
	after, err := CaptureState(ctx, el)
	require.NoError(t, err)

	diff := before.Diff(after)
	assert.Contains(t, diff, `value "old" -> "new"`)
	assert.Contains(t, diff, "gained focus")
	assert.True(t, before.Changed(after))

	doomed := p.El("#gone")
	b2, err := CaptureState(ctx, doomed)
	require.NoError(t, err)
	p.Remove("#gone")
	a2, err := CaptureState(ctx, doomed)
	require.NoError(t, err)
	assert.False(t, a2.Exists)
	assert.Equal(t, []string{"element left the document"}, b2.Diff(a2))
}

func TestVisibleProbes(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body>
		<div id="shown" data-rect="0,0,100,20">Order complete</div>
		<div id="masked" style="display:none">Secret phrase</div>
	</body></html>`)
	ctx := context.Background()

	ok, err := VisibleBySelector(ctx, p, "#shown")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VisibleBySelector(ctx, p, "#masked")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VisibleBySelector(ctx, p, "#absent")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VisibleByText(ctx, p, "Order complete")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VisibleByText(ctx, p, "Secret phrase")
	require.NoError(t, err)
	assert.False(t, ok, "text hidden by style is not rendered")

	ok, err = VisibleByText(ctx, p, "Not on page")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestXPathLiteral(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"plain", "'plain'"},
		{"it's", `"it's"`},
		{`say "hi"`, `'say "hi"'`},
		{`both ' and "`, `concat('both ', "'", ' and "')`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, xpathLiteral(tc.in), "xpathLiteral(%q)", tc.in)
	}
}
