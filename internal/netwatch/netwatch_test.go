package netwatch

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newWatcher(t *testing.T) *Watcher {
	t.Helper()
	w := NewWatcher(zaptest.NewLogger(t))
	w.Interval = 5 * time.Millisecond
	return w
}

func send(w *Watcher, id, url string) {
	w.observe(&network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: url},
	})
}

func finish(w *Watcher, id string) {
	w.observe(&network.EventLoadingFinished{RequestID: network.RequestID(id)})
}

func TestPendingTracksRequestLifecycle(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	assert.Equal(t, 0, w.Pending())

	send(w, "r1", "https://app.test/api/users")
	send(w, "r2", "https://app.test/api/orders")
	assert.Equal(t, 2, w.Pending())

	finish(w, "r1")
	assert.Equal(t, 1, w.Pending())

	w.observe(&network.EventLoadingFailed{
		RequestID: "r2",
		ErrorText: "net::ERR_CONNECTION_RESET",
	})
	assert.Equal(t, 0, w.Pending())
}

func TestRedirectHopsCountOnce(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	send(w, "r1", "https://app.test/old")
	send(w, "r1", "https://app.test/new")
	assert.Equal(t, 1, w.Pending())

	finish(w, "r1")
	assert.Equal(t, 0, w.Pending())
}

func TestDataURLsAreNotTracked(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	send(w, "r1", "data:image/png;base64,iVBORw0KGgo=")
	assert.Equal(t, 0, w.Pending())
}

func TestFinishForUnknownRequestIsHarmless(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	finish(w, "ghost")
	assert.Equal(t, 0, w.Pending())
}

func TestStaleEntriesStopCounting(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)
	w.StaleAfter = 10 * time.Millisecond

	// An event-source stream never emits a loading-finished event.
	send(w, "r1", "https://app.test/events")
	require.Equal(t, 1, w.Pending())

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, 0, w.Pending())
}

func TestWaitIdleReturnsOnceQuiet(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	send(w, "r1", "https://app.test/api/slow")
	timer := time.AfterFunc(20*time.Millisecond, func() { finish(w, "r1") })
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.WaitIdle(ctx, 30*time.Millisecond))
	assert.Equal(t, 0, w.Pending())
}

func TestWaitIdleHonorsContext(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	send(w, "r1", "https://app.test/stream")

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	err := w.WaitIdle(ctx, time.Hour)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopClearsAndMutes(t *testing.T) {
	t.Parallel()
	w := newWatcher(t)

	send(w, "r1", "https://app.test/api")
	require.Equal(t, 1, w.Pending())

	w.Stop()
	assert.Equal(t, 0, w.Pending())

	send(w, "r2", "https://app.test/late")
	assert.Equal(t, 0, w.Pending())

	w.Stop()
}
