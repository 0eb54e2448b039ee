package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/dom/domtest"
	"github.com/nathanhui97/autoflow/internal/pattern"
)

func TestToggleChecksNativeCheckbox(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="news" type="checkbox">
	</body></html>`)
	ctx := context.Background()

	res := x.Toggle(ctx, p, p.El("#news"), pattern.ToggleData{State: pattern.ToggleOn})

	require.True(t, res.OK)
	assert.Equal(t, "native-click", res.Method)
	snap, err := p.El("#news").Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Checked)
}

func TestToggleAlreadyOnIsANoOp(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="news" type="checkbox" checked>
	</body></html>`)
	ctx := context.Background()

	res := x.Toggle(ctx, p, p.El("#news"), pattern.ToggleData{State: pattern.ToggleOn})

	require.True(t, res.OK)
	assert.Equal(t, "already-on", res.Method)
	assert.Empty(t, res.Attempts, "a satisfied toggle must not touch the page")
	assert.Empty(t, p.Mice())
	assert.Empty(t, p.Keys())

	snap, err := p.El("#news").Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Checked, "state must be untouched")
}

func TestToggleFlipAlwaysActivates(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="news" type="checkbox" checked>
	</body></html>`)
	ctx := context.Background()

	res := x.Toggle(ctx, p, p.El("#news"), pattern.ToggleData{State: pattern.ToggleFlip})

	require.True(t, res.OK)
	assert.Equal(t, "native-click", res.Method)
	snap, err := p.El("#news").Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Checked)
}

func TestToggleReadsAriaPressed(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<button id="mute" aria-pressed="false">Mute</button>
	</body></html>`)
	p.OnClick("#mute", func() { p.SetAttr("#mute", "aria-pressed", "true") })
	ctx := context.Background()

	res := x.Toggle(ctx, p, p.El("#mute"), pattern.ToggleData{State: pattern.ToggleOn})

	require.True(t, res.OK)
	snap, err := p.El("#mute").Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "true", snap.Attr("aria-pressed"))
}

func TestToggleRetargetsClickButVerifiesOriginal(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<label id="wrap" tabindex="0"><input id="cb" type="checkbox" style="display:none"><span>Subscribe</span></label>
	</body></html>`)
	ctx := context.Background()

	// Styled-checkbox pattern: the input is hidden and the label forwards
	// activation to it. The forwarded click bubbles back through the label,
	// so the shim guards against re-entry the way real labels do.
	forwarding := false
	p.OnClick("#wrap", func() {
		if forwarding {
			return
		}
		forwarding = true
		defer func() { forwarding = false }()
		_ = p.El("#cb").Click(ctx)
	})

	res := x.Toggle(ctx, p, p.El("#cb"), pattern.ToggleData{State: pattern.ToggleOn})

	require.True(t, res.OK, "gate veto on the hidden input must climb to the label")
	snap, err := p.El("#cb").Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Checked, "verification reads the input, not the label")
}

func TestToggleOpaqueWidgetVerifiesByChange(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="theme" class="switch" tabindex="0">Dark mode</div>
	</body></html>`)
	p.OnClick("#theme", func() { p.SetAttr("#theme", "class", "switch on") })
	ctx := context.Background()

	res := x.Toggle(ctx, p, p.El("#theme"), pattern.ToggleData{State: pattern.ToggleFlip})

	require.True(t, res.OK, "widgets without readable state verify by any observable change")
	snap, err := p.El("#theme").Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Classes(), "on")
}

func TestToggleFailsWhenStateNeverReached(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="notify" role="switch" aria-checked="true" tabindex="0">Notifications</div>
	</body></html>`)

	// Nothing reacts to clicks, so aria-checked stays true forever.
	res := x.Toggle(context.Background(), p, p.El("#notify"), pattern.ToggleData{State: pattern.ToggleOff})

	require.False(t, res.OK)
	assert.Equal(t, FailActionFailed, res.Failure)
	assert.Contains(t, res.Reason, "off")
	assert.Len(t, res.Attempts, 6)
}
