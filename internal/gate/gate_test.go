package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/dom/domtest"
)

func check(t *testing.T, p *domtest.Page, selector string) Report {
	t.Helper()
	c := NewChecker(zaptest.NewLogger(t))
	r, err := c.Check(context.Background(), p, p.El(selector))
	require.NoError(t, err)
	return r
}

func TestCheckPasses(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><button id="go" data-rect="10,10,100,30">Go</button></body></html>`)
	r := check(t, p, "#go")
	assert.True(t, r.OK)
	assert.Empty(t, r.Notes)
}

func TestStyleVetoes(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body>
		<div style="display:none"><button id="hidden-display">A</button></div>
		<button id="hidden-vis" style="visibility:hidden" data-rect="10,50,80,20">B</button>
		<div style="opacity:0"><button id="transparent" data-rect="10,80,80,20">C</button></div>
		<button id="flat" data-rect="10,110,0,0">D</button>
	</body></html>`)

	cases := []struct {
		selector string
		code     Code
	}{
		{"#hidden-display", CodeDisplayNone},
		{"#hidden-vis", CodeHidden},
		{"#transparent", CodeTransparent},
		{"#flat", CodeZeroSize},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			r := check(t, p, tc.selector)
			require.False(t, r.OK)
			assert.Equal(t, tc.code, r.Code)
			assert.NotEmpty(t, r.Reason)
			assert.NotEmpty(t, r.Remedy)
		})
	}
}

func TestVetoOrderIsStable(t *testing.T) {
	t.Parallel()
	// display:none wins over disabled: the first check in the chain reports.
	p := domtest.MustNew(`<html><body><button id="b" disabled style="display:none">X</button></body></html>`)
	r := check(t, p, "#b")
	require.False(t, r.OK)
	assert.Equal(t, CodeDisplayNone, r.Code)
}

func TestViewportScrollRecovery(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><button id="far" data-rect="10,2000,100,30">Down</button></body></html>`)
	r := check(t, p, "#far")
	assert.True(t, r.OK, "one scroll attempt should recover an off-screen element")
}

func TestViewportVetoWithoutScroll(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><button id="far" data-rect="10,2000,100,30">Down</button></body></html>`)
	c := NewChecker(nil)
	c.AutoScroll = false
	r, err := c.Check(context.Background(), p, p.El("#far"))
	require.NoError(t, err)
	require.False(t, r.OK)
	assert.Equal(t, CodeOffViewport, r.Code)
}

func TestViewportVetoWhenScrollCannotHelp(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><button id="pinned" data-fixed data-rect="10,2000,100,30">Pinned</button></body></html>`)
	r := check(t, p, "#pinned")
	require.False(t, r.OK)
	assert.Equal(t, CodeOffViewport, r.Code)
}

func TestDisabledVetoes(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body>
		<button id="attr" disabled data-rect="10,10,80,20">A</button>
		<button id="aria" aria-disabled="true" data-rect="10,40,80,20">B</button>
		<button id="class" class="btn btn-disabled" data-rect="10,70,80,20">C</button>
		<button id="pe" style="pointer-events:none" data-rect="10,100,80,20">D</button>
		<fieldset disabled><input id="fenced" type="text" data-rect="10,130,80,20"></fieldset>
	</body></html>`)

	for _, sel := range []string{"#attr", "#aria", "#class", "#pe", "#fenced"} {
		t.Run(sel, func(t *testing.T) {
			r := check(t, p, sel)
			require.False(t, r.OK, "%s should be vetoed", sel)
			assert.Equal(t, CodeDisabled, r.Code)
		})
	}
}

func TestObscuredByOverlay(t *testing.T) {
	t.Parallel()
	// An invisible modal scrim intercepts clicks without hiding the button.
	p := domtest.MustNew(`<html><body>
		<button id="buy" data-rect="100,100,100,30">Buy</button>
		<div id="scrim" data-rect="0,0,500,500" data-z="10" style="opacity:0"></div>
	</body></html>`)
	r := check(t, p, "#buy")
	require.False(t, r.OK)
	assert.Equal(t, CodeObscured, r.Code)
	assert.Contains(t, r.Reason, "scrim")

	p.Remove("#scrim")
	r = check(t, p, "#buy")
	assert.True(t, r.OK)
}

func TestObscuredToleratesOwnParts(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body>
		<button id="btn" data-rect="10,10,100,30"><span id="icon" data-rect="10,10,100,30">*</span></button>
		<div id="wrap" role="button" tabindex="0" data-rect="10,60,100,30">
			<span id="skin-a" data-rect="10,60,100,30"></span>
			<span id="skin-b" data-rect="10,60,100,30" data-z="1"></span>
		</div>
	</body></html>`)

	// The icon paints over the button's center: a descendant, tolerated.
	r := check(t, p, "#btn")
	assert.True(t, r.OK)

	// skin-b paints over skin-a, but both live under the same clickable
	// wrapper.
	r = check(t, p, "#skin-a")
	assert.True(t, r.OK)
}

func TestAdvisoryNoteForImplausibleTag(t *testing.T) {
	t.Parallel()
	p := domtest.MustNew(`<html><body><div id="plain" data-rect="10,10,100,30">Just text</div></body></html>`)
	r := check(t, p, "#plain")
	require.True(t, r.OK, "advisory findings never block")
	require.Len(t, r.Notes, 1)
	assert.Contains(t, r.Notes[0], "div")
}

func TestVisibleSubset(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		snap dom.Snapshot
		want bool
	}{
		{"visible", dom.Snapshot{Display: "block", Visibility: "visible", Opacity: 1, Rect: dom.Rect{Width: 10, Height: 10}}, true},
		{"display none", dom.Snapshot{Display: "none", Visibility: "visible", Opacity: 1, Rect: dom.Rect{Width: 10, Height: 10}}, false},
		{"hidden", dom.Snapshot{Display: "block", Visibility: "hidden", Opacity: 1, Rect: dom.Rect{Width: 10, Height: 10}}, false},
		{"transparent", dom.Snapshot{Display: "block", Visibility: "visible", Opacity: 0, Rect: dom.Rect{Width: 10, Height: 10}}, false},
		{"flat", dom.Snapshot{Display: "block", Visibility: "visible", Opacity: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Visible(tc.snap))
		})
	}
}
