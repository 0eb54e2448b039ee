package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/dom/domtest"
)

// -- ExpectedOutcome --

func TestExpectedOutcomeValidate(t *testing.T) {
	tests := []struct {
		name    string
		outcome ExpectedOutcome
		ok      bool
	}{
		{"appear by selector", ExpectedOutcome{Kind: OutcomeAppear, Selector: ".toast"}, true},
		{"appear by text", ExpectedOutcome{Kind: OutcomeAppear, Text: "Saved"}, true},
		{"appear without locator", ExpectedOutcome{Kind: OutcomeAppear}, false},
		{"disappear without locator", ExpectedOutcome{Kind: OutcomeDisappear, Text: "  "}, false},
		{"url contains", ExpectedOutcome{Kind: OutcomeURLContains, Value: "/done"}, true},
		{"url contains empty", ExpectedOutcome{Kind: OutcomeURLContains}, false},
		{"url changes", ExpectedOutcome{Kind: OutcomeURLChanges}, true},
		{"attr equals", ExpectedOutcome{Kind: OutcomeAttrEquals, Attr: "aria-expanded", Value: "true"}, true},
		{"attr equals without name", ExpectedOutcome{Kind: OutcomeAttrEquals, Value: "true"}, false},
		{"unknown kind", ExpectedOutcome{Kind: "explodes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.outcome.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpectedOutcomeCheck(t *testing.T) {
	page := domtest.MustNew(`<html><body>
		<button id="open" aria-expanded="false">Open</button>
		<div id="toast" style="display:none">Saved successfully</div>
	</body></html>`)
	ctx := context.Background()
	btn := page.El("#open")

	appear := ExpectedOutcome{Kind: OutcomeAppear, Selector: "#toast"}
	ok, err := appear.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.False(t, ok)

	page.SetAttr("#toast", "style", "display:block")
	ok, err = appear.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.True(t, ok)

	byText := ExpectedOutcome{Kind: OutcomeAppear, Text: "Saved successfully"}
	ok, err = byText.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.True(t, ok)

	gone := ExpectedOutcome{Kind: OutcomeDisappear, Selector: "#toast"}
	ok, err = gone.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.False(t, ok)
	page.Remove("#toast")
	ok, err = gone.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.True(t, ok)

	attr := ExpectedOutcome{Kind: OutcomeAttrEquals, Attr: "aria-expanded", Value: "true"}
	ok, err = attr.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.False(t, ok)
	page.SetAttr("#open", "aria-expanded", "true")
	ok, err = attr.Check(ctx, page, btn, "")
	require.NoError(t, err)
	assert.True(t, ok)

	before, err := page.URL(ctx)
	require.NoError(t, err)
	changed := ExpectedOutcome{Kind: OutcomeURLChanges}
	ok, err = changed.Check(ctx, page, btn, before)
	require.NoError(t, err)
	assert.False(t, ok)

	page.Navigate("https://example.test/checkout/done")
	ok, err = changed.Check(ctx, page, btn, before)
	require.NoError(t, err)
	assert.True(t, ok)

	contains := ExpectedOutcome{Kind: OutcomeURLContains, Value: "/checkout"}
	ok, err = contains.Check(ctx, page, btn, before)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpectedOutcomeCheckDetachedTarget(t *testing.T) {
	page := domtest.MustNew(`<html><body><button id="b" data-step="1">Go</button></body></html>`)
	btn := page.El("#b")
	page.Remove("#b")

	attr := ExpectedOutcome{Kind: OutcomeAttrEquals, Attr: "data-step", Value: "2"}
	ok, err := attr.Check(context.Background(), page, btn, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// -- Named waits --

func TestWaitAppearSeesLateElement(t *testing.T) {
	page := domtest.MustNew(`<html><body><div id="slot"></div></body></html>`)
	w := fastWaiter(t)

	timer := time.AfterFunc(20*time.Millisecond, func() {
		page.AppendHTML("#slot", `<div class="toast">Saved</div>`)
	})
	defer timer.Stop()

	err := w.WaitAppear(context.Background(), page, 500*time.Millisecond, ".toast", "")
	require.NoError(t, err)
}

func TestWaitDisappear(t *testing.T) {
	page := domtest.MustNew(`<html><body><div class="spinner">Loading</div></body></html>`)
	w := fastWaiter(t)

	timer := time.AfterFunc(20*time.Millisecond, func() {
		page.Remove(".spinner")
	})
	defer timer.Stop()

	err := w.WaitDisappear(context.Background(), page, 500*time.Millisecond, ".spinner", "")
	require.NoError(t, err)

	// Never-present targets satisfy the wait immediately.
	err = w.WaitDisappear(context.Background(), page, 50*time.Millisecond, ".ghost", "")
	require.NoError(t, err)
}

func TestWaitURLChange(t *testing.T) {
	page := domtest.MustNew(`<html><body></body></html>`)
	w := fastWaiter(t)
	ctx := context.Background()

	from, err := page.URL(ctx)
	require.NoError(t, err)

	timer := time.AfterFunc(20*time.Millisecond, func() {
		page.Navigate("https://example.test/next")
	})
	defer timer.Stop()

	require.NoError(t, w.WaitURLChange(ctx, page, 500*time.Millisecond, from))

	err = w.WaitURLChange(ctx, page, 40*time.Millisecond, "https://example.test/next")
	assert.ErrorIs(t, err, ErrTimeout)
}
