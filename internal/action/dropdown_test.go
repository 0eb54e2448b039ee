package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/dom/domtest"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/pattern"
)

func assertHidden(t *testing.T, p *domtest.Page, selector string) {
	t.Helper()
	snap, err := p.El(selector).Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, gate.Visible(snap), "%s should be hidden", selector)
}

func TestSelectDropdownNativeSelect(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<select id="country">
			<option value="us">USA</option>
			<option value="ca">Canada</option>
			<option value="mx">Mexico</option>
		</select>
	</body></html>`)
	ctx := context.Background()

	res := x.SelectDropdown(ctx, p, p.El("#country"), pattern.DropdownData{Option: "Canada"})

	require.True(t, res.OK)
	assert.Equal(t, "native-select", res.Method)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Verified)

	snap, err := p.El("#country").Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ca", snap.Value)
}

func TestSelectDropdownNativeMissListsOptions(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<select id="country">
			<option value="us">USA</option>
			<option value="ca">Canada</option>
		</select>
	</body></html>`)

	res := x.SelectDropdown(context.Background(), p, p.El("#country"), pattern.DropdownData{Option: "Narnia"})

	require.False(t, res.OK)
	assert.Equal(t, FailActionFailed, res.Failure)
	assert.Contains(t, res.Reason, `"Narnia"`)
	assert.ElementsMatch(t, []string{"USA", "Canada"}, res.Options)
}

func TestSelectDropdownCustomWidget(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="country" role="combobox" aria-controls="menu" aria-expanded="false" tabindex="0">Choose country</div>
		<ul id="menu" role="listbox" style="display:none">
			<li id="opt-us" role="option">USA</li>
			<li id="opt-ca" role="option">Canada</li>
			<li id="opt-mx" role="option">Mexico</li>
		</ul>
	</body></html>`)
	p.OnClick("#country", func() {
		p.SetAttr("#menu", "style", "")
		p.SetAttr("#country", "aria-expanded", "true")
	})
	p.OnClick("#opt-ca", func() {
		p.SetAttr("#menu", "style", "display:none")
		p.SetAttr("#country", "aria-expanded", "false")
		p.SetText("#country", "Canada")
	})
	ctx := context.Background()

	res := x.SelectDropdown(ctx, p, p.El("#country"), pattern.DropdownData{Option: "Canada"})

	require.True(t, res.OK)
	assert.Equal(t, "select:click", res.Method)

	snap, err := p.El("#country").Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Text, "Canada")
	assertHidden(t, p, "#menu")
}

func TestSelectDropdownMissingOptionClosesMenu(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="country" role="combobox" aria-controls="menu" tabindex="0">Choose country</div>
		<ul id="menu" role="listbox" style="display:none">
			<li role="option">USA</li>
			<li role="option">Canada</li>
			<li role="option">Mexico</li>
		</ul>
	</body></html>`)
	p.OnClick("#country", func() { p.SetAttr("#menu", "style", "") })
	p.OnKey("#country", "Escape", func() { p.SetAttr("#menu", "style", "display:none") })

	res := x.SelectDropdown(context.Background(), p, p.El("#country"), pattern.DropdownData{Option: "Narnia"})

	require.False(t, res.OK)
	assert.Equal(t, FailActionFailed, res.Failure)
	assert.Contains(t, res.Reason, `option "Narnia" not among 3 visible options`)
	assert.ElementsMatch(t, []string{"USA", "Canada", "Mexico"}, res.Options)
	assertHidden(t, p, "#menu")
}

func TestSelectDropdownVirtualizedRescan(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="lang" role="combobox" aria-controls="langs" tabindex="0">Language</div>
		<ul id="langs" role="listbox" style="display:none">
			<li role="option">Alpha</li>
			<li role="option">Bravo</li>
		</ul>
	</body></html>`)
	p.OnClick("#lang", func() { p.SetAttr("#langs", "style", "") })
	p.OnClick("#langs li", func() { p.SetAttr("#langs", "style", "display:none") })

	// A virtualized list renders the target only after scrolling.
	timer := time.AfterFunc(30*time.Millisecond, func() {
		p.AppendHTML("#langs", `<li id="opt-zulu" role="option">Zulu</li>`)
	})
	defer timer.Stop()

	res := x.SelectDropdown(context.Background(), p, p.El("#lang"), pattern.DropdownData{
		Option: "Zulu",
		Hints:  pattern.MenuHints{Virtualized: true},
	})

	require.True(t, res.OK)
	assert.Equal(t, "select:click", res.Method)
	assertHidden(t, p, "#langs")
}

func TestSelectDropdownOpenFailure(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="dead" role="combobox" tabindex="0">Pick one</div>
	</body></html>`)

	res := x.SelectDropdown(context.Background(), p, p.El("#dead"), pattern.DropdownData{Option: "Anything"})

	require.False(t, res.OK)
	assert.Equal(t, FailActionFailed, res.Failure)
	assert.Contains(t, res.Reason, "menu never opened")
	assert.Len(t, res.Attempts, 6, "every open strategy must be tried")
}

func TestSelectMultiReusesOpenMenu(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<div id="tags" role="combobox" aria-controls="tagmenu" aria-expanded="false" tabindex="0">Tags</div>
		<ul id="tagmenu" role="listbox" style="display:none">
			<li id="t-red" role="option" aria-selected="false">Red</li>
			<li id="t-blue" role="option" aria-selected="false">Blue</li>
			<li id="t-green" role="option" aria-selected="false">Green</li>
		</ul>
	</body></html>`)
	p.OnClick("#tags", func() {
		p.SetAttr("#tagmenu", "style", "")
		p.SetAttr("#tags", "aria-expanded", "true")
	})
	p.OnClick("#t-red", func() { p.SetAttr("#t-red", "aria-selected", "true") })
	p.OnClick("#t-blue", func() { p.SetAttr("#t-blue", "aria-selected", "true") })
	p.OnKey("#tags", "Escape", func() {
		p.SetAttr("#tagmenu", "style", "display:none")
		p.SetAttr("#tags", "aria-expanded", "false")
	})
	ctx := context.Background()

	res := x.SelectMulti(ctx, p, p.El("#tags"), pattern.MultiSelectData{Options: []string{"Red", "Blue"}})

	require.True(t, res.OK)
	for _, id := range []string{"#t-red", "#t-blue"} {
		snap, err := p.El(id).Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, "true", snap.Attr("aria-selected"), id)
	}
	assertHidden(t, p, "#tagmenu")

	// The widget kept its menu open between picks, so exactly one open
	// strategy should appear among the attempts.
	opens := 0
	for _, a := range res.Attempts {
		if a.Strategy == "open:click" {
			opens++
		}
	}
	assert.Equal(t, 1, opens)
}

func TestAutocompletePicksSuggestion(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="city" role="combobox">
		<ul id="sugg" role="listbox" style="display:none">
			<li id="s-par" role="option">Paris</li>
			<li id="s-pam" role="option">Pamplona</li>
		</ul>
	</body></html>`)
	ctx := context.Background()
	p.OnEvent("#city", "input", func() {
		snap, err := p.El("#city").Snapshot(ctx)
		if err == nil && snap.Value != "" {
			p.SetAttr("#sugg", "style", "")
		}
	})
	p.OnClick("#s-par", func() {
		_ = p.El("#city").SetValue(ctx, "Paris")
		p.SetAttr("#sugg", "style", "display:none")
	})

	res := x.Autocomplete(ctx, p, p.El("#city"), pattern.AutocompleteData{Query: "Par", Option: "Paris"})

	require.True(t, res.OK)
	snap, err := p.El("#city").Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Paris", snap.Value)
	assertHidden(t, p, "#sugg")
}

func TestAutocompleteAcceptsFirstSuggestion(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="city" role="combobox">
		<ul id="sugg" role="listbox" style="display:none">
			<li id="s-lis" role="option">Lisbon</li>
			<li id="s-lon" role="option">London</li>
		</ul>
	</body></html>`)
	ctx := context.Background()
	p.OnEvent("#city", "input", func() { p.SetAttr("#sugg", "style", "") })
	p.OnClick("#s-lis", func() {
		_ = p.El("#city").SetValue(ctx, "Lisbon")
		p.SetAttr("#sugg", "style", "display:none")
	})

	// No recorded option: the first suggestion wins.
	res := x.Autocomplete(ctx, p, p.El("#city"), pattern.AutocompleteData{Query: "L"})

	require.True(t, res.OK)
	snap, err := p.El("#city").Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", snap.Value)
}

func TestAutocompleteMissingSuggestion(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="city" role="combobox">
		<ul id="sugg" role="listbox" style="display:none">
			<li role="option">Paris</li>
		</ul>
	</body></html>`)
	ctx := context.Background()
	p.OnEvent("#city", "input", func() { p.SetAttr("#sugg", "style", "") })
	p.OnKey("#city", "Escape", func() { p.SetAttr("#sugg", "style", "display:none") })

	res := x.Autocomplete(ctx, p, p.El("#city"), pattern.AutocompleteData{Query: "Ber", Option: "Berlin"})

	require.False(t, res.OK)
	assert.Contains(t, res.Reason, `"Berlin"`)
	assert.Contains(t, res.Options, "Paris")
	assertHidden(t, p, "#sugg")
}
