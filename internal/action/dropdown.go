package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// dropdownState names how far the machine got; failures report it so a
// stalled step can be diagnosed without a recording.
type dropdownState string

const (
	stateClosed      dropdownState = "closed"
	stateOpening     dropdownState = "opening"
	stateOpen        dropdownState = "open"
	stateOptionFound dropdownState = "option_found"
	stateVerified    dropdownState = "verified"
)

// SelectDropdown drives one option pick through the full machine:
// Closed -> Opening -> Open -> OptionFound -> Verified. Native selects
// short-circuit through the platform mechanism. On failure the menu is
// closed again and the visible options are reported.
func (x *Executor) SelectDropdown(ctx context.Context, doc dom.Document, trigger dom.Element, data pattern.DropdownData) Result {
	return x.dropdown(ctx, doc, trigger, []string{data.Option}, data.Hints)
}

// SelectMulti picks several options in order. The menu is reopened between
// picks when the widget closes it, and always closed at the end.
func (x *Executor) SelectMulti(ctx context.Context, doc dom.Document, trigger dom.Element, data pattern.MultiSelectData) Result {
	return x.dropdown(ctx, doc, trigger, data.Options, data.Hints)
}

func (x *Executor) dropdown(ctx context.Context, doc dom.Document, trigger dom.Element, targets []string, hints pattern.MenuHints) Result {
	start := time.Now()

	snap, err := trigger.Snapshot(ctx)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}
	if snap.Tag == "select" {
		return x.nativeSelect(ctx, trigger, targets, start)
	}

	trigger, fail, ok := x.admit(ctx, doc, trigger, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	var attempts []Attempt
	var seen []string
	method := ""

	for _, target := range targets {
		menu, openAttempts, opened := x.ensureOpen(ctx, doc, trigger, hints)
		attempts = append(attempts, openAttempts...)
		if !opened {
			f := failure(ctx, FailActionFailed,
				fmt.Sprintf("menu never opened (state %s); %s", stateOpening, describeAttempts(attempts)))
			f.Attempts, f.Elapsed = attempts, time.Since(start)
			return f
		}

		opt, texts, found := x.locateOption(ctx, menu, hints, target)
		seen = union(seen, texts)
		if !found {
			x.closeMenu(ctx, doc, trigger, menu)
			f := failure(ctx, FailActionFailed,
				fmt.Sprintf("option %q not among %d visible options (state %s)", target, len(seen), stateOpen))
			f.Attempts, f.Options, f.Elapsed = attempts, seen, time.Since(start)
			return f
		}

		m, selAttempts, selected := x.selectOption(ctx, doc, trigger, menu, opt, target)
		attempts = append(attempts, selAttempts...)
		if !selected {
			x.closeMenu(ctx, doc, trigger, menu)
			f := failure(ctx, FailActionFailed,
				fmt.Sprintf("selection of %q never verified (state %s); %s", target, stateOptionFound, describeAttempts(selAttempts)))
			f.Attempts, f.Options, f.Elapsed = attempts, seen, time.Since(start)
			return f
		}
		method = m
	}

	// Never leave a menu open, success included: a later step would click
	// into the overlay instead of the page.
	if menu := x.findMenu(ctx, doc, trigger, hints); menu != nil {
		x.closeMenu(ctx, doc, trigger, menu)
	}
	return Result{OK: true, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
}

// nativeSelect picks options through the platform select mechanism, which
// either matches or does not; no polling needed.
func (x *Executor) nativeSelect(ctx context.Context, trigger dom.Element, targets []string, start time.Time) Result {
	var attempts []Attempt
	for _, target := range targets {
		aStart := time.Now()
		matched, err := trigger.SelectOption(ctx, target)
		a := Attempt{Strategy: "native-select", Elapsed: time.Since(aStart)}
		switch {
		case err != nil:
			a.Err = err.Error()
		case !matched:
			a.Err = fmt.Sprintf("no option matches %q", target)
		default:
			a.Verified = true
		}
		attempts = append(attempts, a)
		if a.Err != "" {
			options, _ := nativeOptions(ctx, trigger)
			f := failure(ctx, FailActionFailed, a.Err)
			f.Attempts, f.Options, f.Elapsed = attempts, options, time.Since(start)
			return f
		}
	}
	return Result{OK: true, Method: "native-select", Attempts: attempts, Elapsed: time.Since(start)}
}

// nativeOptions lists a select's option texts for failure diagnostics.
func nativeOptions(ctx context.Context, sel dom.Element) ([]string, error) {
	els, err := sel.QueryAll(ctx, "option")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, strings.TrimSpace(snap.Text))
	}
	return out, nil
}

// ensureOpen returns a visible menu, opening it when needed. An expanded
// trigger with a findable menu skips the ladder, so re-entry between multi
// picks is cheap.
func (x *Executor) ensureOpen(ctx context.Context, doc dom.Document, trigger dom.Element, hints pattern.MenuHints) (dom.Element, []Attempt, bool) {
	if snap, err := trigger.Snapshot(ctx); err == nil {
		if b := snap.AriaBool("aria-expanded"); b != nil && *b {
			if menu := x.findMenu(ctx, doc, trigger, hints); menu != nil {
				return menu, nil, true
			}
		}
	}

	var menu dom.Element
	cond := func(ctx context.Context) (bool, error) {
		menu = x.findMenu(ctx, doc, trigger, hints)
		return menu != nil, nil
	}
	ladder := []Strategy{
		{Name: "open:click", Run: trigger.Click},
		{Name: "open:focus-click", Run: func(ctx context.Context) error {
			if err := trigger.Focus(ctx); err != nil {
				return err
			}
			return trigger.Click(ctx)
		}},
		{Name: "open:key-enter", Run: x.pressNamed(trigger, "Enter")},
		{Name: "open:key-space", Run: x.pressNamed(trigger, "Space")},
		{Name: "open:key-arrowdown", Run: x.pressNamed(trigger, "ArrowDown")},
		{Name: "open:pointer", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, trigger, nil)
			if err != nil {
				return err
			}
			return pressRelease(ctx, trigger, px, py)
		}},
	}
	_, attempts, ok := x.runStrategies(ctx, "dropdown-open", ladder, x.cfg.menuWindow(), cond)
	return menu, attempts, ok
}

// menuSelectors lists where the detected library renders its menus, most
// specific first; the generic ARIA containers close the list. A trigger's
// aria-controls/aria-owns link is prepended by findMenu and always wins.
func menuSelectors(h pattern.MenuHints) []string {
	var sels []string
	if h.MenuSelector != "" {
		sels = append(sels, h.MenuSelector)
	}
	switch h.Library {
	case pattern.LibReactSelect:
		sels = append(sels, `[class*="__menu"]`, `[id^="react-select"][id$="-listbox"]`)
	case pattern.LibMUI:
		sels = append(sels, ".MuiPopover-paper", ".MuiMenu-paper", ".MuiAutocomplete-paper", `ul[role="listbox"]`)
	case pattern.LibAntDesign:
		sels = append(sels, ".ant-select-dropdown")
	case pattern.LibSelect2:
		sels = append(sels, ".select2-dropdown", ".select2-results")
	case pattern.LibChosen:
		sels = append(sels, ".chosen-drop")
	}
	return append(sels, `[role="listbox"]`, `[role="menu"]`, ".dropdown-menu")
}

func optionSelectors(h pattern.MenuHints) []string {
	var sels []string
	if h.OptionSelector != "" {
		sels = append(sels, h.OptionSelector)
	}
	switch h.Library {
	case pattern.LibReactSelect:
		sels = append(sels, `[class*="__option"]`)
	case pattern.LibMUI:
		sels = append(sels, `li[role="option"]`, ".MuiMenuItem-root")
	case pattern.LibAntDesign:
		sels = append(sels, ".ant-select-item-option")
	case pattern.LibSelect2:
		sels = append(sels, ".select2-results__option")
	case pattern.LibChosen:
		sels = append(sels, ".chosen-results li")
	}
	return append(sels, `[role="option"]`, `[role="menuitem"]`, "li")
}

// findMenu returns the first visible menu container, or nil.
func (x *Executor) findMenu(ctx context.Context, doc dom.Document, trigger dom.Element, hints pattern.MenuHints) dom.Element {
	sels := menuSelectors(hints)
	if snap, err := trigger.Snapshot(ctx); err == nil {
		if id := firstToken(snap.Attr("aria-controls")); id != "" {
			sels = append([]string{"#" + id}, sels...)
		} else if id := firstToken(snap.Attr("aria-owns")); id != "" {
			sels = append([]string{"#" + id}, sels...)
		}
	}
	for _, sel := range sels {
		els, err := doc.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			snap, err := el.Snapshot(ctx)
			if err != nil {
				continue
			}
			if gate.Visible(snap) {
				return el
			}
		}
	}
	return nil
}

type optionEntry struct {
	el   dom.Element
	text string
}

// collectOptions scans the menu with each option selector and keeps the
// first one that yields visible options, so library-specific markup is never
// diluted by the bare li fallback.
func (x *Executor) collectOptions(ctx context.Context, menu dom.Element, hints pattern.MenuHints) []optionEntry {
	for _, sel := range optionSelectors(hints) {
		els, err := menu.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		var out []optionEntry
		for _, el := range els {
			snap, err := el.Snapshot(ctx)
			if err != nil || !gate.Visible(snap) {
				continue
			}
			out = append(out, optionEntry{el: el, text: strings.TrimSpace(snap.Text)})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// locateOption finds the option matching target: exact, then normalized,
// then partial. An empty target takes the first option (autocomplete's
// accept-first-suggestion case). Virtualized menus are scrolled and
// re-scanned up to the configured attempts. The returned texts list every
// distinct option seen, for diagnostics.
func (x *Executor) locateOption(ctx context.Context, menu dom.Element, hints pattern.MenuHints, target string) (optionEntry, []string, bool) {
	var texts []string

	options := x.collectOptions(ctx, menu, hints)
	if len(options) == 0 {
		// The container can appear a beat before its options render.
		_ = x.wait.WaitFor(ctx, x.cfg.menuWindow(), "options to render", func(ctx context.Context) (bool, error) {
			options = x.collectOptions(ctx, menu, hints)
			return len(options) > 0, nil
		})
	}
	texts = union(texts, optionTexts(options))
	if opt, ok := matchOption(options, target); ok {
		return opt, texts, true
	}
	if !hints.Virtualized {
		return optionEntry{}, texts, false
	}

	lastKey := ""
	for i := 0; i < x.cfg.scrollAttempts(); i++ {
		if len(options) > 0 {
			last := options[len(options)-1]
			if last.el.NodeKey() == lastKey {
				break
			}
			lastKey = last.el.NodeKey()
			if err := last.el.ScrollIntoView(ctx); err != nil {
				break
			}
		}
		if err := sleep(ctx, x.cfg.scrollPause()); err != nil {
			break
		}
		options = x.collectOptions(ctx, menu, hints)
		texts = union(texts, optionTexts(options))
		if opt, ok := matchOption(options, target); ok {
			return opt, texts, true
		}
	}
	return optionEntry{}, texts, false
}

func optionTexts(options []optionEntry) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, o.text)
	}
	return out
}

func matchOption(options []optionEntry, target string) (optionEntry, bool) {
	t := strings.TrimSpace(target)
	if t == "" {
		if len(options) > 0 {
			return options[0], true
		}
		return optionEntry{}, false
	}
	for _, o := range options {
		if o.text == t {
			return o, true
		}
	}
	nt := signature.Normalize(t)
	if nt == "" {
		return optionEntry{}, false
	}
	for _, o := range options {
		if signature.Normalize(o.text) == nt {
			return o, true
		}
	}
	for _, o := range options {
		if strings.Contains(signature.Normalize(o.text), nt) {
			return o, true
		}
	}
	return optionEntry{}, false
}

// selectOption activates the matched option and confirms the pick stuck.
func (x *Executor) selectOption(ctx context.Context, doc dom.Document, trigger, menu dom.Element, opt optionEntry, target string) (string, []Attempt, bool) {
	if target == "" {
		target = opt.text
	}
	cond := func(ctx context.Context) (bool, error) {
		return x.selectionVerified(ctx, trigger, menu, opt, target), nil
	}
	ladder := []Strategy{
		{Name: "select:click", Run: opt.el.Click},
		{Name: "select:key-enter", Run: x.pressNamed(opt.el, "Enter")},
		{Name: "select:pointer", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, opt.el, nil)
			if err != nil {
				return err
			}
			return pressRelease(ctx, opt.el, px, py)
		}},
	}
	return x.runStrategies(ctx, "dropdown-select", ladder, x.cfg.verifyWindow(), cond)
}

// selectionVerified accepts any of: the option marked selected/checked, the
// menu gone, or the trigger displaying the chosen text.
func (x *Executor) selectionVerified(ctx context.Context, trigger, menu dom.Element, opt optionEntry, target string) bool {
	if snap, err := opt.el.Snapshot(ctx); err == nil {
		if b := snap.AriaBool("aria-selected"); b != nil && *b {
			return true
		}
		if b := snap.AriaBool("aria-checked"); b != nil && *b {
			return true
		}
	}
	if !x.menuVisible(ctx, menu) {
		return true
	}
	if snap, err := trigger.Snapshot(ctx); err == nil {
		nt := signature.Normalize(target)
		if nt != "" && (strings.Contains(signature.Normalize(snap.Text), nt) ||
			strings.Contains(signature.Normalize(snap.Value), nt)) {
			return true
		}
	}
	return false
}

func (x *Executor) menuVisible(ctx context.Context, menu dom.Element) bool {
	snap, err := menu.Snapshot(ctx)
	return err == nil && gate.Visible(snap)
}

// closeMenu restores the closed state: Escape on the trigger, then a
// click-away. Best effort; a page left with a dangling menu would corrupt
// every following step.
func (x *Executor) closeMenu(ctx context.Context, doc dom.Document, trigger, menu dom.Element) {
	if !x.menuVisible(ctx, menu) {
		return
	}
	if err := x.PressKey(ctx, trigger, "Escape"); err == nil && !x.menuVisible(ctx, menu) {
		return
	}
	if els, err := doc.QueryAll(ctx, "body"); err == nil && len(els) > 0 {
		_ = els[0].Click(ctx)
	}
	if x.menuVisible(ctx, menu) {
		x.log.Warn("menu still open after close attempts")
	}
}

// Autocomplete types a query, waits for suggestions, and picks one. An empty
// recorded option accepts the first suggestion.
func (x *Executor) Autocomplete(ctx context.Context, doc dom.Document, el dom.Element, data pattern.AutocompleteData) Result {
	start := time.Now()
	el, fail, ok := x.admit(ctx, doc, el, false)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	var menu dom.Element
	menuCond := func(ctx context.Context) (bool, error) {
		menu = x.findMenu(ctx, doc, el, data.Hints)
		return menu != nil, nil
	}
	queryLadder := []Strategy{
		{Name: "query:set-value", Run: func(ctx context.Context) error {
			if err := el.Focus(ctx); err != nil {
				return err
			}
			if err := el.SetValue(ctx, data.Query); err != nil {
				return err
			}
			return el.DispatchEvent(ctx, "input")
		}},
		{Name: "query:type-keys", Run: func(ctx context.Context) error {
			if err := el.Focus(ctx); err != nil {
				return err
			}
			if err := el.SetValue(ctx, ""); err != nil {
				return err
			}
			return typeKeys(ctx, el, data.Query)
		}},
	}

	_, attempts, opened := x.runStrategies(ctx, "autocomplete", queryLadder, x.cfg.menuWindow(), menuCond)
	if !opened {
		f := failure(ctx, FailActionFailed,
			fmt.Sprintf("suggestions for %q never appeared; %s", data.Query, describeAttempts(attempts)))
		f.Attempts, f.Elapsed = attempts, time.Since(start)
		return f
	}

	opt, texts, found := x.locateOption(ctx, menu, data.Hints, data.Option)
	if !found {
		x.closeMenu(ctx, doc, el, menu)
		f := failure(ctx, FailActionFailed,
			fmt.Sprintf("suggestion %q not among %d visible options", data.Option, len(texts)))
		f.Attempts, f.Options, f.Elapsed = attempts, texts, time.Since(start)
		return f
	}

	method, selAttempts, selected := x.selectOption(ctx, doc, el, menu, opt, data.Option)
	attempts = append(attempts, selAttempts...)
	if !selected {
		x.closeMenu(ctx, doc, el, menu)
		f := failure(ctx, FailActionFailed,
			fmt.Sprintf("selection of %q never verified; %s", opt.text, describeAttempts(selAttempts)))
		f.Attempts, f.Options, f.Elapsed = attempts, texts, time.Since(start)
		return f
	}
	return Result{OK: true, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
}

// union appends the strings of add not already in base, preserving order.
func union(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
