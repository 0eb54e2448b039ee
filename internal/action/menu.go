package action

import (
	"context"
	"fmt"
	"time"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// NavigateMenu walks a nested menu along the recorded labels: each level is
// opened and the labeled item located before descending, and the final item
// is activated. Whatever happens, the walk unwinds every level it opened;
// a dangling menu would swallow the next step's clicks.
func (x *Executor) NavigateMenu(ctx context.Context, doc dom.Document, el dom.Element, data pattern.MenuNavigationData) Result {
	start := time.Now()
	if len(data.Path) == 0 {
		res := failure(ctx, FailActionFailed, "menu path is empty")
		res.Elapsed = time.Since(start)
		return res
	}

	trigger, fail, ok := x.admit(ctx, doc, el, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	beforeURL, err := doc.URL(ctx)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}

	var (
		attempts []Attempt
		menus    []dom.Element
		final    optionEntry
		seen     []string
		current  = trigger
		last     = len(data.Path) - 1
	)
	for depth, label := range data.Path {
		before := x.menuKeySet(ctx, doc)
		ladder := x.submenuLadder(current)
		if depth == 0 {
			ladder = x.menuOpenLadder(current)
		}
		menu, openAttempts, opened := x.openLevel(ctx, doc, current, before, ladder)
		attempts = append(attempts, openAttempts...)
		if !opened {
			x.closeMenus(ctx, doc, trigger, menus)
			f := failure(ctx, FailActionFailed,
				fmt.Sprintf("menu level %d never opened; %s", depth+1, describeAttempts(attempts)))
			f.Attempts, f.Elapsed = attempts, time.Since(start)
			return f
		}
		menus = append(menus, menu)

		item, texts, found := x.locateOption(ctx, menu, pattern.MenuHints{}, label)
		seen = union(seen, texts)
		if !found {
			x.closeMenus(ctx, doc, trigger, menus)
			f := failure(ctx, FailActionFailed,
				fmt.Sprintf("menu item %q not among %d visible items at level %d", label, len(seen), depth+1))
			f.Attempts, f.Options, f.Elapsed = attempts, seen, time.Since(start)
			return f
		}
		if depth == last {
			final = item
			break
		}
		current = item.el
	}

	method, actAttempts, done := x.activateItem(ctx, doc, final, menus[0], beforeURL)
	attempts = append(attempts, actAttempts...)
	x.closeMenus(ctx, doc, trigger, menus)
	if !done {
		f := failure(ctx, FailActionFailed,
			fmt.Sprintf("activation of %q never verified; %s", final.text, describeAttempts(actAttempts)))
		f.Attempts, f.Options, f.Elapsed = attempts, seen, time.Since(start)
		return f
	}
	return Result{OK: true, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
}

// menuOpenLadder opens a top-level trigger, which is usually a real button:
// click leads.
func (x *Executor) menuOpenLadder(trigger dom.Element) []Strategy {
	return []Strategy{
		{Name: "menu:click", Run: trigger.Click},
		{Name: "menu:focus-click", Run: func(ctx context.Context) error {
			if err := trigger.Focus(ctx); err != nil {
				return err
			}
			return trigger.Click(ctx)
		}},
		{Name: "menu:hover", Run: hoverOver(trigger)},
		{Name: "menu:key-enter", Run: x.pressNamed(trigger, "Enter")},
		{Name: "menu:key-arrowdown", Run: x.pressNamed(trigger, "ArrowDown")},
		{Name: "menu:pointer", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, trigger, nil)
			if err != nil {
				return err
			}
			return pressRelease(ctx, trigger, px, py)
		}},
	}
}

// submenuLadder opens a nested item's submenu. Hover leads: clicking an item
// that is also a link would navigate instead of expanding.
func (x *Executor) submenuLadder(item dom.Element) []Strategy {
	return []Strategy{
		{Name: "submenu:hover", Run: hoverOver(item)},
		{Name: "submenu:key-arrowright", Run: x.pressNamed(item, "ArrowRight")},
		{Name: "submenu:click", Run: item.Click},
		{Name: "submenu:key-enter", Run: x.pressNamed(item, "Enter")},
		{Name: "submenu:pointer", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, item, nil)
			if err != nil {
				return err
			}
			return pressRelease(ctx, item, px, py)
		}},
	}
}

// hoverOver dispatches the bare mouse move CSS and JS hover menus open on.
func hoverOver(el dom.Element) func(context.Context) error {
	return func(ctx context.Context) error {
		px, py, err := pointAt(ctx, el, nil)
		if err != nil {
			return err
		}
		return el.DispatchMouse(ctx, dom.MouseEvent{
			Type: dom.MouseMoved, X: px, Y: py, Button: dom.MouseButtonNone,
		})
	}
}

// openLevel opens the menu the trigger owns and returns the container that
// newly appeared. Containers already visible before the first attempt are
// ignored so nested levels resolve to their own submenu, never an outer one.
func (x *Executor) openLevel(ctx context.Context, doc dom.Document, trigger dom.Element, before map[string]bool, ladder []Strategy) (dom.Element, []Attempt, bool) {
	var menu dom.Element
	cond := func(ctx context.Context) (bool, error) {
		menu = x.newMenu(ctx, doc, trigger, before)
		return menu != nil, nil
	}
	_, attempts, ok := x.runStrategies(ctx, "menu-open", ladder, x.cfg.menuWindow(), cond)
	return menu, attempts, ok
}

// menuKeySet records which menu containers are visible right now, keyed by
// node identity.
func (x *Executor) menuKeySet(ctx context.Context, doc dom.Document) map[string]bool {
	keys := make(map[string]bool)
	for _, sel := range menuSelectors(pattern.MenuHints{}) {
		els, err := doc.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			snap, err := el.Snapshot(ctx)
			if err != nil || !gate.Visible(snap) {
				continue
			}
			keys[el.NodeKey()] = true
		}
	}
	return keys
}

// newMenu returns the first visible menu container absent from before,
// preferring one the trigger links via aria-controls/aria-owns, and falling
// back to a list rendered inside the item itself (nested ul submenus).
func (x *Executor) newMenu(ctx context.Context, doc dom.Document, trigger dom.Element, before map[string]bool) dom.Element {
	sels := menuSelectors(pattern.MenuHints{})
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
		if m := freshVisible(ctx, els, before); m != nil {
			return m
		}
	}
	if els, err := trigger.QueryAll(ctx, "ul"); err == nil {
		if m := freshVisible(ctx, els, before); m != nil {
			return m
		}
	}
	return nil
}

func freshVisible(ctx context.Context, els []dom.Element, before map[string]bool) dom.Element {
	for _, el := range els {
		if before[el.NodeKey()] {
			continue
		}
		snap, err := el.Snapshot(ctx)
		if err != nil || !gate.Visible(snap) {
			continue
		}
		return el
	}
	return nil
}

// activateItem clicks the final menu item and waits for evidence the
// activation landed: the menu tree closing, a URL change, or the item's own
// state changing (checkable items keep their menu open).
func (x *Executor) activateItem(ctx context.Context, doc dom.Document, item optionEntry, root dom.Element, beforeURL string) (string, []Attempt, bool) {
	before, err := verify.CaptureState(ctx, item.el)
	if err != nil {
		return "", []Attempt{{Strategy: "activate:capture", Err: err.Error()}}, false
	}
	cond := func(ctx context.Context) (bool, error) {
		if !x.menuVisible(ctx, root) {
			return true, nil
		}
		u, err := doc.URL(ctx)
		if err != nil {
			return false, err
		}
		if u != beforeURL {
			return true, nil
		}
		after, err := verify.CaptureState(ctx, item.el)
		if err != nil {
			return false, err
		}
		return before.Changed(after), nil
	}
	ladder := []Strategy{
		{Name: "activate:click", Run: item.el.Click},
		{Name: "activate:key-enter", Run: x.pressNamed(item.el, "Enter")},
		{Name: "activate:pointer", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, item.el, nil)
			if err != nil {
				return err
			}
			return pressRelease(ctx, item.el, px, py)
		}},
	}
	return x.runStrategies(ctx, "menu-activate", ladder, x.cfg.verifyWindow(), cond)
}

// closeMenus unwinds open levels deepest first. Best effort.
func (x *Executor) closeMenus(ctx context.Context, doc dom.Document, trigger dom.Element, menus []dom.Element) {
	for i := len(menus) - 1; i >= 0; i-- {
		x.closeMenu(ctx, doc, trigger, menus[i])
	}
}
