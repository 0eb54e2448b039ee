package action

import (
	"context"
	"fmt"
	"unicode"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// keyDef is the full wire description of one key: DOM key value, physical
// code, the legacy numeric keyCode old page scripts switch on, and the text
// a printable key produces.
type keyDef struct {
	Key     string
	Code    string
	KeyCode int
	Text    string
}

// namedKeys covers the non-printable keys recorded workflows use. Space is
// printable and also activates controls, so it carries both a text payload
// and the " " key value pages test against.
var namedKeys = map[string]keyDef{
	"Enter":      {Key: "Enter", Code: "Enter", KeyCode: 13},
	"Tab":        {Key: "Tab", Code: "Tab", KeyCode: 9},
	"Escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"Home":       {Key: "Home", Code: "Home", KeyCode: 36},
	"End":        {Key: "End", Code: "End", KeyCode: 35},
	"PageUp":     {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"PageDown":   {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"Space":      {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
}

// keyFor resolves a key name: a named key, or a single printable character.
func keyFor(name string) (keyDef, error) {
	if def, ok := namedKeys[name]; ok {
		return def, nil
	}
	r := []rune(name)
	if len(r) == 1 && unicode.IsPrint(r[0]) {
		return keyForRune(r[0]), nil
	}
	return keyDef{}, fmt.Errorf("action: unknown key %q", name)
}

func keyForRune(r rune) keyDef {
	return keyDef{
		Key:     string(r),
		Code:    codeForRune(r),
		KeyCode: legacyCode(r),
		Text:    string(r),
	}
}

func codeForRune(r rune) string {
	switch {
	case r >= 'a' && r <= 'z':
		return "Key" + string(unicode.ToUpper(r))
	case r >= 'A' && r <= 'Z':
		return "Key" + string(r)
	case r >= '0' && r <= '9':
		return "Digit" + string(r)
	case r == ' ':
		return "Space"
	default:
		return ""
	}
}

// legacyCode maps printable characters to the keyCode legacy handlers
// expect: the uppercase code point for letters, the code point itself
// otherwise.
func legacyCode(r rune) int {
	if r >= 'a' && r <= 'z' {
		return int(unicode.ToUpper(r))
	}
	return int(r)
}

// PressKey focuses the element and delivers the full event sequence for one
// key: keydown, a char event for printable keys, keyup.
func (x *Executor) PressKey(ctx context.Context, el dom.Element, key string) error {
	def, err := keyFor(key)
	if err != nil {
		return err
	}
	if err := el.Focus(ctx); err != nil {
		return err
	}
	return sendKey(ctx, el, def)
}

// sendKey dispatches the triplet without touching focus, for callers that
// manage focus themselves.
func sendKey(ctx context.Context, el dom.Element, def keyDef) error {
	down := dom.KeyEvent{Type: dom.KeyDown, Key: def.Key, Code: def.Code, KeyCode: def.KeyCode}
	if err := el.DispatchKey(ctx, down); err != nil {
		return err
	}
	if def.Text != "" {
		ch := dom.KeyEvent{Type: dom.KeyChar, Key: def.Key, Code: def.Code,
			KeyCode: def.KeyCode, Text: def.Text}
		if err := el.DispatchKey(ctx, ch); err != nil {
			return err
		}
	}
	up := dom.KeyEvent{Type: dom.KeyUp, Key: def.Key, Code: def.Code, KeyCode: def.KeyCode}
	return el.DispatchKey(ctx, up)
}

// typeKeys types text rune by rune through full key triplets, the slow path
// for widgets that ignore programmatic value writes.
func typeKeys(ctx context.Context, el dom.Element, text string) error {
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sendKey(ctx, el, keyForRune(r)); err != nil {
			return err
		}
	}
	return nil
}

// pressNamed focuses el and sends a named key, as a Strategy-friendly
// closure body.
func (x *Executor) pressNamed(el dom.Element, key string) func(context.Context) error {
	return func(ctx context.Context) error {
		return x.PressKey(ctx, el, key)
	}
}
