package dom

// MouseEventType mirrors the wire-level mouse event names understood by the
// browser input domain.
type MouseEventType string

const (
	MouseMoved    MouseEventType = "mouseMoved"
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
)

// MouseButton identifies which button an event carries.
type MouseButton string

const (
	MouseButtonNone MouseButton = "none"
	MouseButtonLeft MouseButton = "left"
)

// MouseEvent is one synthetic mouse event. X and Y are viewport coordinates;
// Buttons is the bitmask of buttons held during the event (1 = primary).
type MouseEvent struct {
	Type       MouseEventType
	X, Y       float64
	Button     MouseButton
	ClickCount int
	Buttons    int
}

// KeyEventType mirrors the wire-level keyboard event names.
type KeyEventType string

const (
	KeyDown KeyEventType = "keyDown"
	KeyUp   KeyEventType = "keyUp"
	KeyChar KeyEventType = "char"
)

// Modifier bits as defined by the browser input domain.
const (
	ModifierAlt   = 1
	ModifierCtrl  = 2
	ModifierMeta  = 4
	ModifierShift = 8
)

// KeyEvent is one synthetic keyboard event. Key is the DOM key value
// ("Enter", "a"), Code the physical key ("Enter", "KeyA"), KeyCode the
// legacy numeric code older page scripts still switch on, and Text the
// character produced by printable keys.
type KeyEvent struct {
	Type      KeyEventType
	Key       string
	Code      string
	KeyCode   int
	Text      string
	Modifiers int
}
