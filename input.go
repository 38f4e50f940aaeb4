package meshview

// MouseButton and ModifierKey mirror the window system's pointer state in a
// backend-neutral form; the window host translates glfw values into these.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

type ModifierKey int

const (
	ModShift ModifierKey = 1 << iota
	ModControl
	ModAlt
)

// DragModeFor fixes the interaction mode for one gesture from the button
// and modifier state at press time. Middle button or shift-drag pans,
// everything else rotates. Zoom is scroll-only.
func DragModeFor(button MouseButton, mods ModifierKey) DragMode {
	if button == MouseMiddle || mods&ModShift != 0 {
		return DragPan
	}
	return DragRotate
}
