// input_state_machine.go - Mouse/keyboard-driven interaction state machine

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

// MouseState is the input machine's gesture state (spec.md §4.D).
type MouseState int

const (
	StateNormal MouseState = iota
	StateDragging
	StateMoving
	StateResizing
)

// PointerScale is the subpixel scale pointer coordinates are tracked in
// (spec.md §4.D: "subpixel units of 3x screen pixels").
const PointerScale = 3

// Modifiers is the stored modifier-state snapshot, updated on every key
// event (spec.md §4.D).
type Modifiers struct {
	Ctrl, Shift, Alt, Super bool
}

// Outbound is the narrow slice of the dispatcher's responsibilities the
// input machine needs: sending a message to a specific owner, and
// broadcasting a window-list-changed notification to subscribers.
type Outbound interface {
	SendTo(owner ClientID, payload []byte)
	BroadcastSubscribers(payload []byte)
}

// InputMachine converts raw mouse/key deltas into focus changes, drags,
// resizes, tiles, and outbound client events (spec.md §4.D).
type InputMachine struct {
	registry *Registry
	damage   *DamageQueue
	out      Outbound

	screenW, screenH int

	state MouseState

	initX, initY int // pointer at gesture start, screen pixels
	winX, winY   int // window origin at gesture start
	clickX, clickY int // last known window-local coordinate, for DRAGGING
	moved        bool
	dragButton   int
	resizingW, resizingH int
	capture      *Window

	pointerX, pointerY int // current subpixel pointer position, clamped

	mods Modifiers

	binds map[uint32]keyBind

	debugHitTest bool
	debugBounds  bool

	resizeOutlineFn func(Rect)
}

type keyBind struct {
	owner    ClientID
	response int
}

func bindKey(mods, keycode uint32) uint32 {
	return (mods << 24) | (keycode & 0x00FFFFFF)
}

// NewInputMachine constructs the state machine for a screen of the given
// pixel dimensions.
func NewInputMachine(reg *Registry, damage *DamageQueue, out Outbound, screenW, screenH int) *InputMachine {
	return &InputMachine{
		registry: reg,
		damage:   damage,
		out:      out,
		screenW:  screenW,
		screenH:  screenH,
		binds:    make(map[uint32]keyBind),
	}
}

// screenXY converts a subpixel pointer coordinate to screen pixels.
func screenXY(subX, subY int) (int, int) { return subX / PointerScale, subY / PointerScale }

func (m *InputMachine) clampPointer(x, y int) (int, int) {
	maxX := m.screenW*PointerScale - 1
	maxY := m.screenH*PointerScale - 1
	if x < 0 {
		x = 0
	} else if x > maxX {
		x = maxX
	}
	if y < 0 {
		y = 0
	} else if y > maxY {
		y = maxY
	}
	return x, y
}

// setFocus implements spec.md §4.D's set_focus: no-op if unchanged,
// otherwise sends focus-lost to the old owner strictly before focus-gained
// to the new owner, raises w within MID, and broadcasts a subscriber
// notify. w == nil clears focus; key events then fall through to BOTTOM
// as the implicit default (see forwardKeyEvent).
func (m *InputMachine) setFocus(w *Window) {
	cur := m.registry.Focused()
	target := w
	if target == cur {
		return
	}
	if cur != nil {
		m.out.SendTo(cur.Owner, EncodeFocusChange(0))
	}
	m.registry.SetFocused(target)
	if target != nil {
		m.out.SendTo(target.Owner, EncodeFocusChange(1))
		m.registry.Raise(target)
	}
	m.out.BroadcastSubscribers(EncodeWindowAdvertise(nil, false))
}

// SetFocus is the dispatcher-facing entry point for WINDOW_FOCUS and for
// the explicit focus-fallback transition (spec.md §9's resolved Open
// Question): when the focused window is destroyed, the dispatcher calls
// SetFocus(registry.Bottom()) to make the fallback observable.
func (m *InputMachine) SetFocus(w *Window) { m.setFocus(w) }

// HandleMouse processes one MOUSE_EVENT: subpixel (x, y) and a button
// bitmask (1<<ButtonLeft | 1<<ButtonMiddle | ...).
func (m *InputMachine) HandleMouse(x, y int32, buttons uint8) {
	nx, ny := m.clampPointer(int(x), int(y))
	moved := nx != m.pointerX || ny != m.pointerY
	oldSX, oldSY := screenXY(m.pointerX, m.pointerY)
	m.pointerX, m.pointerY = nx, ny
	sx, sy := screenXY(nx, ny)

	leftDown := buttons&(1<<ButtonLeft) != 0
	midDown := buttons&(1<<ButtonMiddle) != 0

	switch m.state {
	case StateNormal:
		if leftDown && m.mods.Alt {
			m.startMoveOrResize(sx, sy, StateMoving, ButtonLeft)
			return
		}
		if midDown && m.mods.Alt {
			m.startMoveOrResize(sx, sy, StateResizing, ButtonMiddle)
			return
		}
		if leftDown {
			w := m.registry.HitTest(sx, sy)
			m.setFocus(w)
			if w != nil {
				lx, ly := w.ToLocal(sx, sy)
				m.clickX, m.clickY = lx, ly
				m.out.SendTo(w.Owner, EncodeMouseDown(int32(lx), int32(ly)))
			}
			m.moved = false
			m.dragButton = ButtonLeft
			m.registry.SetCapture(w)
			m.capture = w
			m.state = StateDragging
			return
		}
		if moved {
			m.normalMotion(sx, sy, oldSX, oldSY)
		}

	case StateMoving:
		if !leftDown {
			m.registry.SetCapture(nil)
			m.capture = nil
			m.state = StateNormal
			return
		}
		if moved {
			m.applyMove(sx, sy)
		}

	case StateResizing:
		if !midDown {
			w := m.capture
			if w != nil {
				m.out.SendTo(w.Owner, EncodeResizeOffer(w.WID, int32(m.resizingW), int32(m.resizingH), 0))
			}
			if m.resizeOutlineFn != nil {
				m.resizeOutlineFn(Rect{})
			}
			m.registry.SetCapture(nil)
			m.capture = nil
			m.state = StateNormal
			return
		}
		if moved {
			m.applyResize(sx, sy, oldSX, oldSY)
		}

	case StateDragging:
		w := m.capture
		buttonStillDown := (m.dragButton == ButtonLeft && leftDown) || (m.dragButton == ButtonMiddle && midDown)
		if !buttonStillDown {
			m.state = StateNormal
			m.registry.SetCapture(nil)
			m.capture = nil
			if w == nil {
				return
			}
			if !m.moved {
				m.out.SendTo(w.Owner, EncodeMouseClick(int32(m.clickX), int32(m.clickY)))
			} else {
				lx, ly := w.ToLocal(sx, sy)
				m.out.SendTo(w.Owner, EncodeMouseRaise(int32(m.clickX), int32(m.clickY), int32(lx), int32(ly)))
			}
			return
		}
		if w != nil {
			lx, ly := w.ToLocal(sx, sy)
			if lx != m.clickX || ly != m.clickY {
				m.moved = true
				m.out.SendTo(w.Owner, EncodeMouseDrag(int32(m.clickX), int32(m.clickY), int32(lx), int32(ly)))
				m.clickX, m.clickY = lx, ly
			}
		}
	}
}

// DebugFlags reports the current CTRL+SHIFT+V / CTRL+SHIFT+B toggle state
// (spec.md §4.D), for the compositor to render the corresponding overlays.
func (m *InputMachine) DebugFlags() (hitTest, bounds bool) {
	return m.debugHitTest, m.debugBounds
}

// Pointer reports the current pointer position in screen pixels, for the
// compositor's per-frame cursor damage tracking (spec.md §4.C step 1).
func (m *InputMachine) Pointer() (x, y int, ok bool) {
	x, y = screenXY(m.pointerX, m.pointerY)
	return x, y, true
}

// PasteByte sends a synthetic KEY_EVENT carrying a single pasted byte to the
// focused window, mirroring the teacher's EbitenOutput.emitByte clipboard
// path (video_backend_ebiten.go), generalized from "feed a terminal byte
// stream" to "feed the focused client one synthetic key event per byte".
func (m *InputMachine) PasteByte(b byte) {
	if f := m.registry.Focused(); f != nil {
		m.out.SendTo(f.Owner, EncodeKeyEvent(uint32(b), 0, true))
	}
}

// SetResizeOutlineSink installs the function the RESIZING gesture feeds its
// live outline rect into every time it changes, and clears with an empty
// Rect on release (compositor.go's SetResizeOutline, spec.md §4.C step 6).
func (m *InputMachine) SetResizeOutlineSink(fn func(Rect)) {
	m.resizeOutlineFn = fn
}

// BeginDrag implements WINDOW_DRAG_START: initiate a MOVING gesture for w
// using the current pointer position (spec.md §4.E), as if the client
// itself had performed the ALT+drag gesture on the caller's behalf.
func (m *InputMachine) BeginDrag(w *Window) {
	sx, sy := screenXY(m.pointerX, m.pointerY)
	m.registry.SetCapture(w)
	m.capture = w
	m.initX, m.initY = sx, sy
	m.winX, m.winY = w.X, w.Y
	m.state = StateMoving
}

func (m *InputMachine) startMoveOrResize(sx, sy int, next MouseState, button int) {
	w := m.registry.HitTest(sx, sy)
	m.setFocus(w)
	if w == nil || w.Band != BandMid {
		return
	}
	m.registry.SetCapture(w)
	m.capture = w
	m.initX, m.initY = sx, sy
	m.winX, m.winY = w.X, w.Y
	if next == StateResizing {
		m.resizingW, m.resizingH = w.Width, w.Height
	}
	m.state = next
}

// normalMotion implements the NORMAL/motion transition: MOUSE_MOVE to the
// focused window, plus enter/leave notifications to the hover window.
func (m *InputMachine) normalMotion(sx, sy, oldSX, oldSY int) {
	_ = oldSX
	_ = oldSY
	if f := m.registry.Focused(); f != nil {
		lx, ly := f.ToLocal(sx, sy)
		m.out.SendTo(f.Owner, EncodeMouseMove(int32(lx), int32(ly)))
	}
	newHover := m.registry.HitTest(sx, sy)
	oldHover := m.registry.Hover()
	if newHover != oldHover {
		if oldHover != nil {
			lx, ly := oldHover.ToLocal(sx, sy)
			m.out.SendTo(oldHover.Owner, EncodeMouseLeave(int32(lx), int32(ly)))
		}
		m.registry.SetHover(newHover)
		if newHover != nil {
			lx, ly := newHover.ToLocal(sx, sy)
			m.out.SendTo(newHover.Owner, EncodeMouseEnter(int32(lx), int32(ly)))
			m.out.SendTo(newHover.Owner, EncodeMouseMove(int32(lx), int32(ly)))
		}
	}
}

func (m *InputMachine) applyMove(sx, sy int) {
	w := m.capture
	if w == nil {
		return
	}
	m.damage.MarkWindow(w)
	w.X = m.winX + (sx - m.initX)
	w.Y = m.winY + (sy - m.initY)
	m.damage.MarkWindow(w)
}

func (m *InputMachine) applyResize(sx, sy, oldSX, oldSY int) {
	_ = oldSX
	_ = oldSY
	w := m.capture
	if w == nil {
		return
	}
	dx := sx - m.initX
	dy := sy - m.initY
	oldW, oldH := m.resizingW, m.resizingH
	m.resizingW = max(1, w.Width+dx)
	m.resizingH = max(1, w.Height+dy)

	const margin = 2 + 10
	m.damage.MarkRegion(w.X-margin, w.Y-margin, oldW+2*margin, oldH+2*margin)
	m.damage.MarkRegion(w.X-margin, w.Y-margin, m.resizingW+2*margin, m.resizingH+2*margin)

	if m.resizeOutlineFn != nil {
		m.resizeOutlineFn(Rect{X: w.X, Y: w.Y, W: m.resizingW, H: m.resizingH})
	}
}
