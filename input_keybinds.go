// input_keybinds.go - Key-bind table, rotation/tile hotkeys, key-event routing

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "github.com/hajimehoshi/ebiten/v2"

// BindKey installs or overwrites a key-bind table entry (spec.md §4.E's
// KEY_BIND: the hashmap is keyed (modifiers<<24)|(keycode & 0x00FFFFFF)).
func (m *InputMachine) BindKey(owner ClientID, mods, keycode uint32, response int) {
	m.binds[bindKey(mods, keycode)] = keyBind{owner: owner, response: response}
}

func (m *InputMachine) modBits() uint32 {
	var b uint32
	if m.mods.Ctrl {
		b |= 1 << 0
	}
	if m.mods.Shift {
		b |= 1 << 1
	}
	if m.mods.Alt {
		b |= 1 << 2
	}
	if m.mods.Super {
		b |= 1 << 3
	}
	return b
}

// HandleKey processes one keyboard transition: built-in hotkeys first (spec
// §4.D), then the bind table, then forwarding to the focused window.
func (m *InputMachine) HandleKey(keycode uint32, pressed bool) {
	if !pressed {
		m.forwardKeyEvent(keycode, false)
		return
	}

	switch {
	case m.mods.Ctrl && m.mods.Shift && keycode == keyZ:
		m.rotateFocused(-5)
		return
	case m.mods.Ctrl && m.mods.Shift && keycode == keyX:
		m.rotateFocused(5)
		return
	case m.mods.Ctrl && m.mods.Shift && keycode == keyC:
		m.resetRotationFocused()
		return
	case m.mods.Alt && keycode == keyF10:
		m.tileFocused(1, 1, 0, 0)
		return
	case m.mods.Super && m.mods.Shift && keycode == keyArrowLeft:
		m.tileFocused(2, 2, 0, 0) // top-left quadrant
		return
	case m.mods.Super && m.mods.Shift && keycode == keyArrowRight:
		m.tileFocused(2, 2, 1, 0) // top-right quadrant
		return
	case m.mods.Super && m.mods.Ctrl && keycode == keyArrowLeft:
		m.tileFocused(2, 2, 0, 1) // bottom-left quadrant
		return
	case m.mods.Super && m.mods.Ctrl && keycode == keyArrowRight:
		m.tileFocused(2, 2, 1, 1) // bottom-right quadrant
		return
	case m.mods.Super && keycode == keyArrowLeft:
		m.tileFocused(2, 1, 0, 0) // left half
		return
	case m.mods.Super && keycode == keyArrowRight:
		m.tileFocused(2, 1, 1, 0) // right half
		return
	case m.mods.Super && keycode == keyArrowUp:
		m.tileFocused(1, 2, 0, 0) // top half
		return
	case m.mods.Super && keycode == keyArrowDown:
		m.tileFocused(1, 2, 0, 1) // bottom half
		return
	case m.mods.Ctrl && m.mods.Shift && keycode == keyV:
		m.debugHitTest = !m.debugHitTest
		return
	case m.mods.Ctrl && m.mods.Shift && keycode == keyB:
		m.debugBounds = !m.debugBounds
		return
	}

	m.forwardKeyEvent(keycode, true)
}

// forwardKeyEvent implements the bind-table lookup and PASS_THROUGH/STEAL
// semantics, falling through to the focused window (or to BOTTOM when no
// window is focused) unless a STEAL bind matched.
func (m *InputMachine) forwardKeyEvent(keycode uint32, pressed bool) {
	mods := m.modBits()
	if b, ok := m.binds[bindKey(mods, keycode)]; ok {
		m.out.SendTo(b.owner, EncodeKeyEvent(keycode, mods, pressed))
		if b.response == ResponseSteal {
			return
		}
	}
	f := m.registry.Focused()
	if f == nil {
		f = m.registry.Bottom()
	}
	if f != nil {
		m.out.SendTo(f.Owner, EncodeKeyEvent(keycode, mods, pressed))
	}
}

func (m *InputMachine) rotateFocused(delta int) {
	w := m.registry.Focused()
	if w == nil || w.Band != BandMid {
		return
	}
	m.damage.MarkWindow(w)
	w.Rotation = ((w.Rotation+delta)%360 + 360) % 360
	m.damage.MarkWindow(w)
}

func (m *InputMachine) resetRotationFocused() {
	w := m.registry.Focused()
	if w == nil || w.Band != BandMid {
		return
	}
	m.damage.MarkWindow(w)
	w.Rotation = 0
	m.damage.MarkWindow(w)
}

// tileFocused implements tile(W, wdiv, hdiv, cx, cy) (spec.md §4.D).
func (m *InputMachine) tileFocused(wdiv, hdiv, cx, cy int) {
	w := m.registry.Focused()
	if w == nil {
		return
	}
	m.tile(w, wdiv, hdiv, cx, cy)
}

func (m *InputMachine) tile(w *Window, wdiv, hdiv, cx, cy int) {
	panelH := 0
	if top := m.registry.Top(); top != nil {
		panelH = top.Height
	}
	tw := m.screenW / wdiv
	th := (m.screenH - panelH) / hdiv

	m.damage.MarkWindow(w)
	w.X = tw * cx
	w.Y = panelH + th*cy
	m.damage.MarkWindow(w)

	m.out.SendTo(w.Owner, EncodeResizeOffer(w.WID, int32(tw), int32(th), 0))
}

// Built-in hotkeys are compared against ebiten.Key values, which HandleKey
// callers (frontend.go) pass through as the raw uint32 keycode.
const (
	keyZ          = uint32(ebiten.KeyZ)
	keyX          = uint32(ebiten.KeyX)
	keyC          = uint32(ebiten.KeyC)
	keyV          = uint32(ebiten.KeyV)
	keyB          = uint32(ebiten.KeyB)
	keyF10        = uint32(ebiten.KeyF10)
	keyArrowLeft  = uint32(ebiten.KeyArrowLeft)
	keyArrowRight = uint32(ebiten.KeyArrowRight)
	keyArrowUp    = uint32(ebiten.KeyArrowUp)
	keyArrowDown  = uint32(ebiten.KeyArrowDown)
)
