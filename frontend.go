// frontend.go - Front-surface presentation backend and input source

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"
)

// Frontend is the presentation contract spec.md §1 leaves unspecified
// beyond "renders to some output": hand the compositor's backbuffer bytes
// to whatever actually puts pixels on screen. clip is the damage union for
// the frame, for backends that can do a partial present.
type Frontend interface {
	Start() error
	Stop() error
	Close() error
	IsStarted() bool
	Present(pix []byte, clip Rect)
}

// PointerState describes a sampled pointer. Nothing in this package uses it:
// the compositor latches the pointer each tick through InputMachine.Pointer
// (see Compositor.SetPointerSource).
type PointerState struct {
	X, Y     int // subpixel, PointerScale units
	Buttons  uint8
	Valid    bool
}

// EbitenFrontend is the default Frontend, mirroring the teacher's
// EbitenOutput: an ebiten.Game whose Draw blits the compositor's backbuffer
// and whose Update polls keyboard/mouse state for the input machine.
type EbitenFrontend struct {
	width, height int
	scale         int

	mu      sync.RWMutex
	pix     []byte
	running bool

	img *ebiten.Image

	machine *InputMachine

	readyCh chan struct{}
	readyOnce sync.Once

	clipboardOnce sync.Once
	clipboardOK   bool
}

// NewEbitenFrontend constructs a frontend for a screen of the given pixel
// dimensions, presented at the given integer window scale.
func NewEbitenFrontend(width, height, scale int) *EbitenFrontend {
	if scale < 1 {
		scale = 1
	}
	return &EbitenFrontend{
		width:   width,
		height:  height,
		scale:   scale,
		pix:     make([]byte, width*height*4),
		readyCh: make(chan struct{}),
	}
}

// BindInput wires the frontend's polled keyboard/mouse state into the
// input state machine; it must be called before Start.
func (f *EbitenFrontend) BindInput(m *InputMachine) { f.machine = m }

func (f *EbitenFrontend) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	ebiten.SetWindowSize(f.width*f.scale, f.height*f.scale)
	ebiten.SetWindowTitle("compositor")
	ebiten.SetWindowResizable(false)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		if err := ebiten.RunGame(f); err != nil {
			fmt.Printf("frontend: ebiten exited: %v\n", err)
		}
	}()

	<-f.readyCh
	return nil
}

func (f *EbitenFrontend) Stop() error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}

func (f *EbitenFrontend) Close() error { return f.Stop() }

func (f *EbitenFrontend) IsStarted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// Present copies pix into the frontend's backbuffer; clip is accepted for
// symmetry with partial-present-capable backends but ebiten re-blits the
// whole image each Draw regardless.
func (f *EbitenFrontend) Present(pix []byte, clip Rect) {
	_ = clip
	f.mu.Lock()
	copy(f.pix, pix)
	f.mu.Unlock()
}

// Update implements ebiten.Game: it polls keyboard/mouse state and feeds
// the input state machine, mirroring the teacher's handleKeyboardInput.
func (f *EbitenFrontend) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	f.mu.RLock()
	running := f.running
	f.mu.RUnlock()
	if !running {
		return ebiten.Termination
	}
	if f.machine == nil {
		return nil
	}

	mx, my := ebiten.CursorPosition()
	var buttons uint8
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		buttons |= 1 << ButtonLeft
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) {
		buttons |= 1 << ButtonMiddle
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		buttons |= 1 << ButtonRight
	}
	f.machine.HandleMouse(int32(mx*PointerScale), int32(my*PointerScale), buttons)

	f.pollModifiers()
	f.pollClipboardPaste()
	f.pollKeys()
	return nil
}

func (f *EbitenFrontend) pollModifiers() {
	f.machine.mods = Modifiers{
		Ctrl:  ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight),
		Shift: ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight),
		Alt:   ebiten.IsKeyPressed(ebiten.KeyAltLeft) || ebiten.IsKeyPressed(ebiten.KeyAltRight),
		Super: ebiten.IsKeyPressed(ebiten.KeyMetaLeft) || ebiten.IsKeyPressed(ebiten.KeyMetaRight),
	}
}

// pollClipboardPaste implements the teacher's EbitenOutput.handleClipboardPaste
// (video_backend_ebiten.go), generalized from "feed a terminal byte stream"
// to "feed the focused client one synthetic KEY_EVENT per pasted byte". Bound
// to plain CTRL+V rather than the teacher's CTRL+SHIFT+V, since the latter is
// already spec.md §4.D's hit-test-visualisation debug toggle in this repo.
func (f *EbitenFrontend) pollClipboardPaste() {
	if !f.machine.mods.Ctrl || f.machine.mods.Shift {
		return
	}
	if !inpututil.IsKeyJustPressed(ebiten.KeyV) {
		return
	}
	f.handleClipboardPaste()
}

func (f *EbitenFrontend) handleClipboardPaste() {
	f.clipboardOnce.Do(func() {
		f.clipboardOK = clipboard.Init() == nil
	})
	if !f.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = normalizePasteText(data)
	data = capPasteText(data, 4096)
	for _, b := range data {
		f.machine.PasteByte(b)
	}
}

// normalizePasteText collapses CRLF/CR line endings to LF, matching the
// teacher's normalizePasteText.
func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func capPasteText(raw []byte, max int) []byte {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}

var trackedKeys = []ebiten.Key{
	ebiten.KeyZ, ebiten.KeyX, ebiten.KeyC, ebiten.KeyV, ebiten.KeyB,
	ebiten.KeyF10,
	ebiten.KeyArrowUp, ebiten.KeyArrowDown, ebiten.KeyArrowLeft, ebiten.KeyArrowRight,
}

func (f *EbitenFrontend) pollKeys() {
	for _, key := range trackedKeys {
		if inpututil.IsKeyJustPressed(key) {
			f.machine.HandleKey(uint32(key), true)
		} else if inpututil.IsKeyJustReleased(key) {
			f.machine.HandleKey(uint32(key), false)
		}
	}
}

// Draw implements ebiten.Game: blit the latched backbuffer and signal Start
// that the first frame has rendered.
func (f *EbitenFrontend) Draw(screen *ebiten.Image) {
	if f.img == nil {
		f.img = ebiten.NewImage(f.width, f.height)
	}
	f.mu.RLock()
	f.img.WritePixels(f.pix)
	f.mu.RUnlock()
	screen.DrawImage(f.img, nil)
	f.readyOnce.Do(func() { close(f.readyCh) })
}

func (f *EbitenFrontend) Layout(_, _ int) (int, int) { return f.width, f.height }

// NestedFrontend wraps another Frontend so a compositor instance can run
// inside a window owned by an outer instance of itself, per the
// nested-self-hosting contract: Present forwards to the inner surface
// instead of driving its own ebiten.Game loop.
type NestedFrontend struct {
	inner Frontend
	onPresent func(pix []byte, clip Rect)
}

// NewNestedFrontend wraps an inner Frontend, additionally invoking onPresent
// on every frame so the outer compositor can treat this session's output as
// an ordinary window's client buffer.
func NewNestedFrontend(inner Frontend, onPresent func(pix []byte, clip Rect)) *NestedFrontend {
	return &NestedFrontend{inner: inner, onPresent: onPresent}
}

func (n *NestedFrontend) Start() error    { return n.inner.Start() }
func (n *NestedFrontend) Stop() error     { return n.inner.Stop() }
func (n *NestedFrontend) Close() error    { return n.inner.Close() }
func (n *NestedFrontend) IsStarted() bool { return n.inner.IsStarted() }

func (n *NestedFrontend) Present(pix []byte, clip Rect) {
	n.inner.Present(pix, clip)
	if n.onPresent != nil {
		n.onPresent(pix, clip)
	}
}
