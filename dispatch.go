// dispatch.go - Message dispatcher: packet loop and protocol handlers

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher owns the client packet channel and the subscriber set, and
// drives every protocol operation in spec.md §4.E. It implements Outbound
// for the input state machine.
type Dispatcher struct {
	channel  ClientChannel
	registry *Registry
	damage   *DamageQueue
	input    *InputMachine
	comp     *Compositor

	screenW, screenH int32

	mu          sync.Mutex
	subscribers map[ClientID]bool

	log zerolog.Logger

	tickFn func() uint64
}

// NewDispatcher wires the transport, registry, damage queue, and input
// machine together. tickFn supplies the compositor's current tick value for
// animation start timestamps (spec.md §4.B: "now is the compositor's
// current tick value").
func NewDispatcher(ch ClientChannel, reg *Registry, dq *DamageQueue, in *InputMachine, comp *Compositor, screenW, screenH int32, tickFn func() uint64, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channel:     ch,
		registry:    reg,
		damage:      dq,
		input:       in,
		comp:        comp,
		screenW:     screenW,
		screenH:     screenH,
		subscribers: make(map[ClientID]bool),
		tickFn:      tickFn,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
}

// Run drains the channel until ctx is cancelled or Recv returns a
// non-cancellation error.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		pkt, err := d.channel.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			d.log.Error().Err(err).Msg("recv failed")
			return err
		}
		if len(pkt.Payload) == 0 {
			d.handleDisconnect(pkt.Source)
			continue
		}
		d.handlePacket(pkt)
	}
}

func (d *Dispatcher) handlePacket(pkt Packet) {
	env, err := DecodeEnvelope(pkt.Payload)
	if err != nil {
		d.log.Debug().Err(err).Uint64("client", uint64(pkt.Source)).Msg("dropped packet")
		return
	}
	switch env.Type {
	case MsgHello:
		d.SendTo(pkt.Source, EncodeWelcome(d.screenW, d.screenH))
	case MsgWindowNew:
		d.onWindowNew(pkt.Source, env.Payload)
	case MsgFlip:
		d.onFlip(env.Payload)
	case MsgFlipRegion:
		d.onFlipRegion(env.Payload)
	case MsgKeyEvent:
		d.onKeyEvent(env.Payload)
	case MsgMouseEvent:
		d.onMouseEvent(env.Payload)
	case MsgWindowMove:
		d.onWindowMove(env.Payload)
	case MsgWindowClose:
		d.onWindowClose(env.Payload)
	case MsgWindowStack:
		d.onWindowStack(env.Payload)
	case MsgResizeRequest:
		d.onResizeRequest(env.Payload)
	case MsgResizeOffer:
		d.onResizeOffer(env.Payload)
	case MsgResizeAccept:
		d.onResizeAccept(env.Payload)
	case MsgResizeDone:
		d.onResizeDone(env.Payload)
	case MsgQueryWindows:
		d.onQueryWindows(pkt.Source)
	case MsgWindowAdvertise:
		d.onWindowAdvertise(env.Payload)
	case MsgSubscribe:
		d.mu.Lock()
		d.subscribers[pkt.Source] = true
		d.mu.Unlock()
	case MsgUnsubscribe:
		d.mu.Lock()
		delete(d.subscribers, pkt.Source)
		d.mu.Unlock()
	case MsgSessionEnd:
		d.BroadcastSubscribers(EncodeSessionEnd())
	case MsgWindowFocus:
		d.onWindowFocus(env.Payload)
	case MsgKeyBind:
		d.onKeyBind(pkt.Source, env.Payload)
	case MsgWindowDragStart:
		d.onWindowDragStart(env.Payload)
	case MsgWindowUpdateShape:
		d.onUpdateShape(env.Payload)
	default:
		d.log.Debug().Uint16("type", env.Type).Msg("unhandled message type")
	}
}

// handleDisconnect implements spec.md §5's "a dropped client's windows fade
// out via the normal close path": a zero-length packet is the transport's
// disconnect signal, so every window the client owns is marked for close
// exactly as WINDOW_CLOSE would.
func (d *Dispatcher) handleDisconnect(src ClientID) {
	for _, w := range append([]*Window(nil), d.registry.ClientWindows(src)...) {
		d.markForClose(w)
	}
	d.mu.Lock()
	delete(d.subscribers, src)
	d.mu.Unlock()
}

func (d *Dispatcher) markForClose(w *Window) {
	w.AnimMode = AnimFadeOut
	w.AnimStart = d.tickFn()
}

func (d *Dispatcher) onWindowNew(src ClientID, p []byte) {
	msg, err := DecodeWindowNew(p)
	if err != nil {
		return
	}
	w, err := d.registry.Create(src, int(msg.W), int(msg.H), d.tickFn())
	if err != nil {
		d.log.Warn().Err(err).Msg("window create failed")
		return
	}
	d.damage.MarkWindow(w)
	d.SendTo(src, EncodeWindowInit(w.WID, msg.W, msg.H, int32(w.BufID)))
	d.BroadcastSubscribers(EncodeWindowAdvertise(nil, false))
}

func (d *Dispatcher) onFlip(p []byte) {
	wid, err := DecodeFlip(p)
	if err != nil {
		return
	}
	if w := d.registry.Lookup(wid); w != nil {
		d.damage.MarkWindow(w)
	}
}

func (d *Dispatcher) onFlipRegion(p []byte) {
	msg, err := DecodeFlipRegion(p)
	if err != nil {
		return
	}
	if w := d.registry.Lookup(msg.WID); w != nil {
		d.damage.MarkWindowRelative(w, int(msg.X), int(msg.Y), int(msg.W), int(msg.H))
	}
}

func (d *Dispatcher) onKeyEvent(p []byte) {
	msg, err := DecodeKeyEvent(p)
	if err != nil {
		return
	}
	// Refresh the modifier snapshot from the event (same bit layout as
	// InputMachine.modBits).
	d.input.mods = Modifiers{
		Ctrl:  msg.Modifiers&(1<<0) != 0,
		Shift: msg.Modifiers&(1<<1) != 0,
		Alt:   msg.Modifiers&(1<<2) != 0,
		Super: msg.Modifiers&(1<<3) != 0,
	}
	d.input.HandleKey(msg.Keycode, msg.Pressed)
}

func (d *Dispatcher) onMouseEvent(p []byte) {
	msg, err := DecodeMouseEvent(p)
	if err != nil {
		return
	}
	d.input.HandleMouse(msg.X, msg.Y, msg.Buttons)
}

func (d *Dispatcher) onWindowMove(p []byte) {
	msg, err := DecodeWindowMove(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(msg.WID)
	if w == nil {
		return
	}
	d.damage.MarkWindow(w)
	w.X, w.Y = int(msg.X), int(msg.Y)
	d.damage.MarkWindow(w)
}

func (d *Dispatcher) onWindowClose(p []byte) {
	wid, err := DecodeWID(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(wid)
	if w == nil {
		return
	}
	d.markForClose(w)
}

// onWindowCloseComplete is invoked by the compositor once a close-bound
// window's fade-out animation finishes (see Compositor.composite's close
// queue); it performs the index teardown and the explicit focus-fallback
// transition spec.md §9 resolves.
func (d *Dispatcher) onWindowCloseComplete(w *Window) {
	wasFocused, _ := d.registry.Destroy(w)
	if wasFocused {
		d.input.SetFocus(d.registry.Bottom())
	}
	d.BroadcastSubscribers(EncodeWindowAdvertise(nil, false))
}

func (d *Dispatcher) onWindowStack(p []byte) {
	msg, err := DecodeWindowStack(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(msg.WID)
	if w == nil {
		return
	}
	d.damage.MarkWindow(w)
	d.registry.Reorder(w, msg.Band)
	d.damage.MarkWindow(w)
}

func (d *Dispatcher) onResizeRequest(p []byte) {
	msg, err := DecodeResizeDims(p)
	if err != nil {
		return
	}
	if d.registry.Lookup(msg.WID) == nil {
		return
	}
	d.SendTo(d.ownerOf(msg.WID), EncodeResizeOffer(msg.WID, msg.W, msg.H, 0))
}

func (d *Dispatcher) onResizeOffer(p []byte) {
	msg, err := DecodeResizeDims(p)
	if err != nil {
		return
	}
	if d.registry.Lookup(msg.WID) == nil {
		return
	}
	d.SendTo(d.ownerOf(msg.WID), EncodeResizeOffer(msg.WID, msg.W, msg.H, 0))
}

func (d *Dispatcher) onResizeAccept(p []byte) {
	msg, err := DecodeResizeDims(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(msg.WID)
	if w == nil {
		return
	}
	bufid, err := d.registry.AllocatePending(w, int(msg.W), int(msg.H))
	if err != nil {
		d.log.Warn().Err(err).Msg("resize accept: allocate pending failed")
		return
	}
	d.SendTo(w.Owner, EncodeResizeBufID(msg.WID, msg.W, msg.H, int32(bufid)))
}

func (d *Dispatcher) onResizeDone(p []byte) {
	msg, err := DecodeResizeDims(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(msg.WID)
	if w == nil {
		return
	}
	d.damage.MarkWindow(w)
	if err := d.registry.CommitResize(w, int(msg.W), int(msg.H)); err != nil {
		d.log.Warn().Err(err).Msg("resize commit failed")
		return
	}
	d.damage.MarkWindow(w)
}

func (d *Dispatcher) onQueryWindows(src ClientID) {
	for _, w := range d.registry.Snapshot() {
		focused := w == d.registry.Focused()
		d.SendTo(src, EncodeWindowAdvertise(w, focused))
	}
	d.SendTo(src, EncodeWindowAdvertise(nil, false))
}

func (d *Dispatcher) onWindowAdvertise(p []byte) {
	msg, err := DecodeWindowAdvertise(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(msg.WID)
	if w == nil {
		return
	}
	w.ClientFlags = msg.Flags
	w.ClientOffsets = msg.Offsets
	w.ClientStrings = msg.Strings
	d.BroadcastSubscribers(EncodeWindowAdvertise(nil, false))
}

func (d *Dispatcher) onWindowFocus(p []byte) {
	wid, err := DecodeWID(p)
	if err != nil {
		return
	}
	d.input.SetFocus(d.registry.Lookup(wid))
}

func (d *Dispatcher) onKeyBind(src ClientID, p []byte) {
	msg, err := DecodeKeyBind(p)
	if err != nil {
		return
	}
	d.input.BindKey(src, msg.Mods, msg.Key, int(msg.Response))
}

func (d *Dispatcher) onWindowDragStart(p []byte) {
	wid, err := DecodeWID(p)
	if err != nil {
		return
	}
	w := d.registry.Lookup(wid)
	if w == nil {
		return
	}
	d.input.BeginDrag(w)
}

func (d *Dispatcher) onUpdateShape(p []byte) {
	msg, err := DecodeUpdateShape(p)
	if err != nil {
		return
	}
	if w := d.registry.Lookup(msg.WID); w != nil {
		w.AlphaThreshold = msg.Threshold
	}
}

func (d *Dispatcher) ownerOf(wid WindowID) ClientID {
	if w := d.registry.Lookup(wid); w != nil {
		return w.Owner
	}
	return 0
}

// SendTo implements Outbound: best-effort send to one client. Send failures
// are logged and swallowed; spec.md §7 treats them as non-fatal.
func (d *Dispatcher) SendTo(owner ClientID, payload []byte) {
	if err := d.channel.Send(owner, payload); err != nil {
		d.log.Debug().Err(err).Uint64("client", uint64(owner)).Msg("send failed")
	}
}

// BroadcastSubscribers implements Outbound. Per spec.md §9's resolved Open
// Question (deliberately deviating from §7's documented default), send
// failures prune the subscriber immediately rather than leaving it to
// linger until an explicit UNSUBSCRIBE.
func (d *Dispatcher) BroadcastSubscribers(payload []byte) {
	d.mu.Lock()
	targets := make([]ClientID, 0, len(d.subscribers))
	for id := range d.subscribers {
		targets = append(targets, id)
	}
	d.mu.Unlock()

	for _, id := range targets {
		if err := d.channel.Send(id, payload); err != nil {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		}
	}
}
