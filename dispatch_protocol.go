// dispatch_protocol.go - Wire message types and (de)serialization

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ProtocolMagic begins every packet payload. Packets with a mismatched
// magic are dropped (spec.md §4.E, §7).
const ProtocolMagic uint32 = 0x57494E44 // "WIND"

// Message types, client->server and server->client alike (spec.md §4.E).
const (
	MsgHello uint16 = iota + 1
	MsgWelcome
	MsgWindowNew
	MsgWindowInit
	MsgFlip
	MsgFlipRegion
	MsgKeyEvent
	MsgMouseEvent
	MsgWindowMove
	MsgWindowClose
	MsgWindowStack
	MsgResizeRequest
	MsgResizeOffer
	MsgResizeAccept
	MsgResizeBufID
	MsgResizeDone
	MsgQueryWindows
	MsgWindowAdvertise
	MsgSubscribe
	MsgUnsubscribe
	MsgSessionEnd
	MsgWindowFocus
	MsgKeyBind
	MsgWindowDragStart
	MsgWindowUpdateShape
	// Outbound-only, input-driven client notifications (spec.md §4.D).
	MsgMouseDown
	MsgMouseMove
	MsgMouseLeave
	MsgMouseEnter
	MsgMouseClick
	MsgMouseRaise
	MsgMouseDrag
	MsgFocusChange
)

// MouseButton identifiers, as carried in MOUSE_EVENT payloads.
const (
	ButtonLeft = iota
	ButtonMiddle
	ButtonRight
)

// KeyBindResponse values for KEY_BIND (spec.md §3).
const (
	ResponsePassThrough = iota
	ResponseSteal
)

var errShortPacket = errors.New("protocol: packet too short")
var errBadMagic = errors.New("protocol: bad magic")

// Envelope is a decoded message: type plus raw remaining payload, still to
// be unmarshalled by the specific decoder for MsgType.
type Envelope struct {
	Type    uint16
	Payload []byte
}

// DecodeEnvelope validates the magic and splits off the message type.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) < 6 {
		return Envelope{}, errShortPacket
	}
	magic := binary.BigEndian.Uint32(raw[0:4])
	if magic != ProtocolMagic {
		return Envelope{}, errBadMagic
	}
	return Envelope{Type: binary.BigEndian.Uint16(raw[4:6]), Payload: raw[6:]}, nil
}

func encodeHeader(buf *bytes.Buffer, msgType uint16) {
	var hdr [6]byte
	binary.BigEndian.PutUint32(hdr[0:4], ProtocolMagic)
	binary.BigEndian.PutUint16(hdr[4:6], msgType)
	buf.Write(hdr[:])
}

func putU32(buf *bytes.Buffer, v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); buf.Write(b[:]) }
func putI32(buf *bytes.Buffer, v int32)  { putU32(buf, uint32(v)) }
func putU16(buf *bytes.Buffer, v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); buf.Write(b[:]) }
func putU8(buf *bytes.Buffer, v byte)    { buf.WriteByte(v) }

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
func readI32(r *bytes.Reader) (int32, error) { v, err := readU32(r); return int32(v), err }
func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
func readU8(r *bytes.Reader) (byte, error) { return r.ReadByte() }

// --- Welcome / Hello ---

func EncodeWelcome(screenW, screenH int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgWelcome)
	putI32(&buf, screenW)
	putI32(&buf, screenH)
	return buf.Bytes()
}

// --- WindowNew / WindowInit ---

type WindowNewMsg struct{ W, H int32 }

func DecodeWindowNew(p []byte) (WindowNewMsg, error) {
	r := bytes.NewReader(p)
	w, err := readI32(r)
	if err != nil {
		return WindowNewMsg{}, err
	}
	h, err := readI32(r)
	return WindowNewMsg{W: w, H: h}, err
}

func EncodeWindowInit(wid WindowID, w, h int32, bufid int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgWindowInit)
	putU32(&buf, uint32(wid))
	putI32(&buf, w)
	putI32(&buf, h)
	putI32(&buf, bufid)
	return buf.Bytes()
}

// --- Flip / FlipRegion ---

func DecodeFlip(p []byte) (WindowID, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	return WindowID(wid), err
}

type FlipRegionMsg struct {
	WID        WindowID
	X, Y, W, H int32
}

func DecodeFlipRegion(p []byte) (FlipRegionMsg, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return FlipRegionMsg{}, err
	}
	x, err := readI32(r)
	if err != nil {
		return FlipRegionMsg{}, err
	}
	y, err := readI32(r)
	if err != nil {
		return FlipRegionMsg{}, err
	}
	w, err := readI32(r)
	if err != nil {
		return FlipRegionMsg{}, err
	}
	h, err := readI32(r)
	return FlipRegionMsg{WindowID(wid), x, y, w, h}, err
}

// --- WindowMove ---

type WindowMoveMsg struct {
	WID  WindowID
	X, Y int32
}

func DecodeWindowMove(p []byte) (WindowMoveMsg, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return WindowMoveMsg{}, err
	}
	x, err := readI32(r)
	if err != nil {
		return WindowMoveMsg{}, err
	}
	y, err := readI32(r)
	return WindowMoveMsg{WindowID(wid), x, y}, err
}

// --- WindowClose / WindowFocus / WindowDragStart (all wid-only) ---

func DecodeWID(p []byte) (WindowID, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	return WindowID(wid), err
}

// --- WindowStack ---

type WindowStackMsg struct {
	WID  WindowID
	Band Band
}

func DecodeWindowStack(p []byte) (WindowStackMsg, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return WindowStackMsg{}, err
	}
	b, err := readU8(r)
	return WindowStackMsg{WindowID(wid), Band(b)}, err
}

// --- Resize handshake ---

type ResizeDims struct {
	WID  WindowID
	W, H int32
}

func DecodeResizeDims(p []byte) (ResizeDims, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return ResizeDims{}, err
	}
	w, err := readI32(r)
	if err != nil {
		return ResizeDims{}, err
	}
	h, err := readI32(r)
	return ResizeDims{WindowID(wid), w, h}, err
}

func EncodeResizeOffer(wid WindowID, w, h, flags int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgResizeOffer)
	putU32(&buf, uint32(wid))
	putI32(&buf, w)
	putI32(&buf, h)
	putI32(&buf, flags)
	return buf.Bytes()
}

func EncodeResizeBufID(wid WindowID, w, h, bufid int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgResizeBufID)
	putU32(&buf, uint32(wid))
	putI32(&buf, w)
	putI32(&buf, h)
	putI32(&buf, bufid)
	return buf.Bytes()
}

// --- WindowAdvertise ---

type WindowAdvertiseMsg struct {
	WID     WindowID
	Flags   uint32
	Offsets [6]uint32
	Strings []byte
}

func DecodeWindowAdvertise(p []byte) (WindowAdvertiseMsg, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return WindowAdvertiseMsg{}, err
	}
	flags, err := readU32(r)
	if err != nil {
		return WindowAdvertiseMsg{}, err
	}
	var offsets [6]uint32
	for i := range offsets {
		offsets[i], err = readU32(r)
		if err != nil {
			return WindowAdvertiseMsg{}, err
		}
	}
	strLen, err := readU32(r)
	if err != nil {
		return WindowAdvertiseMsg{}, err
	}
	strs := make([]byte, strLen)
	if strLen > 0 {
		if _, err := io.ReadFull(r, strs); err != nil {
			return WindowAdvertiseMsg{}, err
		}
	}
	return WindowAdvertiseMsg{WindowID(wid), flags, offsets, strs}, nil
}

func EncodeWindowAdvertise(w *Window, focused bool) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgWindowAdvertise)
	if w == nil {
		// Terminator advertisement, wid == 0.
		putU32(&buf, 0)
		putU32(&buf, 0)
		for i := 0; i < 6; i++ {
			putU32(&buf, 0)
		}
		putU32(&buf, 0)
		return buf.Bytes()
	}
	flags := w.ClientFlags
	if focused {
		flags |= clientFlagFocused
	}
	putU32(&buf, uint32(w.WID))
	putU32(&buf, flags)
	for _, o := range w.ClientOffsets {
		putU32(&buf, o)
	}
	putU32(&buf, uint32(len(w.ClientStrings)))
	buf.Write(w.ClientStrings)
	return buf.Bytes()
}

// clientFlagFocused is OR'd synthetically into the advertised flags when the
// window is the current focus (spec.md §4.E).
const clientFlagFocused uint32 = 1 << 31

// --- KeyBind ---

type KeyBindMsg struct {
	Mods, Key uint32
	Response  byte
}

func DecodeKeyBind(p []byte) (KeyBindMsg, error) {
	r := bytes.NewReader(p)
	mods, err := readU32(r)
	if err != nil {
		return KeyBindMsg{}, err
	}
	key, err := readU32(r)
	if err != nil {
		return KeyBindMsg{}, err
	}
	resp, err := readU8(r)
	return KeyBindMsg{mods, key, resp}, err
}

// --- WindowUpdateShape ---

type UpdateShapeMsg struct {
	WID       WindowID
	Threshold byte
}

func DecodeUpdateShape(p []byte) (UpdateShapeMsg, error) {
	r := bytes.NewReader(p)
	wid, err := readU32(r)
	if err != nil {
		return UpdateShapeMsg{}, err
	}
	th, err := readU8(r)
	return UpdateShapeMsg{WindowID(wid), th}, err
}

// --- KeyEvent / MouseEvent (input source packets) ---

type KeyEventMsg struct {
	Keycode   uint32
	Modifiers uint32
	Pressed   bool
}

func DecodeKeyEvent(p []byte) (KeyEventMsg, error) {
	r := bytes.NewReader(p)
	kc, err := readU32(r)
	if err != nil {
		return KeyEventMsg{}, err
	}
	mods, err := readU32(r)
	if err != nil {
		return KeyEventMsg{}, err
	}
	pressed, err := readU8(r)
	return KeyEventMsg{kc, mods, pressed != 0}, err
}

func EncodeKeyEvent(keycode, modifiers uint32, pressed bool) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgKeyEvent)
	putU32(&buf, keycode)
	putU32(&buf, modifiers)
	if pressed {
		putU8(&buf, 1)
	} else {
		putU8(&buf, 0)
	}
	return buf.Bytes()
}

type MouseEventMsg struct {
	X, Y    int32 // subpixel screen coordinates (3x scale)
	Buttons uint8 // bitmask: 1<<ButtonLeft | ...
}

func DecodeMouseEvent(p []byte) (MouseEventMsg, error) {
	r := bytes.NewReader(p)
	x, err := readI32(r)
	if err != nil {
		return MouseEventMsg{}, err
	}
	y, err := readI32(r)
	if err != nil {
		return MouseEventMsg{}, err
	}
	buttons, err := readU8(r)
	return MouseEventMsg{x, y, buttons}, err
}

func EncodeMouseEvent(x, y int32, buttons uint8) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgMouseEvent)
	putI32(&buf, x)
	putI32(&buf, y)
	putU8(&buf, buttons)
	return buf.Bytes()
}

// --- Outbound client-local-coordinate notifications ---

func encodeXY(msgType uint16, x, y int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, msgType)
	putI32(&buf, x)
	putI32(&buf, y)
	return buf.Bytes()
}

func EncodeMouseDown(x, y int32) []byte  { return encodeXY(MsgMouseDown, x, y) }
func EncodeMouseMove(x, y int32) []byte  { return encodeXY(MsgMouseMove, x, y) }
func EncodeMouseEnter(x, y int32) []byte { return encodeXY(MsgMouseEnter, x, y) }
func EncodeMouseLeave(x, y int32) []byte { return encodeXY(MsgMouseLeave, x, y) }
func EncodeMouseClick(x, y int32) []byte { return encodeXY(MsgMouseClick, x, y) }

func encode4xy(msgType uint16, ox, oy, nx, ny int32) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, msgType)
	putI32(&buf, ox)
	putI32(&buf, oy)
	putI32(&buf, nx)
	putI32(&buf, ny)
	return buf.Bytes()
}

func EncodeMouseRaise(ox, oy, nx, ny int32) []byte { return encode4xy(MsgMouseRaise, ox, oy, nx, ny) }
func EncodeMouseDrag(ox, oy, nx, ny int32) []byte  { return encode4xy(MsgMouseDrag, ox, oy, nx, ny) }

// FocusChange: param 0 = lost focus, param 1 = gained focus.
func EncodeFocusChange(param byte) []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgFocusChange)
	putU8(&buf, param)
	return buf.Bytes()
}

func EncodeSessionEnd() []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgSessionEnd)
	return buf.Bytes()
}

func EncodeHello() []byte {
	var buf bytes.Buffer
	encodeHeader(&buf, MsgHello)
	return buf.Bytes()
}
