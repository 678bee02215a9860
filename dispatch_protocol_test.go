// dispatch_protocol_test.go - Wire encode/decode round trips

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "testing"

func TestDecodeEnvelopeRejectsBadMagic(t *testing.T) {
	raw := []byte{0, 0, 0, 0, 0, byte(MsgHello)}
	if _, err := DecodeEnvelope(raw); err != errBadMagic {
		t.Fatalf("expected errBadMagic, got %v", err)
	}
}

func TestDecodeEnvelopeRejectsShortPacket(t *testing.T) {
	if _, err := DecodeEnvelope([]byte{1, 2, 3}); err != errShortPacket {
		t.Fatalf("expected errShortPacket, got %v", err)
	}
}

func TestWindowInitEnvelopeType(t *testing.T) {
	raw := EncodeWindowInit(WindowID(7), 640, 480, 3)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.Type != MsgWindowInit {
		t.Fatalf("type = %d, want %d", env.Type, MsgWindowInit)
	}
}

func TestWindowMoveRoundTrip(t *testing.T) {
	raw := encodeWindowMoveForTest(WindowID(3), 100, 200)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	mv, err := DecodeWindowMove(env.Payload)
	if err != nil {
		t.Fatalf("DecodeWindowMove: %v", err)
	}
	if mv.WID != 3 || mv.X != 100 || mv.Y != 200 {
		t.Fatalf("WindowMove = %+v, want WID=3 X=100 Y=200", mv)
	}
}

// encodeWindowMoveForTest mirrors the client-side encoder the server only
// decodes (there is no EncodeWindowMove in the production wire helpers,
// since the server never sends WINDOW_MOVE).
func encodeWindowMoveForTest(wid WindowID, x, y int32) []byte {
	var hdr [6]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(ProtocolMagic>>24), byte(ProtocolMagic>>16), byte(ProtocolMagic>>8), byte(ProtocolMagic)
	hdr[4], hdr[5] = byte(MsgWindowMove>>8), byte(MsgWindowMove)
	b := append([]byte{}, hdr[:]...)
	w := uint32(wid)
	b = append(b, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	b = append(b, byte(x>>24), byte(x>>16), byte(x>>8), byte(x))
	b = append(b, byte(y>>24), byte(y>>16), byte(y>>8), byte(y))
	return b
}

func TestKeyEventRoundTrip(t *testing.T) {
	raw := EncodeKeyEvent(42, 0b0101, true)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	ev, err := DecodeKeyEvent(env.Payload)
	if err != nil {
		t.Fatalf("DecodeKeyEvent: %v", err)
	}
	if ev.Keycode != 42 || ev.Modifiers != 0b0101 || !ev.Pressed {
		t.Fatalf("KeyEvent round trip mismatch: %+v", ev)
	}
}

func TestMouseEventRoundTrip(t *testing.T) {
	raw := EncodeMouseEvent(300, -15, 1<<ButtonLeft)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	ev, err := DecodeMouseEvent(env.Payload)
	if err != nil {
		t.Fatalf("DecodeMouseEvent: %v", err)
	}
	if ev.X != 300 || ev.Y != -15 || ev.Buttons != 1<<ButtonLeft {
		t.Fatalf("MouseEvent round trip mismatch: %+v", ev)
	}
}

func TestWindowAdvertiseTerminatorIsWIDZero(t *testing.T) {
	raw := EncodeWindowAdvertise(nil, false)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	adv, err := DecodeWindowAdvertise(env.Payload)
	if err != nil {
		t.Fatalf("DecodeWindowAdvertise: %v", err)
	}
	if adv.WID != 0 || adv.Flags != 0 {
		t.Fatalf("terminator advertisement should be all-zero, got %+v", adv)
	}
}

func TestWindowAdvertiseSetsFocusedFlag(t *testing.T) {
	w := &Window{WID: 9, ClientFlags: 0x1}
	raw := EncodeWindowAdvertise(w, true)
	env, _ := DecodeEnvelope(raw)
	adv, err := DecodeWindowAdvertise(env.Payload)
	if err != nil {
		t.Fatalf("DecodeWindowAdvertise: %v", err)
	}
	if adv.Flags&clientFlagFocused == 0 {
		t.Fatalf("expected clientFlagFocused set, got flags=%#x", adv.Flags)
	}
	if adv.Flags&0x1 == 0 {
		t.Fatalf("expected original ClientFlags bit preserved, got flags=%#x", adv.Flags)
	}
}

func TestKeyBindRoundTrip(t *testing.T) {
	raw := encodeKeyBindForTest(1<<2, 99, ResponseSteal)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	kb, err := DecodeKeyBind(env.Payload)
	if err != nil {
		t.Fatalf("DecodeKeyBind: %v", err)
	}
	if kb.Mods != 1<<2 || kb.Key != 99 || kb.Response != byte(ResponseSteal) {
		t.Fatalf("KeyBind round trip mismatch: %+v", kb)
	}
}

// encodeKeyBindForTest mirrors the client-side encoder the server only
// decodes (there is no EncodeKeyBind in the production wire helpers, since
// the server never sends KEY_BIND).
func encodeKeyBindForTest(mods, key uint32, response byte) []byte {
	var b []byte
	var hdr [6]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(ProtocolMagic>>24), byte(ProtocolMagic>>16), byte(ProtocolMagic>>8), byte(ProtocolMagic)
	hdr[4], hdr[5] = byte(MsgKeyBind>>8), byte(MsgKeyBind)
	b = append(b, hdr[:]...)
	b = append(b, byte(mods>>24), byte(mods>>16), byte(mods>>8), byte(mods))
	b = append(b, byte(key>>24), byte(key>>16), byte(key>>8), byte(key))
	b = append(b, response)
	return b
}
