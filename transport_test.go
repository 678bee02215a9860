// transport_test.go - Unix datagram channel round trip

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUnixgramChannelRecvAssignsStableClientID(t *testing.T) {
	dir := t.TempDir()
	serverPath := filepath.Join(dir, "server.sock")
	clientPath := filepath.Join(dir, "client.sock")

	ch, err := NewUnixgramChannel(serverPath)
	if err != nil {
		t.Fatalf("NewUnixgramChannel: %v", err)
	}
	defer ch.Close()

	clientConn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: clientPath, Net: "unixgram"})
	if err != nil {
		t.Fatalf("client listen: %v", err)
	}
	defer clientConn.Close()
	defer os.Remove(clientPath)

	if _, err := clientConn.WriteToUnix([]byte("hello"), &net.UnixAddr{Name: serverPath, Net: "unixgram"}); err != nil {
		t.Fatalf("client write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pkt1, err := ch.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(pkt1.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", pkt1.Payload, "hello")
	}

	if _, err := clientConn.WriteToUnix([]byte("again"), &net.UnixAddr{Name: serverPath, Net: "unixgram"}); err != nil {
		t.Fatalf("client write 2: %v", err)
	}
	pkt2, err := ch.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv 2: %v", err)
	}
	if pkt2.Source != pkt1.Source {
		t.Fatalf("the same peer address should map to a stable ClientID: %d != %d", pkt2.Source, pkt1.Source)
	}

	if err := ch.Send(pkt1.Source, []byte("reply")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 64)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("client read reply: %v", err)
	}
	if string(buf[:n]) != "reply" {
		t.Fatalf("reply = %q, want %q", buf[:n], "reply")
	}
}

func TestUnixgramChannelSendUnknownClientErrors(t *testing.T) {
	dir := t.TempDir()
	ch, err := NewUnixgramChannel(filepath.Join(dir, "server.sock"))
	if err != nil {
		t.Fatalf("NewUnixgramChannel: %v", err)
	}
	defer ch.Close()

	if err := ch.Send(ClientID(9999), []byte("x")); err == nil {
		t.Fatalf("Send to an unseen client should error")
	}
}

func TestEncodeLengthPrefixesBigEndianLength(t *testing.T) {
	out := EncodeLength([]byte("abc"))
	if len(out) != 4+3 {
		t.Fatalf("length = %d, want 7", len(out))
	}
	if out[0] != 0 || out[1] != 0 || out[2] != 0 || out[3] != 3 {
		t.Fatalf("length prefix = %v, want [0 0 0 3]", out[:4])
	}
	if string(out[4:]) != "abc" {
		t.Fatalf("payload = %q, want %q", out[4:], "abc")
	}
}
