// transport.go - Client packet channel contract and default Unix datagram transport

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"sync"
)

// Packet is one length-prefixed datagram tagged with the source client that
// sent it, as delivered by the transport. size == 0 signals client
// disconnect per spec.md §4.E.
type Packet struct {
	Source  ClientID
	Payload []byte
}

// ClientChannel is the local datagram transport contract spec.md §1 declares out
// of scope beyond this shape: exchange of length-prefixed packets tagged
// with a source identifier.
type ClientChannel interface {
	Recv(ctx context.Context) (Packet, error)
	Send(dst ClientID, payload []byte) error
	Close() error
}

// UnixgramChannel is the default transport: one packet per Unix domain
// datagram, sent and received as-is with no length prefix added (the
// datagram boundary carries the length; EncodeLength is not used here).
// No ecosystem library in the
// retrieval pack packages "local datagram transport with a source
// identifier" as a ready-made abstraction, so this talks to stdlib net
// directly (see DESIGN.md).
type UnixgramChannel struct {
	path string
	conn *net.UnixConn

	mu      sync.Mutex
	clients map[ClientID]*net.UnixAddr
	nextID  ClientID
	addrIdx map[string]ClientID
}

// NewUnixgramChannel binds a Unix datagram socket at path, removing any
// stale socket file left over from a previous run.
func NewUnixgramChannel(path string) (*UnixgramChannel, error) {
	_ = os.Remove(path)
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", path, err)
	}
	return &UnixgramChannel{
		path:    path,
		conn:    conn,
		clients: make(map[ClientID]*net.UnixAddr),
		addrIdx: make(map[string]ClientID),
	}, nil
}

const maxPacketSize = 64 * 1024

// Recv blocks for the next datagram and tags it with a stable per-peer
// ClientID, assigning a new one the first time a peer address is seen.
func (c *UnixgramChannel) Recv(ctx context.Context) (Packet, error) {
	buf := make([]byte, maxPacketSize)
	type result struct {
		n    int
		addr *net.UnixAddr
		err  error
	}
	done := make(chan result, 1)
	go func() {
		n, addr, err := c.conn.ReadFromUnix(buf)
		done <- result{n, addr, err}
	}()

	select {
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Packet{}, r.err
		}
		src := c.sourceFor(r.addr)
		payload := make([]byte, r.n)
		copy(payload, buf[:r.n])
		return Packet{Source: src, Payload: payload}, nil
	}
}

func (c *UnixgramChannel) sourceFor(addr *net.UnixAddr) ClientID {
	key := addr.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.addrIdx[key]; ok {
		return id
	}
	c.nextID++
	id := c.nextID
	c.addrIdx[key] = id
	c.clients[id] = addr
	return id
}

// Send writes a reply back to the client previously seen as dst.
func (c *UnixgramChannel) Send(dst ClientID, payload []byte) error {
	c.mu.Lock()
	addr, ok := c.clients[dst]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: unknown client %d", dst)
	}
	_, err := c.conn.WriteToUnix(payload, addr)
	return err
}

func (c *UnixgramChannel) Close() error {
	err := c.conn.Close()
	_ = os.Remove(c.path)
	return err
}

// EncodeLength prefixes payload with a 4-byte big-endian length, for
// transports (e.g. stream sockets) that need explicit framing. The default
// UnixgramChannel does not need this — datagrams are already message-
// delimited — but it is exposed for alternative ClientChannel implementations.
func EncodeLength(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}
