// debugconsole.go - Lua-scriptable debug console, reachable only on its own socket

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// DebugConsole serves a line-oriented introspection shell over a dedicated
// Unix stream socket, never the client transport. Built-in commands are
// handled directly; anything else is evaluated as Lua against a sandboxed
// table of read-only registry accessors.
type DebugConsole struct {
	path     string
	registry *Registry
	damage   *DamageQueue
	input    *InputMachine
	log      zerolog.Logger

	listener net.Listener
}

// NewDebugConsole binds the console socket at path.
func NewDebugConsole(path string, reg *Registry, dq *DamageQueue, in *InputMachine, log zerolog.Logger) (*DebugConsole, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("debugconsole: listen %s: %w", path, err)
	}
	return &DebugConsole{
		path:     path,
		registry: reg,
		damage:   dq,
		input:    in,
		log:      log.With().Str("component", "debugconsole").Logger(),
		listener: ln,
	}, nil
}

// Serve accepts connections until the listener is closed.
func (c *DebugConsole) Serve() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.handleConn(conn)
	}
}

func (c *DebugConsole) Close() error {
	return c.listener.Close()
}

func (c *DebugConsole) handleConn(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	fmt.Fprint(conn, "> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			fmt.Fprint(conn, "> ")
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		out := c.eval(line)
		fmt.Fprintln(conn, out)
		fmt.Fprint(conn, "> ")
	}
}

func (c *DebugConsole) eval(line string) string {
	switch fields := strings.Fields(line); {
	case len(fields) > 0 && fields[0] == "windows":
		return c.dumpWindows()
	case len(fields) > 0 && fields[0] == "damage":
		return c.dumpDamage()
	case len(fields) > 0 && fields[0] == "bind":
		return c.dumpBinds()
	default:
		return c.evalLua(line)
	}
}

func (c *DebugConsole) dumpWindows() string {
	var b strings.Builder
	for _, w := range c.registry.Snapshot() {
		fmt.Fprintf(&b, "wid=%d owner=%d band=%s x=%d y=%d w=%d h=%d rot=%d anim=%d\n",
			w.WID, w.Owner, w.Band, w.X, w.Y, w.Width, w.Height, w.Rotation, w.AnimMode)
	}
	if b.Len() == 0 {
		return "(no windows)"
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *DebugConsole) dumpDamage() string {
	rects := c.damage.Drain()
	if len(rects) == 0 {
		return "(no pending damage)"
	}
	var b strings.Builder
	for _, r := range rects {
		fmt.Fprintf(&b, "x=%d y=%d w=%d h=%d\n", r.X, r.Y, r.W, r.H)
		c.damage.MarkRegion(r.X, r.Y, r.W, r.H)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *DebugConsole) dumpBinds() string {
	if len(c.input.binds) == 0 {
		return "(no bindings)"
	}
	var b strings.Builder
	for key, bind := range c.input.binds {
		fmt.Fprintf(&b, "key=0x%x owner=%d response=%d\n", key, bind.owner, bind.response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// evalLua runs expr against a small sandboxed Lua state exposing read-only
// registry accessors (window_count, damage_count) — never a general
// scripting surface over live mutable state. Only the base, table, string
// and math libraries are opened (no os, io, package or debug), and the
// file-loading dofile/loadfile globals are removed.
func (c *DebugConsole) evalLua(expr string) string {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{{lua.BaseLibName, lua.OpenBase}, {lua.TabLibName, lua.OpenTable}, {lua.StringLibName, lua.OpenString}, {lua.MathLibName, lua.OpenMath}} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)

	L.SetGlobal("window_count", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(len(c.registry.Snapshot())))
		return 1
	}))
	L.SetGlobal("damage_count", L.NewFunction(func(L *lua.LState) int {
		rects := c.damage.Drain()
		for _, r := range rects {
			c.damage.MarkRegion(r.X, r.Y, r.W, r.H)
		}
		L.Push(lua.LNumber(len(rects)))
		return 1
	}))

	if err := L.DoString("return " + expr); err != nil {
		if err2 := L.DoString(expr); err2 != nil {
			return "lua error: " + err.Error()
		}
		return "ok"
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret.String()
}

// RunInteractive drives the console from this process's own stdin/stdout in
// raw mode, mirroring the teacher's TerminalHost byte-at-a-time raw read
// loop, for local debugging without dialing the Unix socket.
func RunInteractive(c *DebugConsole) error {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("debugconsole: raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	reader := bufio.NewReader(os.Stdin)
	var line strings.Builder
	fmt.Fprint(os.Stdout, "\r\n> ")
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case '\r', '\n':
			fmt.Fprint(os.Stdout, "\r\n")
			out := c.eval(strings.TrimSpace(line.String()))
			fmt.Fprint(os.Stdout, strings.ReplaceAll(out, "\n", "\r\n"))
			fmt.Fprint(os.Stdout, "\r\n> ")
			line.Reset()
		case 0x7F, 0x08:
			s := line.String()
			if len(s) > 0 {
				line.Reset()
				line.WriteString(s[:len(s)-1])
				fmt.Fprint(os.Stdout, "\b \b")
			}
		case 0x03: // CTRL+C
			return nil
		default:
			line.WriteByte(b)
			fmt.Fprintf(os.Stdout, "%c", b)
		}
	}
}
