// server.go - Top-level Server wiring: registry, compositor, dispatcher, console

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// ServerConfig carries the startup parameters parsed by main.go.
type ServerConfig struct {
	Nested       bool
	ScreenW      int
	ScreenH      int
	SocketPath   string
	ConsolePath  string
	LoginCommand []string
}

// Server threads every component together explicitly — there is no
// package-level mutable server state anywhere in this repository
// (spec.md §9).
type Server struct {
	cfg ServerConfig

	ident string

	registry *Registry
	damage   *DamageQueue
	surface  Surface
	front    Frontend
	comp     *Compositor
	input    *InputMachine
	channel  ClientChannel
	dispatch *Dispatcher
	console  *DebugConsole

	log zerolog.Logger

	loginCmd *exec.Cmd
}

// NewServer wires every component per the given configuration but does not
// yet start anything.
func NewServer(cfg ServerConfig, log zerolog.Logger) (*Server, error) {
	ident := serverIdent(cfg.Nested)

	reg := NewRegistry(NewMemfdShm(), ident)
	dq := NewDamageQueue()
	surface := NewImageSurface(cfg.ScreenW, cfg.ScreenH)

	front := Frontend(NewEbitenFrontend(cfg.ScreenW, cfg.ScreenH, 1))

	comp := NewCompositor(reg, dq, surface, front)

	ch, err := NewUnixgramChannel(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("server: transport init: %w", err)
	}

	in := NewInputMachine(reg, dq, nil, cfg.ScreenW, cfg.ScreenH)

	s := &Server{
		cfg:      cfg,
		ident:    ident,
		registry: reg,
		damage:   dq,
		surface:  surface,
		front:    front,
		comp:     comp,
		input:    in,
		channel:  ch,
		log:      log.With().Str("ident", ident).Logger(),
	}

	disp := NewDispatcher(ch, reg, dq, in, comp, int32(cfg.ScreenW), int32(cfg.ScreenH), func() uint64 { return comp.tick }, s.log)
	in.out = disp
	comp.SetOnClose(disp.onWindowCloseComplete)
	comp.SetDebugSource(in.DebugFlags)
	comp.SetPointerSource(in.Pointer)
	in.SetResizeOutlineSink(comp.SetResizeOutline)
	s.dispatch = disp

	if ef, ok := front.(*EbitenFrontend); ok {
		ef.BindInput(in)
	}

	if cfg.ConsolePath != "" {
		console, err := NewDebugConsole(cfg.ConsolePath, reg, dq, in, s.log)
		if err != nil {
			return nil, fmt.Errorf("server: debug console init: %w", err)
		}
		s.console = console
	}

	return s, nil
}

// serverIdent implements spec.md §6: "compositor" fullscreen,
// "compositor-nest-<pid>" nested.
func serverIdent(nested bool) string {
	if !nested {
		return "compositor"
	}
	return fmt.Sprintf("compositor-nest-%d", os.Getpid())
}

// Run starts every subsystem, starts the trailing command if one was given
// (see execLogin), and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.front.Start(); err != nil {
		return fmt.Errorf("server: frontend start: %w", err)
	}

	go s.comp.Run(ctx)

	if s.console != nil {
		go s.console.Serve()
	}

	if err := s.execLogin(); err != nil {
		s.log.Error().Err(err).Msg("login exec failed")
	}

	go func() {
		if err := s.dispatch.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("dispatcher exited")
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

// execLogin starts the trailing command given on the command line, setting
// DISPLAY=<server_ident> in its environment (spec.md §6). With no trailing
// command no client process is started; there is no default login program.
func (s *Server) execLogin() error {
	argv := s.cfg.LoginCommand
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "DISPLAY="+s.ident)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		return err
	}
	s.loginCmd = cmd
	return nil
}

// Shutdown tears down every subsystem: the compositor loop, the debug
// console, the client channel, the frontend, and finally the started
// command's process, which is killed.
func (s *Server) Shutdown() error {
	s.comp.Stop()
	if s.console != nil {
		_ = s.console.Close()
	}
	_ = s.channel.Close()
	_ = s.front.Stop()
	_ = s.front.Close()
	if s.loginCmd != nil && s.loginCmd.Process != nil {
		_ = s.loginCmd.Process.Kill()
	}
	return nil
}
