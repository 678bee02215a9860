// main.go - Main entry point for the compositor

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

func parseGeometry(s string) (w, h int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		parts = strings.SplitN(s, "X", 2)
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid geometry %q, want WxH", s)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("geometry %q must be positive", s)
	}
	return w, h, nil
}

func main() {
	nested := flag.Bool("n", false, "nested naming: ident and sockets use compositor-nest-<pid> (still opens its own window)")
	flag.BoolVar(nested, "nest", false, "alias for -n")
	geometry := flag.String("g", "1280x800", "virtual framebuffer size, WxH")
	flag.StringVar(geometry, "geometry", "1280x800", "alias for -g")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: compositor [-n|--nest] [-g|--geometry WxH] [-h|--help] [-- login-command [args...]]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	w, h, err := parseGeometry(*geometry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compositor: %v\n", err)
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := ServerConfig{
		Nested:       *nested,
		ScreenW:      w,
		ScreenH:      h,
		SocketPath:   defaultSocketPath(*nested),
		ConsolePath:  defaultConsolePath(*nested),
		LoginCommand: flag.Args(),
	}

	srv, err := NewServer(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("compositor exited with error")
		os.Exit(1)
	}
}

func defaultSocketPath(nested bool) string {
	return "/tmp/" + serverIdent(nested) + ".sock"
}

func defaultConsolePath(nested bool) string {
	return "/tmp/" + serverIdent(nested) + ".debug.sock"
}
