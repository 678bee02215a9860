//go:build linux

// shmem.go - Shared-memory region allocator for window framebuffers

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MemfdShm backs each region with a Linux memfd (memfd_create + mmap),
// named per spec.md §6. This is the concrete default for the ShmAllocator
// contract that registry.go depends on; the primitive itself is treated as
// an external collaborator per spec.md §1 — this file is the one place
// that actually talks to the kernel.
type MemfdShm struct{}

// NewMemfdShm constructs the default Linux shared-memory allocator.
func NewMemfdShm() *MemfdShm { return &MemfdShm{} }

// Allocate creates a zeroed named region of the given size and maps it into
// this process's address space.
func (MemfdShm) Allocate(name string, size int) ([]byte, error) {
	if size <= 0 {
		return []byte{}, nil
	}
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create %q: %w", name, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("shmem: ftruncate %q to %d: %w", name, size, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmem: mmap %q: %w", name, err)
	}
	return data, nil
}

// Release unmaps a region previously returned by Allocate.
func (MemfdShm) Release(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munmap(buf)
}
