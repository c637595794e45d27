// Copyright 2021 Alvalor S.A.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

//go:build linux || darwin

package trie

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is a named, cross-process mutex keyed on a path, implemented
// with flock(2). Unlike an in-process sync.Mutex it is visible to every
// process that opens the same path, which is what lets concurrent shells
// coordinate a resize.
type fileLock struct {
	file *os.File
}

func newFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileLock{file: f}, nil
}

// Lock blocks until the exclusive lock is acquired.
func (l *fileLock) Lock() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_EX)
}

// Unlock releases the exclusive lock.
func (l *fileLock) Unlock() error {
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}

func (l *fileLock) Close() error {
	return l.file.Close()
}

// counterFile is a small flock-guarded file holding a little-endian uint64.
// It backs both the unload/reload named events (the counter is a
// generation number bumped on each signal) and the counting semaphore (the
// counter is the live-peer count). Named OS event/semaphore primitives are
// not portably exposed from Go's standard library, so peers observe state
// transitions by polling this file under its own short-lived flock, with a
// short backoff between retries.
type counterFile struct {
	path string
}

func newCounterFile(path string) (*counterFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < 8 {
		if err := f.Truncate(8); err != nil {
			return nil, err
		}
	}
	return &counterFile{path: path}, nil
}

func (c *counterFile) withLock(fn func(f *os.File) error) error {
	f, err := os.OpenFile(c.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(f)
}

func (c *counterFile) read() (uint64, error) {
	var v uint64
	err := c.withLock(func(f *os.File) error {
		buf := make([]byte, 8)
		_, err := f.ReadAt(buf, 0)
		if err != nil {
			return err
		}
		v = binary.LittleEndian.Uint64(buf)
		return nil
	})
	return v, err
}

func (c *counterFile) write(v uint64) error {
	return c.withLock(func(f *os.File) error {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v)
		_, err := f.WriteAt(buf, 0)
		return err
	})
}

// add atomically adds delta (which may be negative) and returns the new
// value.
func (c *counterFile) add(delta int64) (uint64, error) {
	var v uint64
	err := c.withLock(func(f *os.File) error {
		buf := make([]byte, 8)
		_, err := f.ReadAt(buf, 0)
		if err != nil {
			return err
		}
		v = binary.LittleEndian.Uint64(buf)
		v = uint64(int64(v) + delta)
		binary.LittleEndian.PutUint64(buf, v)
		_, err = f.WriteAt(buf, 0)
		return err
	})
	return v, err
}
