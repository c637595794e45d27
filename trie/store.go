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

package trie

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"
)

const defaultStateFileName = "history.trie"

// initialBlocks is how many blocks the file is sized for on first creation.
const initialBlocks = 64

// BackingStore owns the single memory-mapped file backing the trie.
// Every process that wants to read or write the trie opens its own
// BackingStore over the same path; all of them coordinate growth through
// the named, file-based primitives in lock_unix.go.
type BackingStore struct {
	log zerolog.Logger

	path string
	file *os.File

	writer *fileLock
	unload *counterFile
	reload *counterFile
	peers  *counterFile

	localMu sync.Mutex // "we are using the mapping" advisory lock
	mapping mmap.MMap
	size    int32

	generation uint64 // bumped on every successful remap by this process

	unloadGen  uint64 // last unload generation this process has observed
	retryCap   int
	retrySleep retrySleeper

	metrics *Metrics

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// retrySleeper exists purely so tests can replace the sleep function with
// something that doesn't actually block wall-clock time.
type retrySleeper func(attempt int)

// Open opens (creating if necessary) the trie's backing file inside
// stateDirPath, validates its header, maps it, and starts the background
// goroutine that participates in peer resize protocols. A nil path uses the
// current working directory, matching the CLI's default of using the
// current directory as the state directory.
func Open(log zerolog.Logger, stateDirPath *string) (*BackingStore, error) {
	dir := "."
	if stateDirPath != nil {
		dir = *stateDirPath
	}

	path := filepath.Join(dir, defaultStateFileName)

	s := &BackingStore{
		log:        log.With().Str("component", "trie_store").Str("path", path).Logger(),
		path:       path,
		retryCap:   200,
		retrySleep: defaultRetrySleep,
		metrics:    noopMetrics(),
		stopCh:     make(chan struct{}),
	}

	var err error
	s.writer, err = newFileLock(path + ".wlock")
	if err != nil {
		return nil, fmt.Errorf("could not open writer lock: %w", err)
	}
	s.unload, err = newCounterFile(path + ".unload")
	if err != nil {
		return nil, fmt.Errorf("could not open unload signal: %w", err)
	}
	s.reload, err = newCounterFile(path + ".reload")
	if err != nil {
		return nil, fmt.Errorf("could not open reload signal: %w", err)
	}
	s.peers, err = newCounterFile(path + ".peers")
	if err != nil {
		return nil, fmt.Errorf("could not open peer semaphore: %w", err)
	}

	if err := s.openAndMap(); err != nil {
		return nil, err
	}

	if _, err := s.peers.add(1); err != nil {
		return nil, fmt.Errorf("could not register as a peer: %w", err)
	}

	s.wg.Add(1)
	go s.backgroundLoop()

	return s, nil
}

// WithMetrics attaches a Metrics instance to an already-open store.
func (s *BackingStore) WithMetrics(m *Metrics) {
	s.metrics = m
	s.metrics.SetBlocks(s.Len())
}

func (s *BackingStore) openAndMap() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("could not open state file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("could not stat state file: %w", err)
	}

	if info.Size() == 0 {
		if err := initializeFile(file); err != nil {
			file.Close()
			return fmt.Errorf("could not initialize state file: %w", err)
		}
		info, err = file.Stat()
		if err != nil {
			file.Close()
			return fmt.Errorf("could not stat freshly initialized state file: %w", err)
		}
	}

	m, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	hdr := readHeader(m)
	if hdr.magic != Magic {
		m.Unmap()
		file.Close()
		return fmt.Errorf("%w: bad magic %q", ErrFileCorrupted, hdr.magic)
	}
	if hdr.version != Version {
		m.Unmap()
		file.Close()
		return fmt.Errorf("%w: version %d, want %d", ErrFileCorrupted, hdr.version, Version)
	}
	if int64(hdr.sizeInBytes) > info.Size() {
		m.Unmap()
		file.Close()
		return fmt.Errorf("%w: header declares %d bytes, file is %d", ErrFileTooSmall, hdr.sizeInBytes, info.Size())
	}
	if hdr.length > capacityFor(hdr.sizeInBytes) {
		m.Unmap()
		file.Close()
		return fmt.Errorf("%w: declared length %d exceeds capacity %d", ErrFileTooSmall, hdr.length, capacityFor(hdr.sizeInBytes))
	}

	s.file = file
	s.mapping = m
	s.size = hdr.sizeInBytes
	s.generation++

	return nil
}

// initializeFile writes the header and the empty root block to a brand new
// file.
func initializeFile(file *os.File) error {
	size := int32(headerSizeFor() + initialBlocks*BlockByteSize)
	if err := file.Truncate(int64(size)); err != nil {
		return err
	}

	buf := make([]byte, size)
	writeHeaderPrefix(buf)
	writeSizeInBytes(buf, size)
	writeLen(buf, 1)

	root := emptyBlock()
	marshalBlock(buf[blockOffset(0):blockOffset(0)+BlockByteSize], &root)

	if _, err := file.WriteAt(buf, 0); err != nil {
		return err
	}
	return file.Sync()
}

// Len returns the number of live blocks.
func (s *BackingStore) Len() uint64 {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	return readHeader(s.mapping).length
}

// Generation returns the store's current remap generation.
func (s *BackingStore) Generation() uint64 {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	return s.generation
}

// View returns a fresh view pointing at the root block.
func (s *BackingStore) View() View {
	return View{store: s, block: RootBlock, generation: s.Generation()}
}

// readBlock decodes block i. Callers must already hold, or not need, the
// local advisory lock (reads used by Walk go through View.at, which takes
// the lock itself).
func (s *BackingStore) readBlock(i uint32) TrieBlock {
	off := blockOffset(i)
	return unmarshalBlock(s.mapping[off : off+BlockByteSize])
}

func (s *BackingStore) writeBlock(i uint32, b *TrieBlock) {
	off := blockOffset(i)
	marshalBlock(s.mapping[off:off+BlockByteSize], b)
}

// Close releases this process's registration and unmaps the file.
func (s *BackingStore) Close() error {
	var outerErr error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()

		s.localMu.Lock()
		defer s.localMu.Unlock()

		if _, err := s.peers.add(-1); err != nil {
			outerErr = err
		}
		if s.mapping != nil {
			if err := s.mapping.Unmap(); err != nil && outerErr == nil {
				outerErr = err
			}
		}
		if s.file != nil {
			if err := s.file.Close(); err != nil && outerErr == nil {
				outerErr = err
			}
		}
		if s.writer != nil {
			s.writer.Close()
		}
	})
	return outerErr
}

func defaultRetrySleep(attempt int) {
	sleepBackoff(attempt)
}
