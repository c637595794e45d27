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
	"time"

	"github.com/edsrzf/mmap-go"
)

// growSize doubles the file size.
func growSize(current int32) int32 {
	return current * 2
}

// sleepBackoff is the short-backoff poll interval used while waiting for
// peers to release their view, or for a peer waiting on the writer.
func sleepBackoff(attempt int) {
	d := 2 * time.Millisecond * time.Duration(attempt+1)
	if d > 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	time.Sleep(d)
}

// append adds b as a new block, growing the backing file first if the
// block array is at capacity. It returns the new block's index.
func (s *BackingStore) append(b TrieBlock) (uint32, error) {
	s.localMu.Lock()
	hdr := readHeader(s.mapping)
	capacity := capacityFor(s.size)

	if hdr.length >= capacity {
		s.localMu.Unlock()
		if err := s.resize(); err != nil {
			return 0, err
		}
		s.localMu.Lock()
		hdr = readHeader(s.mapping)
	}

	idx := uint32(hdr.length)
	s.writeBlock(idx, &b)

	newLen := hdr.length + 1
	writeLen(s.mapping, newLen)
	s.localMu.Unlock()

	if s.metrics != nil {
		s.metrics.SetBlocks(newLen)
	}

	return idx, nil
}

// resize runs the cross-process growth protocol: acquire the writer
// mutex, signal every peer to drop its view, wait for them to do so,
// extend the file, remap, publish the new size, signal reload, and finally
// release the mutex. The file's declared size_in_bytes is only updated
// after the new mapping is live, so a process that dies mid-resize leaves
// a file whose header still matches its own bytes on disk.
func (s *BackingStore) resize() error {
	if err := s.writer.Lock(); err != nil {
		return fmt.Errorf("could not acquire writer lock: %w", err)
	}
	defer s.writer.Unlock()

	s.localMu.Lock()
	currentSize := s.size
	s.localMu.Unlock()

	newSize := growSize(currentSize)

	// Step 2/3: raise "unload" and wait for every peer (including this
	// process) to release its view.
	if err := s.dropOwnView(); err != nil {
		return fmt.Errorf("could not drop own view before resize: %w", err)
	}

	unloadGen, err := s.unload.add(1)
	if err != nil {
		return fmt.Errorf("could not raise unload signal: %w", err)
	}
	// Mark this generation as already handled so backgroundLoop doesn't
	// redo the drop/reload/remap sequence for a resize we initiated
	// ourselves.
	s.unloadGen = unloadGen

	if err := s.waitForPeersReleased(); err != nil {
		// Abort: we never got everyone to drop their view. Remap our own
		// view back at the old size so the caller can keep working, and
		// surface a resize failure.
		_ = s.remapAtSize(currentSize)
		if s.metrics != nil {
			s.metrics.IncTimeouts()
		}
		return ErrResizeTimeout
	}

	// Step 4: extend the file and remap at the new size.
	if err := s.file.Truncate(int64(newSize)); err != nil {
		_ = s.remapAtSize(currentSize)
		return fmt.Errorf("could not extend state file: %w", err)
	}
	if err := s.remapAtSize(newSize); err != nil {
		return fmt.Errorf("could not remap after growth: %w", err)
	}

	// Step 5: publish the new size only now that the remap succeeded.
	s.localMu.Lock()
	writeSizeInBytes(s.mapping, newSize)
	s.localMu.Unlock()

	// Step 6: signal reload; peers observe reloadGen and remap themselves.
	if err := s.reload.write(unloadGen); err != nil {
		return fmt.Errorf("could not raise reload signal: %w", err)
	}

	if _, err := s.peers.add(1); err != nil {
		return fmt.Errorf("could not re-register as a peer after resize: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncResizes()
	}

	return nil
}

// dropOwnView releases this process's own mapping and semaphore token, the
// same action the background loop performs on behalf of peers.
func (s *BackingStore) dropOwnView() error {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	if err := s.mapping.Unmap(); err != nil {
		return err
	}
	s.mapping = nil

	_, err := s.peers.add(-1)
	return err
}

// waitForPeersReleased polls the peer semaphore until it reaches zero or
// the retry cap is exceeded.
func (s *BackingStore) waitForPeersReleased() error {
	for attempt := 0; attempt < s.retryCap; attempt++ {
		v, err := s.peers.read()
		if err != nil {
			return err
		}
		if int64(v) <= 0 {
			return nil
		}
		s.retrySleep(attempt)
	}
	return ErrResizeTimeout
}

// remapAtSize remaps the file at the given size and bumps the local
// generation counter.
func (s *BackingStore) remapAtSize(size int32) error {
	s.localMu.Lock()
	defer s.localMu.Unlock()

	m, err := mmap.Map(s.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapFailed, err)
	}

	s.mapping = m
	s.size = size
	s.generation++

	return nil
}

// backgroundLoop is the process-local thread that reacts to other
// processes' resize signals: it drops this process's view when it sees the
// unload generation advance, waits for the matching reload signal, then
// remaps at the new size.
func (s *BackingStore) backgroundLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(10 * time.Millisecond):
		}

		gen, err := s.unload.read()
		if err != nil {
			s.log.Warn().Err(err).Msg("could not poll unload signal")
			continue
		}
		if gen == s.unloadGen {
			continue
		}
		s.unloadGen = gen

		if err := s.dropOwnView(); err != nil {
			s.log.Error().Err(err).Msg("could not drop view for peer resize")
			continue
		}

		newSize, err := s.waitForReload(gen)
		if err != nil {
			s.log.Error().Err(err).Msg("timed out waiting for reload signal")
			continue
		}

		if err := s.remapAtSize(newSize); err != nil {
			s.log.Error().Err(err).Msg("could not remap after peer resize")
			continue
		}

		if _, err := s.peers.add(1); err != nil {
			s.log.Error().Err(err).Msg("could not re-register as a peer")
		}
	}
}

func (s *BackingStore) waitForReload(wantGen uint64) (int32, error) {
	for attempt := 0; attempt < s.retryCap; attempt++ {
		gen, err := s.reload.read()
		if err != nil {
			return 0, err
		}
		if gen == wantGen {
			f, err := fileSize(s.path)
			if err != nil {
				return 0, err
			}
			return f, nil
		}
		s.retrySleep(attempt)
	}
	return 0, ErrResizeTimeout
}
