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
	"encoding/binary"
	"unsafe"
)

// Magic is the 4-byte file signature, spelling "frog".
var Magic = [4]byte{'f', 'r', 'o', 'g'}

// Version is the current on-disk format version. Bumping it invalidates
// every file written by an older build.
const Version byte = 1

// wordSize is sizeof(usize) on the host platform, used to size the
// live-block counter field so it matches a native platform-width unsigned
// integer rather than a fixed 32 or 64 bits.
const wordSize = int(unsafe.Sizeof(uintptr(0)))

// headerSizeFor returns the fixed byte prefix before the block array begins:
// magic(4) + version(1) + pad(3) + size_in_bytes(4) + pad(4) + len(wordSize).
func headerSizeFor() int {
	return 16 + wordSize
}

// header mirrors the fixed byte prefix at the start of the backing file. It
// is only ever read from / written to the mapped bytes directly; this
// struct is a convenience view, never serialized as a Go struct.
type header struct {
	magic       [4]byte
	version     byte
	sizeInBytes int32
	length      uint64 // stored in wordSize bytes on disk, widened in memory
}

func readHeader(buf []byte) header {
	var h header
	copy(h.magic[:], buf[0:4])
	h.version = buf[4]
	h.sizeInBytes = int32(binary.LittleEndian.Uint32(buf[8:12]))
	h.length = readWord(buf[16 : 16+wordSize])
	return h
}

func writeHeaderPrefix(buf []byte) {
	copy(buf[0:4], Magic[:])
	buf[4] = Version
	buf[5], buf[6], buf[7] = 0, 0, 0
	// size_in_bytes and padding at [8:16) are filled in by the caller once
	// the real file size is known.
}

func writeSizeInBytes(buf []byte, size int32) {
	binary.LittleEndian.PutUint32(buf[8:12], uint32(size))
	buf[12], buf[13], buf[14], buf[15] = 0, 0, 0, 0
}

func writeLen(buf []byte, length uint64) {
	writeWord(buf[16:16+wordSize], length)
}

func readWord(buf []byte) uint64 {
	if wordSize == 8 {
		return binary.LittleEndian.Uint64(buf)
	}
	return uint64(binary.LittleEndian.Uint32(buf))
}

func writeWord(buf []byte, v uint64) {
	if wordSize == 8 {
		binary.LittleEndian.PutUint64(buf, v)
		return
	}
	binary.LittleEndian.PutUint32(buf, uint32(v))
}

// blockOffset returns the byte offset of block index i within the file.
func blockOffset(i uint32) int {
	return headerSizeFor() + int(i)*BlockByteSize
}

// capacityFor returns how many blocks fit in a file of the given size.
func capacityFor(sizeInBytes int32) uint64 {
	avail := int64(sizeInBytes) - int64(headerSizeFor())
	if avail < 0 {
		return 0
	}
	return uint64(avail) / uint64(BlockByteSize)
}
