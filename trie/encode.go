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

import "encoding/binary"

// BlockByteSize is the fixed number of bytes one TrieBlock occupies inside
// the mapped file. We do not rely on unsafe struct-over-bytes casting,
// because Go's struct layout (alignment, bool width) is not a portable wire
// format; instead every block is explicitly packed and unpacked with
// encoding/binary, little-endian throughout, matching the header's byte
// order.
const BlockByteSize = 1 + BlockEdges*LabelSize + BlockEdges*4 + BlockEdges*2 + BlockEdges*1 + 4

// marshalBlock packs b into dst, which must be at least BlockByteSize bytes.
func marshalBlock(dst []byte, b *TrieBlock) {
	_ = dst[BlockByteSize-1]

	off := 0
	dst[off] = b.Len
	off++

	for i := 0; i < BlockEdges; i++ {
		copy(dst[off:off+LabelSize], b.Label[i][:])
		off += LabelSize
	}
	for i := 0; i < BlockEdges; i++ {
		binary.LittleEndian.PutUint32(dst[off:off+4], b.Child[i])
		off += 4
	}
	for i := 0; i < BlockEdges; i++ {
		binary.LittleEndian.PutUint16(dst[off:off+2], b.Cost[i])
		off += 2
	}
	for i := 0; i < BlockEdges; i++ {
		if b.IsLeaf[i] {
			dst[off] = 1
		} else {
			dst[off] = 0
		}
		off++
	}
	binary.LittleEndian.PutUint32(dst[off:off+4], b.Next)
}

// unmarshalBlock reads a TrieBlock out of src, which must be at least
// BlockByteSize bytes.
func unmarshalBlock(src []byte) TrieBlock {
	_ = src[BlockByteSize-1]

	var b TrieBlock
	off := 0
	b.Len = src[off]
	off++

	for i := 0; i < BlockEdges; i++ {
		copy(b.Label[i][:], src[off:off+LabelSize])
		off += LabelSize
	}
	for i := 0; i < BlockEdges; i++ {
		b.Child[i] = binary.LittleEndian.Uint32(src[off : off+4])
		off += 4
	}
	for i := 0; i < BlockEdges; i++ {
		b.Cost[i] = binary.LittleEndian.Uint16(src[off : off+2])
		off += 2
	}
	for i := 0; i < BlockEdges; i++ {
		b.IsLeaf[i] = src[off] != 0
		off++
	}
	b.Next = binary.LittleEndian.Uint32(src[off : off+4])

	return b
}
