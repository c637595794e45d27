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

// BlockEdges is the number of edges each block can hold before it chains to
// an overflow sibling. Reference implementations called this K.
const BlockEdges = 8

// MaxCost is the base cost assigned to a freshly inserted path; it is the
// maximum value of the 16-bit cost field, so duplicate inserts always have
// room to decrement towards zero.
const MaxCost uint16 = 65535

// RootBlock is the index of the trie's root block. It is guaranteed to
// exist as soon as the backing file exists and can never appear as another
// block's next pointer.
const RootBlock uint32 = 0

// TrieBlock is the fixed-size on-disk record backing one node (plus its
// overflow chain) of the trie. All fields are fixed width, but the struct is
// never mapped directly over file bytes: encode.go packs and unpacks it
// with an explicit byte layout, because Go's struct padding is not a
// portable wire format.
type TrieBlock struct {
	Len     uint8
	Label   [BlockEdges]InlineString
	Child   [BlockEdges]uint32
	Cost    [BlockEdges]uint16
	IsLeaf  [BlockEdges]bool
	Next    uint32
}

// emptyBlock returns a new block with no live edges and no overflow sibling.
func emptyBlock() TrieBlock {
	return TrieBlock{}
}

// edge bundles one block's edge fields for callers that want to treat an
// edge as a value rather than poking at four parallel arrays.
type edge struct {
	label  InlineString
	child  uint32
	cost   uint16
	isLeaf bool
}

func (b *TrieBlock) edgeAt(i int) edge {
	return edge{
		label:  b.Label[i],
		child:  b.Child[i],
		cost:   b.Cost[i],
		isLeaf: b.IsLeaf[i],
	}
}

func (b *TrieBlock) setEdge(i int, e edge) {
	b.Label[i] = e.label
	b.Child[i] = e.child
	b.Cost[i] = e.cost
	b.IsLeaf[i] = e.isLeaf
}

// decrementCost subtracts one from cost, saturating at zero instead of
// wrapping around.
func decrementCost(cost uint16) uint16 {
	if cost == 0 {
		return 0
	}
	return cost - 1
}
