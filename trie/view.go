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

// View is a stateful prefix walker: {store, current_block}. Every public
// trie operation takes a View; the zero-value-ish View returned by
// BackingStore.View points at the root.
type View struct {
	store      *BackingStore
	block      uint32
	generation uint64
}

// at reads the block this view currently points at, asserting that the
// view was constructed against the store's current mapping generation.
func (v View) at() (TrieBlock, error) {
	if v.generation != v.store.Generation() {
		return TrieBlock{}, ErrStaleView
	}
	v.store.localMu.Lock()
	defer v.store.localMu.Unlock()
	return v.store.readBlock(v.block), nil
}

func (v View) withBlock(block uint32) View {
	return View{store: v.store, block: block, generation: v.generation}
}

// WalkResult is the outcome of Walk: a {NoMatch, LeafMatch, NodeMatch} sum
// type flattened into one struct.
type WalkResult struct {
	Found       bool
	Consumed    int
	Extension   []byte
	ReachedLeaf bool
	Cost        uint16
	next        View // only meaningful when Found && !ReachedLeaf
}

// Next returns the view to continue a greedy descent from after a
// non-leaf match that exhausted the query, letting the caller resume the
// walk from where this one stopped.
func (r WalkResult) Next() View {
	return r.next
}

// Walk performs a read-only prefix traversal starting from v, following at
// each block the edge whose label agrees with the remaining query bytes over
// their common length: the label is a prefix of the remaining query, or the
// remaining query is a prefix of the label.
func Walk(v View, query []byte) (WalkResult, error) {
	if v.store.metrics != nil {
		v.store.metrics.IncWalks()
	}

	consumed := 0
	cur := v

	for {
		block, err := cur.at()
		if err != nil {
			return WalkResult{}, err
		}

		matchedIdx := -1
		for i := 0; i < int(block.Len); i++ {
			e := block.edgeAt(i)
			if e.label.isEmpty() {
				continue
			}
			if !e.label.matchesPrefix(query[consumed:]) {
				continue
			}
			matchedIdx = i
			break
		}

		if matchedIdx == -1 {
			if block.Next == 0 {
				return WalkResult{Found: false}, nil
			}
			cur = cur.withBlock(block.Next)
			continue
		}

		e := block.edgeAt(matchedIdx)
		labelLen := e.label.length()
		remaining := len(query) - consumed
		charsUsed := labelLen
		if remaining < charsUsed {
			charsUsed = remaining
		}

		if e.isLeaf {
			extension := append([]byte(nil), e.label.bytes()[charsUsed:]...)
			consumed += charsUsed
			return WalkResult{
				Found:       true,
				Consumed:    consumed,
				Extension:   extension,
				ReachedLeaf: true,
				Cost:        e.cost,
			}, nil
		}

		consumed += charsUsed
		if consumed == len(query) {
			extension := append([]byte(nil), e.label.bytes()[charsUsed:]...)
			return WalkResult{
				Found:       true,
				Consumed:    consumed,
				Extension:   extension,
				ReachedLeaf: false,
				Cost:        e.cost,
				next:        cur.withBlock(e.child),
			}, nil
		}

		cur = cur.withBlock(e.child)
	}
}

// WalkToEnd follows the lowest-cost edge (index 0, after sort-after-insert
// keeps them ordered ascending by cost) from v, concatenating labels until
// it hits a leaf or an empty block, and returns the accumulated suffix.
// This is the "complete me to the most popular full command" extension
// used by the completion engine.
func WalkToEnd(v View) ([]byte, error) {
	var out []byte
	cur := v

	for {
		block, err := cur.at()
		if err != nil {
			return out, err
		}
		if block.Len == 0 {
			return out, nil
		}

		e := block.edgeAt(0)
		if e.label.isEmpty() {
			// Sentinel: the string already ended at this node.
			return out, nil
		}

		out = append(out, e.label.bytes()...)
		if e.isLeaf {
			return out, nil
		}
		cur = cur.withBlock(e.child)
	}
}

// ChildEdge is one element of the flat stream ChildIterate yields: the
// block it lives in, the edge's index inside that block, and the decoded
// edge itself.
type ChildEdge struct {
	Block uint32
	Index int
	Label InlineString
	Child uint32
	Cost  uint16
	Leaf  bool
}

// ChildIterate walks the sibling chain starting at block, yielding every
// live edge across block, block.Next, block.Next.Next, ... It stops at the
// first block it has already visited, so a corrupted cyclic Next pointer
// cannot hang the caller. The chain is never
// supposed to cycle; this is a defensive backstop, not a relied-upon cycle
// breaker.
func ChildIterate(store *BackingStore, startBlock uint32) ([]ChildEdge, error) {
	var out []ChildEdge

	v := View{store: store, block: startBlock, generation: store.Generation()}
	seen := map[uint32]bool{}

	cur := startBlock
	for {
		if seen[cur] {
			break
		}
		seen[cur] = true

		block, err := v.withBlock(cur).at()
		if err != nil {
			return nil, err
		}

		for i := 0; i < int(block.Len); i++ {
			e := block.edgeAt(i)
			out = append(out, ChildEdge{
				Block: cur,
				Index: i,
				Label: e.label,
				Child: e.child,
				Cost:  e.cost,
				Leaf:  e.isLeaf,
			})
		}

		if block.Next == 0 {
			break
		}
		cur = block.Next
	}

	return out, nil
}
