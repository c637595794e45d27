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

// sortChain bubble-sorts the flattened list of live edges across the
// sibling chain rooted at headBlock, ascending by cost. It compares with >=
// rather than >, so edges with equal cost swap on every pass and, whenever
// a tie is present, all len(edges) passes run. The final order of tied
// edges depends on the parity of those passes and on their positions, so
// the sort is not idempotent and a recently touched edge that ties with
// another is not guaranteed to end up in front of it (two tied edges that
// make up the whole chain keep their original order).
func sortChain(store *BackingStore, headBlock uint32) error {
	refs, edges, err := collectChain(store, headBlock)
	if err != nil {
		return err
	}
	if len(edges) < 2 {
		return nil
	}

	for pass := 0; pass < len(edges); pass++ {
		swapped := false
		for i := 0; i+1 < len(edges); i++ {
			if edges[i].cost >= edges[i+1].cost {
				edges[i], edges[i+1] = edges[i+1], edges[i]
				swapped = true
			}
		}
		if !swapped {
			break
		}
	}

	return writeChain(store, refs, edges)
}

type chainRef struct {
	block uint32
	index int
}

// collectChain reads every block in the sibling chain once and returns the
// flattened (ref, edge) pairs in chain order.
func collectChain(store *BackingStore, headBlock uint32) ([]chainRef, []edge, error) {
	var refs []chainRef
	var edges []edge

	cur := headBlock
	seen := map[uint32]bool{}
	for {
		if seen[cur] {
			break
		}
		seen[cur] = true

		off := blockOffset(cur)
		store.localMu.Lock()
		b := unmarshalBlock(store.mapping[off : off+BlockByteSize])
		store.localMu.Unlock()

		for i := 0; i < int(b.Len); i++ {
			refs = append(refs, chainRef{block: cur, index: i})
			edges = append(edges, b.edgeAt(i))
		}

		if b.Next == 0 {
			break
		}
		cur = b.Next
	}

	return refs, edges, nil
}

// writeChain writes edges back to the blocks/indices named by refs. Blocks
// are re-read and re-written one at a time so a block touched by more than
// one ref in the list is only marshaled once per pass... in practice we
// batch all writes for the same block together to avoid clobbering earlier
// writes within that block.
func writeChain(store *BackingStore, refs []chainRef, edges []edge) error {
	byBlock := map[uint32]TrieBlock{}
	order := []uint32{}

	for idx, ref := range refs {
		b, ok := byBlock[ref.block]
		if !ok {
			off := blockOffset(ref.block)
			store.localMu.Lock()
			b = unmarshalBlock(store.mapping[off : off+BlockByteSize])
			store.localMu.Unlock()
			order = append(order, ref.block)
		}
		b.setEdge(ref.index, edges[idx])
		byBlock[ref.block] = b
	}

	for _, blockIdx := range order {
		b := byBlock[blockIdx]
		store.writeBlock(blockIdx, &b)
	}

	return nil
}
