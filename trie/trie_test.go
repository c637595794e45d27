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

package trie_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danslocombe/fcmd-sub000/testing/helpers"
	"github.com/danslocombe/fcmd-sub000/trie"
)

func zeroLog() zerolog.Logger {
	return zerolog.Nop()
}

// writeRawFile writes a minimal header-sized file with the given magic and
// version bytes, padded with zeros, so Open's corruption checks trigger
// before any field past the header is ever read.
func writeRawFile(t *testing.T, path string, magic []byte, version byte) {
	t.Helper()
	buf := make([]byte, 64)
	copy(buf[0:4], magic)
	buf[4] = version
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestWalk_RoundTrip(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))

	result, err := trie.Walk(view, []byte("bug"))
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, 3, result.Consumed)
	assert.Empty(t, result.Extension)
	assert.True(t, result.ReachedLeaf)
}

func TestWalk_SiblingSplit(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))
	require.NoError(t, trie.Insert(view, []byte("ben"), trie.MaxCost))

	t.Run("shared prefix extends", func(t *testing.T) {
		result, err := trie.Walk(view, []byte("be"))
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, 2, result.Consumed)
		assert.Equal(t, []byte("n"), result.Extension)
	})

	t.Run("single char matches without extension", func(t *testing.T) {
		result, err := trie.Walk(view, []byte("b"))
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, 1, result.Consumed)
		assert.Empty(t, result.Extension)
	})
}

func TestWalk_PrefixOfLongerInsert(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))
	require.NoError(t, trie.Insert(view, []byte("buggin"), trie.MaxCost))

	t.Run("short query", func(t *testing.T) {
		result, err := trie.Walk(view, []byte("bug"))
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, 3, result.Consumed)
		assert.Empty(t, result.Extension)
	})

	t.Run("full longer insert", func(t *testing.T) {
		result, err := trie.Walk(view, []byte("buggin"))
		require.NoError(t, err)
		assert.True(t, result.Found)
		assert.Equal(t, 6, result.Consumed)
		assert.Empty(t, result.Extension)
	})
}

func TestWalk_CrossesLabelCapacity(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("longlonglongstring"), trie.MaxCost))

	result, err := trie.Walk(view, []byte("long"))
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, 4, result.Consumed)
	assert.Equal(t, []byte("long"), result.Extension)
	assert.False(t, result.ReachedLeaf)
}

func TestWalk_CaseSensitive(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("lower"), 10))
	require.NoError(t, trie.Insert(view, []byte("LOWER"), 20))

	lower, err := trie.Walk(view, []byte("lower"))
	require.NoError(t, err)
	upper, err := trie.Walk(view, []byte("LOWER"))
	require.NoError(t, err)

	require.True(t, lower.Found)
	require.True(t, upper.Found)
	assert.NotEqual(t, lower.Cost, upper.Cost)
}

func TestInsert_MonotoneCost(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	const base uint16 = 10
	require.NoError(t, trie.Insert(view, []byte("repeat"), base))

	result, err := trie.Walk(view, []byte("repeat"))
	require.NoError(t, err)
	require.Equal(t, base, result.Cost)

	for k := uint16(1); k <= base; k++ {
		require.NoError(t, trie.Insert(view, []byte("repeat"), base))
		result, err := trie.Walk(view, []byte("repeat"))
		require.NoError(t, err)
		assert.Equal(t, base-k, result.Cost, "after %d duplicate inserts", k)
	}

	// Saturates at zero rather than wrapping.
	require.NoError(t, trie.Insert(view, []byte("repeat"), base))
	result, err = trie.Walk(view, []byte("repeat"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), result.Cost)
}

func TestInsert_BoundedBlockGrowth(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))
	before := store.Len()

	for i := 0; i < 50; i++ {
		require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))
	}

	after := store.Len()
	assert.LessOrEqual(t, after-before, uint64(2), "duplicate inserts must not grow the block count proportionally to k")
}

func TestInsert_EmptyStringIsNoOp(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	before := store.Len()
	require.NoError(t, trie.Insert(view, []byte(""), trie.MaxCost))
	assert.Equal(t, before, store.Len())

	result, err := trie.Walk(view, []byte(""))
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestChildIterate_OrderedAcrossSiblingChain(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	labels := []string{"0a", "1a", "2a", "3a", "4a", "5a", "6a", "7a", "8a", "9a", "aa", "ba", "ca", "da", "ea", "fa"}
	for i, label := range labels {
		cost := uint16(17 - i)
		require.NoError(t, trie.Insert(view, []byte(label), cost))
	}

	edges, err := trie.ChildIterate(store, trie.RootBlock)
	require.NoError(t, err)
	require.Len(t, edges, len(labels))

	for i := 1; i < len(edges); i++ {
		assert.LessOrEqual(t, edges[i-1].Cost, edges[i].Cost, "child-iteration must visit edges in ascending-cost order")
	}

	seen := map[string]bool{}
	for _, e := range edges {
		seen[e.Label.String()] = true
	}
	for _, label := range labels {
		assert.True(t, seen[label], "missing inserted label %q from iteration", label)
	}
}

func TestWalkToEnd_GreedyLowestCost(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("gitstatus"), 5))
	require.NoError(t, trie.Insert(view, []byte("gitcommit"), 50))

	result, err := trie.Walk(view, []byte("git"))
	require.NoError(t, err)
	require.True(t, result.Found)
	require.False(t, result.ReachedLeaf)

	tail, err := trie.WalkToEnd(result.Next())
	require.NoError(t, err)

	full := append(append([]byte(nil), result.Extension...), tail...)
	assert.Equal(t, "gitstatus", "git"+string(full))
}

func TestWalk_NotFound(t *testing.T) {
	store := helpers.TempStore(t)
	view := store.View()

	require.NoError(t, trie.Insert(view, []byte("bug"), trie.MaxCost))

	result, err := trie.Walk(view, []byte("zzz"))
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestInsert_Determinism(t *testing.T) {
	run := func() (uint64, []uint16) {
		store := helpers.TempStore(t)
		view := store.View()

		rng := helpers.NewGenerator()
		strs, costs := helpers.SampleRandomStrings(rng, 200, 40)

		for i, s := range strs {
			require.NoError(t, trie.Insert(view, []byte(s), costs[i]))
		}

		gotCosts := make([]uint16, len(strs))
		for i, s := range strs {
			result, err := trie.Walk(view, []byte(s))
			require.NoError(t, err)
			require.True(t, result.Found)
			gotCosts[i] = result.Cost
		}

		return store.Len(), gotCosts
	}

	blocksA, costsA := run()
	blocksB, costsB := run()

	assert.Equal(t, blocksA, blocksB)
	assert.Equal(t, costsA, costsB)
}

func TestOpen_CorruptedMagicAndVersion(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		dir := t.TempDir()
		path := dir + "/history.trie"
		writeRawFile(t, path, []byte("bad!"), 1)

		_, err := trie.Open(zeroLog(), &dir)
		require.ErrorIs(t, err, trie.ErrFileCorrupted)
	})

	t.Run("bad version", func(t *testing.T) {
		dir := t.TempDir()
		path := dir + "/history.trie"
		writeRawFile(t, path, trie.Magic[:], trie.Version+1)

		_, err := trie.Open(zeroLog(), &dir)
		require.ErrorIs(t, err, trie.ErrFileCorrupted)
	})
}
