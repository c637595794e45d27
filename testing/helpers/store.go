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

// Package helpers collects shared test fixtures for backing stores and
// in-memory databases used across the trie and completion test suites.
package helpers

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/danslocombe/fcmd-sub000/trie"
)

// TempStore opens a fresh BackingStore inside a t.TempDir, closing it
// automatically on test cleanup.
func TempStore(t *testing.T) *trie.BackingStore {
	t.Helper()

	dir := t.TempDir()
	store, err := trie.Open(zerolog.Nop(), &dir)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}
