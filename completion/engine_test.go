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

package completion_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danslocombe/fcmd-sub000/completion"
	"github.com/danslocombe/fcmd-sub000/testing/helpers"
)

func newTestEngine(t *testing.T) *completion.Engine {
	t.Helper()

	store := helpers.TempStore(t)
	engine, err := completion.NewEngine(zerolog.Nop(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return engine
}

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestEngine_QueryEmptyPrefix(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	result, err := engine.Query("", completion.Flags{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEngine_LocalHistoryRoundTrip(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	require.NoError(t, engine.Update("git status"))

	result, err := engine.Query("git st", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte("atus"), result)
}

func TestEngine_GlobalHistoryForPathFreeLines(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	require.NoError(t, engine.Update("echo hello world"))

	// Querying from a different directory still finds the global entry,
	// because it was classified path-free and stored without a cwd prefix.
	dirA := t.TempDir()
	require.NoError(t, os.Chdir(dirA))

	result, err := engine.Query("echo hello", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte(" world"), result)
}

func TestEngine_PathfulLineNeverEntersGlobalHistory(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	existing := "existing-file.txt"
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	require.NoError(t, engine.Update("cat existing-file.txt"))

	otherDir := t.TempDir()
	require.NoError(t, os.Chdir(otherDir))

	result, err := engine.Query("cat existing", completion.Flags{})
	require.NoError(t, err)
	assert.Nil(t, result, "a line referencing a real local path must not leak into global history")
}

func TestEngine_CycleAdvancesPastLocalToGlobal(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	require.NoError(t, engine.Update("build release"))

	otherDir := t.TempDir()
	require.NoError(t, os.Chdir(otherDir))
	require.NoError(t, engine.Update("build release"))

	// From otherDir, both the local entry (recorded just above) and the
	// global entry (recorded in the original directory) match "build".
	// cycleIndex 0 picks local; cycleIndex 1 should fall through to global.
	local, err := engine.Query("build", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte(" release"), local)

	engine.Advance()
	global, err := engine.Query("build", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte(" release"), global)
}

func TestEngine_ResetCycleReturnsToFirstCompleter(t *testing.T) {
	chdirTemp(t)
	engine := newTestEngine(t)

	require.NoError(t, engine.Update("deploy staging"))

	engine.Advance()
	engine.Advance()
	engine.ResetCycle()

	result, err := engine.Query("deploy", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte(" staging"), result)
}

func TestEngine_UnclosedQuoteDisablesDirectoryCompleter(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile("readme.txt", []byte("x"), 0o644))
	engine := newTestEngine(t)

	result, err := engine.Query(`cat "read`, completion.Flags{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEngine_DirectoryCompletionFallsThroughFromHistory(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile("readme.txt", []byte("x"), 0o644))
	engine := newTestEngine(t)

	result, err := engine.Query("cat read", completion.Flags{})
	require.NoError(t, err)
	assert.Equal(t, []byte("me.txt"), result)
}
