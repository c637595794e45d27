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

package completion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDirFragment(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantDir    string
		wantSuffix string
	}{
		{"empty token lists cwd", "", ".", ""},
		{"bare fragment lists cwd", "read", ".", "read"},
		{"nested path", "sub/dir/fil", "sub/dir/", "fil"},
		{"trailing slash lists whole dir", "sub/dir/", "sub/dir/", ""},
		{"absolute path", "/etc/pas", "/etc/", "pas"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir, frag := splitDirFragment(tc.token)
			assert.Equal(t, tc.wantDir, dir)
			assert.Equal(t, tc.wantSuffix, frag)
		})
	}
}

func TestDirCompleter_Match(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"readme.txt", "readable.go", "other.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	dc := &dirCompleter{}

	matches, err := dc.match("cat read")
	require.NoError(t, err)

	var suffixes []string
	for _, m := range matches {
		suffixes = append(suffixes, string(m))
	}
	assert.ElementsMatch(t, []string{"me.txt", "able.go"}, suffixes)
}

func TestDirCompleter_NoMatchesDegradesGracefully(t *testing.T) {
	dc := &dirCompleter{}

	matches, err := dc.match("cat /this/path/does/not/exist/fragment")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
