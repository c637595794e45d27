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
	"sort"
	"strings"
)

// dirCompleter is the third sub-completer: given the last whitespace-
// delimited token of the prefix, it treats any trailing path segment as a
// directory and suggests entries starting with the remaining fragment. A
// cache miss falls through to listing the directory directly; any
// filesystem error degrades to "no suggestions" rather than surfacing to
// the caller, since directory completion is best-effort: its failure should
// never take down history completion.
type dirCompleter struct {
	cache *dirsCache
}

// newDirCompleter constructs a directory completer. The on-disk cache is
// opened best-effort: if it cannot be opened (no cache dir, permissions,
// concurrent lock held by another fcmd process), the completer falls back
// to listing directories directly on every call.
func newDirCompleter() *dirCompleter {
	dir, err := cacheDir()
	if err != nil {
		return &dirCompleter{}
	}

	c, err := newDirsCache(dir)
	if err != nil {
		return &dirCompleter{}
	}

	return &dirCompleter{cache: c}
}

func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "fcmd", "dirscache"), nil
}

// Close releases the on-disk cache, if one was opened.
func (d *dirCompleter) Close() error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Close()
}

// match returns the sorted list of candidate suffixes (bytes to append
// after prefix) for the directory segment and fragment named by prefix's
// last token. An empty result with a nil error means the fragment matched
// no entries or the directory could not be listed: any stat/read failure is
// swallowed into an empty result. A completer with a nil cache field lists
// the directory directly.
func (d *dirCompleter) match(prefix string) ([][]byte, error) {
	token := lastToken(prefix)

	dir, fragment := splitDirFragment(token)

	entries, err := d.listEntries(dir)
	if err != nil {
		return nil, nil
	}

	var matches []string
	for _, name := range entries {
		if strings.HasPrefix(name, fragment) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)

	suffixes := make([][]byte, 0, len(matches))
	for _, name := range matches {
		suffixes = append(suffixes, []byte(name[len(fragment):]))
	}

	return suffixes, nil
}

// splitDirFragment splits a path-like token into the directory to list and
// the fragment its last segment must be a prefix of. A token with no
// separator lists the current directory.
func splitDirFragment(token string) (dir, fragment string) {
	if token == "" {
		return ".", ""
	}

	idx := strings.LastIndexByte(token, '/')
	if idx < 0 {
		return ".", token
	}

	dir = token[:idx+1]
	fragment = token[idx+1:]
	if dir == "" {
		dir = "/"
	}

	return dir, fragment
}

// listEntries returns the names of dir's entries, consulting the cache
// first and falling back to (and repopulating from) os.ReadDir on a miss or
// a stale mtime.
func (d *dirCompleter) listEntries(dir string) ([]string, error) {
	if d.cache != nil {
		if mtime, err := dirMTime(dir); err == nil {
			if cached, ok := d.cache.lookup(dir, mtime); ok {
				return cached, nil
			}

			entries, err := readDirNames(dir)
			if err != nil {
				return nil, err
			}

			_ = d.cache.store(dir, mtime, entries)
			return entries, nil
		}
	}

	return readDirNames(dir)
}

func readDirNames(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(des))
	for _, e := range des {
		names = append(names, e.Name())
	}
	return names, nil
}
