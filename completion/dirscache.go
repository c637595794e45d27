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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
)

// dirsCache is a small Badger-backed cache of directory listings, keyed on
// the directory's path and invalidated on mtime change. It exists purely to
// avoid re-listing an unchanged directory on every keystroke; a miss or a
// stale mtime always falls through to os.ReadDir. Grounded on
// models/dps/badger.go's DefaultOptions, tuned down for a cache holding a
// handful of small string lists rather than a chain index.
type dirsCache struct {
	db *badger.DB
}

// newDirsCache opens (creating if necessary) a Badger store at dir.
func newDirsCache(dir string) (*dirsCache, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithTableLoadingMode(options.FileIO).
		WithValueLogLoadingMode(options.FileIO).
		WithNumMemtables(1).
		WithNumLevelZeroTables(1).
		WithNumLevelZeroTablesStall(2)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open directory cache: %w", err)
	}

	return &dirsCache{db: db}, nil
}

// Close releases the underlying Badger store.
func (c *dirsCache) Close() error {
	return c.db.Close()
}

// lookup returns the cached entry list for path if it is still fresh, i.e.
// if the stored mtime matches wantMTime exactly.
func (c *dirsCache) lookup(path string, wantMTime int64) ([]string, bool) {
	var entries []string
	var fresh bool

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			storedMTime, rest, err := decodeMTime(val)
			if err != nil {
				return err
			}
			if storedMTime != wantMTime {
				return nil
			}
			entries = decodeEntries(rest)
			fresh = true
			return nil
		})
	})
	if err != nil {
		return nil, false
	}

	return entries, fresh
}

// store records path's entry list under the given mtime, overwriting
// whatever was previously cached for that path.
func (c *dirsCache) store(path string, mtime int64, entries []string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), encodeEntries(mtime, entries))
	})
}

func encodeEntries(mtime int64, entries []string) []byte {
	var buf bytes.Buffer
	var head [8]byte
	binary.LittleEndian.PutUint64(head[:], uint64(mtime))
	buf.Write(head[:])
	for _, e := range entries {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e)))
		buf.Write(lenBuf[:])
		buf.WriteString(e)
	}
	return buf.Bytes()
}

func decodeMTime(val []byte) (int64, []byte, error) {
	if len(val) < 8 {
		return 0, nil, fmt.Errorf("directory cache record too small")
	}
	return int64(binary.LittleEndian.Uint64(val[:8])), val[8:], nil
}

func decodeEntries(rest []byte) []string {
	var entries []string
	for len(rest) >= 4 {
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			break
		}
		entries = append(entries, string(rest[:n]))
		rest = rest[n:]
	}
	return entries
}

// dirMTime stats path and returns its modification time as a unix
// nanosecond count, suitable for use as a cache freshness token.
func dirMTime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}
