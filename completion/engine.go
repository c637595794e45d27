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

// Package completion implements the local-history, global-history, and
// filesystem-directory completers, built on top of the block trie in
// package trie.
package completion

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/danslocombe/fcmd-sub000/trie"
)

const queryCacheSize = 256

// Flags carries the query-time options that change how a completion
// result is produced.
type Flags struct {
	CompleteToFilesFromEmptyPrefix bool
}

// Engine is the console-facing completion engine. NewEngine, Update and
// Query form its core contract; Advance and ResetCycle move the cycle slot
// between queries, and Close releases the engine's own resources.
type Engine struct {
	log   zerolog.Logger
	store *trie.BackingStore
	dir   *dirCompleter

	// cache accelerates repeated Tab presses against an unchanged prefix:
	// a pure in-process speed-up, never a source of truth.
	cache *lru.Cache

	cycleIndex int
}

type cacheKey struct {
	namespace string
	prefix    string
	flags     Flags
}

// NewEngine constructs a completion engine over an already-open backing
// store.
func NewEngine(log zerolog.Logger, store *trie.BackingStore) (*Engine, error) {
	cache, err := lru.New(queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create query cache: %w", err)
	}

	return &Engine{
		log:   log.With().Str("component", "completion_engine").Logger(),
		store: store,
		dir:   newDirCompleter(),
		cache: cache,
	}, nil
}

// Update feeds an accepted command line into local and (if path-free)
// global history.
func (e *Engine) Update(acceptedLine string) error {
	if acceptedLine == "" {
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not determine working directory: %w", err)
	}

	var result *multierror.Error

	localKey := localNamespaceKey(cwd, acceptedLine)
	if err := trie.Insert(e.store.View(), []byte(localKey), trie.MaxCost); err != nil {
		result = multierror.Append(result, fmt.Errorf("could not record local history: %w", err))
	}

	if isGlobalCandidate(acceptedLine) {
		globalKey := globalNamespaceKey(acceptedLine)
		if err := trie.Insert(e.store.View(), []byte(globalKey), trie.MaxCost); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not record global history: %w", err))
		}
	}

	e.cache.Purge()

	return result.ErrorOrNil()
}

// Advance moves the cycle slot forward, letting the user Tab through
// successive sub-completer results for the same prefix.
func (e *Engine) Advance() {
	e.cycleIndex++
}

// ResetCycle returns to the first sub-completer on the next Query, called
// whenever the user edits the prefix rather than just cycling.
func (e *Engine) ResetCycle() {
	e.cycleIndex = 0
}

// Close releases the engine's own resources (the directory listing cache).
// It does not close the backing store, which the engine does not own.
func (e *Engine) Close() error {
	return e.dir.Close()
}

// Query returns the bytes to append to prefix, or nil if nothing matches.
// It tries local history, then global history, then the directory
// completer, each consuming one cycle slot.
func (e *Engine) Query(prefix string, flags Flags) ([]byte, error) {
	if prefix == "" {
		return nil, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not determine working directory: %w", err)
	}

	idx := e.cycleIndex

	if result, ok, err := e.queryLocal(cwd, prefix, flags); err != nil {
		e.log.Warn().Err(err).Msg("local history completer failed, degrading gracefully")
	} else if ok {
		if idx == 0 {
			return result, nil
		}
		idx--
	}

	if result, ok, err := e.queryGlobal(prefix, flags); err != nil {
		e.log.Warn().Err(err).Msg("global history completer failed, degrading gracefully")
	} else if ok {
		if idx == 0 {
			return result, nil
		}
		idx--
	}

	if unclosedQuotes(prefix) {
		return nil, nil
	}

	matches, err := e.dir.match(prefix)
	if err != nil {
		e.log.Warn().Err(err).Msg("directory completer failed, degrading gracefully")
		return nil, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}

	pick := idx % len(matches)
	return matches[pick], nil
}

func localNamespaceKey(cwd, line string) string {
	return cwd + "|" + line
}

func globalNamespaceKey(line string) string {
	return "GLOBAL_" + line
}

// cachedWalk is the query cache's record of one historyWalk result.
type cachedWalk struct {
	extension []byte
	ok        bool
}

// historyWalk performs one namespaced walk of the trie: it walks the key,
// and if the walk consumed the whole query without reaching a leaf, it
// greedily extends via WalkToEnd to produce a full historical line's
// suffix. Shared by the local and global completers.
func (e *Engine) historyWalk(namespace string, key []byte, flags Flags) ([]byte, bool, error) {
	ck := cacheKey{namespace: namespace, prefix: string(key), flags: flags}
	if cached, hit := e.cache.Get(ck); hit {
		c := cached.(cachedWalk)
		return c.extension, c.ok, nil
	}

	result, err := trie.Walk(e.store.View(), key)
	if err != nil {
		return nil, false, err
	}
	if !result.Found {
		e.cache.Add(ck, cachedWalk{ok: false})
		return nil, false, nil
	}

	extension := result.Extension
	if !result.ReachedLeaf {
		tail, err := trie.WalkToEnd(result.Next())
		if err != nil {
			return nil, false, err
		}
		extension = append(append([]byte(nil), extension...), tail...)
	}

	if len(extension) == 0 && flags.CompleteToFilesFromEmptyPrefix {
		e.cache.Add(ck, cachedWalk{ok: false})
		return nil, false, nil
	}

	e.cache.Add(ck, cachedWalk{extension: extension, ok: true})
	return extension, true, nil
}
