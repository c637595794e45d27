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

import "errors"

// Error kinds returned by the trie package. FileCorrupted and MapFailed are
// fatal to the process; ResizeTimeout aborts the append and is returned to
// the caller, and the key being inserted is not recorded, neither in the
// file nor in memory; NotFound is a normal control-flow result, never
// logged as an error.
var (
	ErrFileCorrupted = errors.New("trie: file corrupted")
	ErrFileTooSmall  = errors.New("trie: file too small for declared length")
	ErrResizeTimeout = errors.New("trie: peers did not release their view in time")
	ErrMapFailed     = errors.New("trie: memory mapping failed")
	ErrNotFound      = errors.New("trie: not found")
	ErrStaleView     = errors.New("trie: view generation is stale, reacquire before use")
)
