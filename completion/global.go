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

// queryGlobal walks the cross-directory namespace of the trie. Keys are
// stored under the namespace "GLOBAL_<line>". Only command lines classified
// as path-free by isGlobalCandidate ever land here (see Engine.Update), so
// this completer never suggests a line whose tokens resolved as local
// filesystem paths.
func (e *Engine) queryGlobal(prefix string, flags Flags) ([]byte, bool, error) {
	key := []byte(globalNamespaceKey(prefix))
	return e.historyWalk("global", key, flags)
}
