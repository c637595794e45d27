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

// queryLocal walks the per-working-directory namespace of the trie. Keys
// are stored under a namespaced prefix of the form "<abs_cwd>|<line>".
func (e *Engine) queryLocal(cwd, prefix string, flags Flags) ([]byte, bool, error) {
	key := []byte(localNamespaceKey(cwd, prefix))
	return e.historyWalk("local", key, flags)
}
