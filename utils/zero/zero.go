// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package zero provides best-effort wiping of short-lived secret material
// (derivation seeds, one-shot nonces) that never gets promoted to a
// memguard.LockedBuffer. It gives no OS-level guarantees; long-lived private
// keys and cached access keys belong in memguard instead (see model.Config
// and client's AK cache).
package zero

// Bytes overwrites b with zeroes in place.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Bytea32 overwrites a 32-byte array pointer with zeroes, tolerating nil.
func Bytea32(b *[32]byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
