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

package model

import "time"

// Meta carries a record's identity and unencrypted plain fields. RecordID,
// Created, LastModified and Version are assigned by the server and are
// empty on records not yet written.
type Meta struct {
	RecordID     string            `json:"record_id,omitempty"`
	WriterID     string            `json:"writer_id"`
	UserID       string            `json:"user_id"`
	Type         string            `json:"type"`
	Plain        map[string]string `json:"plain,omitempty"`
	Created      *time.Time        `json:"created,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
	Version      string            `json:"version,omitempty"`
}

// Clone returns a deep copy of m, so callers can mutate Plain without
// aliasing the original.
func (m Meta) Clone() Meta {
	out := m
	out.Plain = nil
	if m.Plain != nil {
		out.Plain = make(map[string]string, len(m.Plain))
		for k, v := range m.Plain {
			out.Plain[k] = v
		}
	}
	return out
}

// RecordData is a record's field map. Values are plaintext client-side and
// FieldString-encoded ciphertext on the wire and at rest; which form is in
// play is always determined by context, never by the type itself.
type RecordData map[string]string

// Clone returns a shallow copy of d.
func (d RecordData) Clone() RecordData {
	if d == nil {
		return nil
	}
	out := make(RecordData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Record is a full record as exchanged with the server: metadata, field
// data (plaintext or encrypted depending on context) and, for version-2
// clients, a detached signature over RecordInfoBytes(Meta, plaintext Data).
type Record struct {
	Meta      Meta       `json:"meta"`
	Data      RecordData `json:"data"`
	Signature string     `json:"rec_sig,omitempty"`
}

// IsSigned reports whether the record carries a signature.
func (r *Record) IsSigned() bool {
	return r.Signature != ""
}
