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

// PolicyRule is a single allow/deny clause in a sharing policy. Read is
// always an empty object today ({}), reserved for future conditions.
type PolicyRule struct {
	Read map[string]any `json:"read"`
}

// PolicyRequest is the body of a policy PUT: grant or revoke a reader's
// access to a (writer, type) record class.
type PolicyRequest struct {
	Allow []PolicyRule `json:"allow,omitempty"`
	Deny  []PolicyRule `json:"deny,omitempty"`
}

// AllowPolicy builds a policy request granting read access.
func AllowPolicy() PolicyRequest {
	return PolicyRequest{Allow: []PolicyRule{{Read: map[string]any{}}}}
}

// DenyPolicy builds a policy request revoking read access.
func DenyPolicy() PolicyRequest {
	return PolicyRequest{Deny: []PolicyRule{{Read: map[string]any{}}}}
}

// OutgoingSharingEntry describes one reader this client's records of
// RecordType have been shared with.
type OutgoingSharingEntry struct {
	ReaderID   string `json:"reader_id"`
	RecordType string `json:"record_type"`
	ReaderName string `json:"reader_name,omitempty"`
}

// IncomingSharingEntry describes one writer who has shared RecordType
// records with this client.
type IncomingSharingEntry struct {
	WriterID   string `json:"writer_id"`
	RecordType string `json:"record_type"`
	WriterName string `json:"writer_name,omitempty"`
}
