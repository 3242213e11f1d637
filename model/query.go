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

// Query describes one page request against the record search endpoint.
// AfterIndex is the cursor: 0 on the first page, then the LastIndex of the
// previous QueryResponse.
type Query struct {
	Count             int               `json:"count,omitempty"`
	IncludeData       bool              `json:"include_data,omitempty"`
	WriterIDs         []string          `json:"writer_ids,omitempty"`
	RecordIDs         []string          `json:"record_ids,omitempty"`
	ContentTypes      []string          `json:"content_types,omitempty"`
	Plain             map[string]string `json:"plain,omitempty"`
	UserIDs           []string          `json:"user_ids,omitempty"`
	AfterIndex        int64             `json:"after_index"`
	IncludeAllWriters bool              `json:"include_all_writers,omitempty"`
}

// QueryResultItem is one record returned by a search page. Data is present
// only when the query requested IncludeData; Eak carries the wrapped access
// key needed to decrypt it, when the server includes one.
type QueryResultItem struct {
	Meta Meta       `json:"meta"`
	Data RecordData `json:"data,omitempty"`
	Eak  *EAKInfo   `json:"access_key,omitempty"`
}

// QueryResponse is one page of search results. LastIndex becomes the next
// request's AfterIndex; an empty Results slice signals the cursor is done.
type QueryResponse struct {
	Results   []QueryResultItem `json:"results"`
	LastIndex int64             `json:"last_index"`
}
