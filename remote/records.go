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

// Package remote implements one Go function per server resource from the
// wire protocol, each a thin wrapper over a *transport.Client call. None of
// it understands encryption; it only moves wire-shaped JSON.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/transport"
)

// CreateRecord POSTs a (already field-encrypted) record and returns the
// server's echoed copy (fresh meta, same encoded data).
func CreateRecord(ctx context.Context, c *transport.Client, r *model.Record) (*model.Record, error) {
	var out model.Record
	err := c.LoadContents(ctx, http.MethodPost, "/v1/storage/records", &out, transport.WithJSONBody(r))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecord fetches a record by id. If fields is non-empty, only those
// field values are requested (and returned) by the server.
func GetRecord(ctx context.Context, c *transport.Client, recordID string, fields []string) (*model.Record, error) {
	path := "/v1/storage/records/" + url.PathEscape(recordID)
	if len(fields) > 0 {
		q := url.Values{}
		for _, f := range fields {
			q.Add("field", f)
		}
		path += "?" + q.Encode()
	}

	var out model.Record
	if err := c.LoadContents(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecord PUTs a mutated record under optimistic-concurrency control.
// A 409 response surfaces as model.ErrConflict via transport.LoadContents.
func UpdateRecord(ctx context.Context, c *transport.Client, r *model.Record) (*model.Record, error) {
	path := fmt.Sprintf("/v1/storage/records/safe/%s/%s", url.PathEscape(r.Meta.RecordID), url.PathEscape(r.Meta.Version))

	var out model.Record
	if err := c.LoadContents(ctx, http.MethodPut, path, &out, transport.WithJSONBody(r)); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRecord performs the unsafe (no version check) delete. 204 and 403
// both count as success: see DeleteRecordSafe's doc for the idempotence
// rationale.
func DeleteRecord(ctx context.Context, c *transport.Client, recordID string) error {
	return deleteIdempotent(ctx, c, "/v1/storage/records/"+url.PathEscape(recordID))
}

// DeleteRecordSafe performs the optimistic-concurrency delete: a 409
// indicates someone else moved the record to a different version first.
// Like DeleteRecord, 204 and 403 both count as success — a record the
// caller can no longer see (already deleted, or access revoked out from
// under them) is, from the caller's perspective, already gone.
func DeleteRecordSafe(ctx context.Context, c *transport.Client, recordID, version string) error {
	path := fmt.Sprintf("/v1/storage/records/safe/%s/%s", url.PathEscape(recordID), url.PathEscape(version))
	return deleteIdempotent(ctx, c, path)
}

func deleteIdempotent(ctx context.Context, c *transport.Client, path string) error {
	res, err := c.SendRequest(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusNoContent, http.StatusForbidden, http.StatusOK:
		return nil
	default:
		return transport.DecodeResponse(res, path, nil)
	}
}

// Search runs one page of a Query against /v1/storage/search.
func Search(ctx context.Context, c *transport.Client, q *model.Query) (*model.QueryResponse, error) {
	var out model.QueryResponse
	if err := c.LoadContents(ctx, http.MethodPost, "/v1/storage/search", &out, transport.WithJSONBody(q)); err != nil {
		return nil, err
	}
	return &out, nil
}
