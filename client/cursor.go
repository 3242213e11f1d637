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

package client

import (
	"context"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/remote"
	"github.com/sealedvault/client/transport"
)

// Cursor implements the Query Cursor (C7): paginated, lazy, forward-only
// iteration over search results. A Cursor is single-use in one direction —
// afterIndex only ever advances, and a drained Cursor stays drained.
type Cursor struct {
	client *transport.Client
	ak     *AKManager

	template   model.Query
	afterIndex int64
	done       bool
}

// NewCursor starts a new Cursor over template. template.AfterIndex is
// ignored; the Cursor tracks its own.
func NewCursor(c *transport.Client, ak *AKManager, template model.Query) *Cursor {
	return &Cursor{client: c, ak: ak, template: template}
}

// Done reports whether the cursor has delivered every matching record.
func (c *Cursor) Done() bool {
	return c.done
}

// Next fetches and decrypts the next page. A drained cursor yields an
// empty, nil-error batch instead of erroring, so callers can loop on
// `for !cur.Done() { batch, err := cur.Next(ctx); ... }` without a
// separate has-more check.
func (c *Cursor) Next(ctx context.Context) ([]model.Record, error) {
	if c.done {
		return nil, nil
	}

	q := c.template
	q.AfterIndex = c.afterIndex

	resp, err := remote.Search(ctx, c.client, &q)
	if err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		c.done = true
		return nil, nil
	}

	batch := make([]model.Record, 0, len(resp.Results))
	for _, item := range resp.Results {
		rec := model.Record{Meta: item.Meta, Data: item.Data}

		if c.template.IncludeData && len(item.Data) > 0 {
			ak, err := c.ak.GetOrUnseal(item.Meta.WriterID, item.Meta.UserID, item.Meta.Type, item.Eak)
			if err != nil {
				return nil, err
			}
			data, err := decryptFields(item.Data, ak)
			if err != nil {
				return nil, err
			}
			rec.Data = data
		}

		batch = append(batch, rec)
	}

	c.afterIndex = resp.LastIndex
	return batch, nil
}
