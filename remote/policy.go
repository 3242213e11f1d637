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

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/transport"
)

// PutPolicy grants or revokes readerID's access to (writerID, userID, recordType).
func PutPolicy(ctx context.Context, c *transport.Client, writerID, userID, readerID, recordType string, req model.PolicyRequest) error {
	path := fmt.Sprintf("/v1/storage/policy/%s/%s/%s/%s",
		url.PathEscape(writerID), url.PathEscape(userID), url.PathEscape(readerID), url.PathEscape(recordType))
	return c.LoadContents(ctx, http.MethodPut, path, nil, transport.WithJSONBody(req))
}

// OutgoingSharing lists the readers this client has shared records with.
func OutgoingSharing(ctx context.Context, c *transport.Client) ([]model.OutgoingSharingEntry, error) {
	var out []model.OutgoingSharingEntry
	if err := c.LoadContents(ctx, http.MethodGet, "/v1/storage/policy/outgoing", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IncomingSharing lists the writers who have shared records with this client.
func IncomingSharing(ctx context.Context, c *transport.Client) ([]model.IncomingSharingEntry, error) {
	var out []model.IncomingSharingEntry
	if err := c.LoadContents(ctx, http.MethodGet, "/v1/storage/policy/incoming", &out); err != nil {
		return nil, err
	}
	return out, nil
}
