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
	"net/http"
	"net/url"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/transport"
)

// GetClientInfo fetches the public ClientInfo for clientID.
func GetClientInfo(ctx context.Context, c *transport.Client, clientID string) (*model.ClientInfo, error) {
	var out model.ClientInfo
	path := "/v1/storage/clients/" + url.PathEscape(clientID)
	if err := c.LoadContents(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
