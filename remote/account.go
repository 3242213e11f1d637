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

// BackupClientHeader is the response header naming the backup target on a
// successful registration, when the account opted into credential backup.
const BackupClientHeader = "X-Backup-Client"

// RegisterClient anonymously registers a new client against a registration
// token. Returns the server-issued credentials and, if present, the backup
// target client id from the X-Backup-Client response header.
func RegisterClient(ctx context.Context, c *transport.Client, req model.RegistrationRequest) (*model.RegistrationResponse, string, error) {
	res, err := c.SendRequest(ctx, http.MethodPost, "/v1/account/e3db/clients/register",
		transport.WithJSONBody(req), transport.SkipAuthentication())
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = res.Body.Close() }()

	var out model.RegistrationResponse
	if err := transport.DecodeResponse(res, "/v1/account/e3db/clients/register", &out); err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrRegistrationFailed, err)
	}

	return &out, res.Header.Get(BackupClientHeader), nil
}

// NotifyBackup informs the account service that clientID's credentials were
// backed up under registrationToken.
func NotifyBackup(ctx context.Context, c *transport.Client, registrationToken, clientID string) error {
	path := fmt.Sprintf("/v1/account/backup/%s/%s", url.PathEscape(registrationToken), url.PathEscape(clientID))
	return c.LoadContents(ctx, http.MethodPost, path, nil, transport.SkipAuthentication())
}
