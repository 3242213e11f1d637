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
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/transport"
)

func akPath(writerID, userID, readerID, recordType string) string {
	return fmt.Sprintf("/v1/storage/access_keys/%s/%s/%s/%s",
		url.PathEscape(writerID), url.PathEscape(userID), url.PathEscape(readerID), url.PathEscape(recordType))
}

// ErrAccessKeyAbsent signals a 404 on the EAK endpoint: "absent" per §4.4,
// distinct from a transport failure.
var ErrAccessKeyAbsent = errors.New("access key absent")

// GetAccessKey fetches the EAK for (writerID, userID, readerID, recordType).
// Returns ErrAccessKeyAbsent on a 404.
func GetAccessKey(ctx context.Context, c *transport.Client, writerID, userID, readerID, recordType string) (*model.EAKInfo, error) {
	path := akPath(writerID, userID, readerID, recordType)
	res, err := c.SendRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrAccessKeyAbsent
	}

	var out model.EAKInfo
	if err := transport.DecodeResponse(res, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutAccessKey PUTs a freshly-sealed EAK for one reader.
func PutAccessKey(ctx context.Context, c *transport.Client, writerID, userID, readerID, recordType string, eak *model.EAKInfo) error {
	path := akPath(writerID, userID, readerID, recordType)
	return c.LoadContents(ctx, http.MethodPut, path, nil, transport.WithJSONBody(eak))
}

// DeleteAccessKey deletes the EAK for one reader.
func DeleteAccessKey(ctx context.Context, c *transport.Client, writerID, userID, readerID, recordType string) error {
	path := akPath(writerID, userID, readerID, recordType)
	return c.LoadContents(ctx, http.MethodDelete, path, nil)
}
