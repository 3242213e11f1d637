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
	"fmt"
	"regexp"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/remote"
	"github.com/sealedvault/client/transport"
)

// emailPattern is a deliberately loose email-shape test: good enough to
// distinguish "someone@example.com" from a UUID client id without trying to
// fully validate RFC 5322 addresses.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func looksLikeEmail(id string) bool {
	return emailPattern.MatchString(id)
}

// SharingController implements the Sharing Controller (C6): grant/revoke
// per-type access and keep the AK cache coherent with policy changes.
type SharingController struct {
	cfg    *model.Config
	client *transport.Client
	ak     *AKManager
}

// NewSharingController binds a SharingController to cfg/client/ak.
func NewSharingController(cfg *model.Config, c *transport.Client, ak *AKManager) *SharingController {
	return &SharingController{cfg: cfg, client: c, ak: ak}
}

// Share grants readerID read access to this client's records of recordType.
// Sharing with self is a no-op; an email-shaped readerID fails fast with
// ErrEmailLookupUnsupported rather than silently resolving it (resolving
// emails to client ids is a v1-only, now-deprecated server endpoint — see
// Facade.ClientInfo).
func (s *SharingController) Share(ctx context.Context, recordType, readerID string) error {
	self := s.cfg.ClientID
	if readerID == self {
		return nil
	}
	if looksLikeEmail(readerID) {
		return fmt.Errorf("%w: cannot share with email address %q directly", model.ErrEmailLookupUnsupported, readerID)
	}

	ak, err := s.ak.EnsureSelfAK(ctx, recordType)
	if err != nil {
		return err
	}

	// AK put precedes policy PUT (§5 ordering guarantee): a racing reader
	// must never observe "allowed" before their EAK exists.
	if err := s.ak.Put(ctx, self, self, readerID, recordType, ak); err != nil {
		return err
	}

	return remote.PutPolicy(ctx, s.client, self, self, readerID, recordType, model.AllowPolicy())
}

// Revoke withdraws readerID's read access to recordType. Policy PUT
// precedes AK delete (§5 ordering guarantee): revoking the policy first
// means a racing reader cannot acquire new records before their EAK is gone.
func (s *SharingController) Revoke(ctx context.Context, recordType, readerID string) error {
	self := s.cfg.ClientID

	if err := remote.PutPolicy(ctx, s.client, self, self, readerID, recordType, model.DenyPolicy()); err != nil {
		return err
	}

	return s.ak.Delete(ctx, self, self, readerID, recordType)
}

// OutgoingSharing lists the readers this client currently shares records with.
func (s *SharingController) OutgoingSharing(ctx context.Context) ([]model.OutgoingSharingEntry, error) {
	return remote.OutgoingSharing(ctx, s.client)
}

// IncomingSharing lists the writers who currently share records with this client.
func (s *SharingController) IncomingSharing(ctx context.Context) ([]model.IncomingSharingEntry, error) {
	return remote.IncomingSharing(ctx, s.client)
}
