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

import "github.com/sealedvault/client/utils/jsonw"

// AccessKey is a decrypted, 32-byte symmetric key used to wrap/unwrap a
// record's per-field Data Keys. It is a plain alias rather than a fixed-size
// array so callers can pass key material straight out of SecretboxOpen
// without copying into an array; long-lived copies belong in a
// memguard.LockedBuffer (see the AK Manager's cache).
type AccessKey []byte

// AKKey identifies an access key by the (writer, user, record type) triple
// it was issued for, mirroring the storage/access_keys/{writer}/{user}/{type}
// addressing scheme.
type AKKey struct {
	WriterID string
	UserID   string
	Type     string
}

// PublicKeyInfo wraps an X25519 public key as the server nests it in EAK and
// client-info payloads.
type PublicKeyInfo struct {
	Curve25519 string `json:"curve25519"`
}

// SigningKeyInfo wraps an Ed25519 public key the same way.
type SigningKeyInfo struct {
	Ed25519 string `json:"ed25519"`
}

// EAKInfo is the server's response to an access key lookup: the sealed key
// itself plus enough key material to unwrap and, where applicable, verify
// who authorized it.
type EAKInfo struct {
	Eak                 EakString       `json:"eak"`
	AuthorizerPublicKey  PublicKeyInfo   `json:"authorizer_public_key"`
	SignerSigningKey    *SigningKeyInfo `json:"signer_signing_key,omitempty"`
	AuthorizerID        string          `json:"authorizer_id"`
	SignerID            string          `json:"signer_id"`
}

// eakInfoWire mirrors EAKInfo for JSON transport, tolerating servers that
// emit authorizer_public_key in either snake_case or camelCase.
type eakInfoWire struct {
	Eak                    EakString       `json:"eak"`
	AuthorizerPublicKey    *PublicKeyInfo  `json:"authorizer_public_key,omitempty"`
	AuthorizerPublicKeyAlt *PublicKeyInfo  `json:"authorizerPublicKey,omitempty"`
	SignerSigningKey       *SigningKeyInfo `json:"signer_signing_key,omitempty"`
	AuthorizerID           string          `json:"authorizer_id"`
	SignerID               string          `json:"signer_id"`
}

// UnmarshalJSON accepts either authorizer_public_key or authorizerPublicKey,
// preferring the snake_case form when both happen to be present.
func (e *EAKInfo) UnmarshalJSON(b []byte) error {
	var wire eakInfoWire
	if err := jsonw.Unmarshal(b, &wire); err != nil {
		return err
	}

	e.Eak = wire.Eak
	switch {
	case wire.AuthorizerPublicKey != nil:
		e.AuthorizerPublicKey = *wire.AuthorizerPublicKey
	case wire.AuthorizerPublicKeyAlt != nil:
		e.AuthorizerPublicKey = *wire.AuthorizerPublicKeyAlt
	}
	e.SignerSigningKey = wire.SignerSigningKey
	e.AuthorizerID = wire.AuthorizerID
	e.SignerID = wire.SignerID
	return nil
}

// MarshalJSON always emits authorizer_public_key in snake_case.
func (e EAKInfo) MarshalJSON() ([]byte, error) {
	wire := eakInfoWire{
		Eak:                 e.Eak,
		AuthorizerPublicKey: &e.AuthorizerPublicKey,
		SignerSigningKey:    e.SignerSigningKey,
		AuthorizerID:        e.AuthorizerID,
		SignerID:            e.SignerID,
	}
	return jsonw.Marshal(wire)
}
