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
	"errors"
	"fmt"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/remote"
	"github.com/sealedvault/client/transport"
)

// RecordEngine implements the Record Engine (C5): build, sign, encrypt,
// decrypt and verify records, orchestrating the AK Manager as needed.
type RecordEngine struct {
	cfg    *model.Config
	client *transport.Client
	ak     *AKManager
}

// NewRecordEngine binds a RecordEngine to cfg/client/ak.
func NewRecordEngine(cfg *model.Config, c *transport.Client, ak *AKManager) *RecordEngine {
	return &RecordEngine{cfg: cfg, client: c, ak: ak}
}

// Write builds, signs (if v2), encrypts and submits a new record of
// recordType, returning the decrypted round-tripped copy the server echoed.
func (e *RecordEngine) Write(ctx context.Context, recordType string, data model.RecordData, plain map[string]string) (*model.Record, error) {
	self := e.cfg.ClientID
	meta := model.Meta{WriterID: self, UserID: self, Type: recordType, Plain: plain}

	rec := &model.Record{Meta: meta, Data: data.Clone()}
	if e.cfg.Version == model.ConfigVersion2 {
		if err := e.sign(rec); err != nil {
			return nil, err
		}
	}

	ak, err := e.ak.EnsureSelfAK(ctx, recordType)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptFields(rec.Data, ak)
	if err != nil {
		return nil, err
	}
	rec.Data = encrypted

	echoed, err := remote.CreateRecord(ctx, e.client, rec)
	if err != nil {
		return nil, err
	}

	return e.decryptEchoed(echoed, ak)
}

// Read fetches a record (optionally a field subset) and decrypts it using
// the AK for its (writerId, userId, type). Returns model.ErrNoAccess if no
// AK is available.
func (e *RecordEngine) Read(ctx context.Context, recordID string, fields []string) (*model.Record, error) {
	rec, err := remote.GetRecord(ctx, e.client, recordID, fields)
	if err != nil {
		return nil, err
	}

	ak, err := e.ak.Get(ctx, rec.Meta.WriterID, rec.Meta.UserID, e.cfg.ClientID, rec.Meta.Type)
	if err != nil {
		if errors.Is(err, ErrAccessKeyAbsent) {
			return nil, fmt.Errorf("%w: no access key for %s/%s/%s", model.ErrNoAccess, rec.Meta.WriterID, rec.Meta.UserID, rec.Meta.Type)
		}
		return nil, err
	}

	decrypted, err := decryptFields(rec.Data, ak)
	if err != nil {
		return nil, err
	}
	rec.Data = decrypted
	return rec, nil
}

// Update re-signs (v2) and re-encrypts record (using its existing AK,
// never rotating it) and PUTs it under optimistic concurrency control.
// record.Meta.RecordID and record.Meta.Version must already be set.
func (e *RecordEngine) Update(ctx context.Context, record *model.Record) (*model.Record, error) {
	if record.Meta.RecordID == "" || record.Meta.Version == "" {
		return nil, fmt.Errorf("%w: update requires record_id and version", model.ErrConfigInvalid)
	}

	ak, err := e.ak.Get(ctx, record.Meta.WriterID, record.Meta.UserID, e.cfg.ClientID, record.Meta.Type)
	if err != nil {
		if errors.Is(err, ErrAccessKeyAbsent) {
			return nil, fmt.Errorf("%w: no access key for %s/%s/%s", model.ErrNoAccess, record.Meta.WriterID, record.Meta.UserID, record.Meta.Type)
		}
		return nil, err
	}

	toSend := &model.Record{Meta: record.Meta.Clone(), Data: record.Data.Clone()}
	if e.cfg.Version == model.ConfigVersion2 {
		if err := e.sign(toSend); err != nil {
			return nil, err
		}
	}

	encrypted, err := encryptFields(toSend.Data, ak)
	if err != nil {
		return nil, err
	}
	toSend.Data = encrypted

	echoed, err := remote.UpdateRecord(ctx, e.client, toSend)
	if err != nil {
		return nil, err
	}

	return e.decryptEchoed(echoed, ak)
}

// Delete removes a record. If version is empty, the unsafe (no
// concurrency check) endpoint is used; otherwise the safe one.
func (e *RecordEngine) Delete(ctx context.Context, recordID, version string) error {
	if version == "" {
		return remote.DeleteRecord(ctx, e.client, recordID)
	}
	return remote.DeleteRecordSafe(ctx, e.client, recordID, version)
}

// EncryptWithAK builds a record from meta/data using a caller-supplied AK
// instead of consulting the AK Manager — the offline encrypt variant.
func (e *RecordEngine) EncryptWithAK(meta model.Meta, data model.RecordData, ak model.AccessKey) (*model.Record, error) {
	rec := &model.Record{Meta: meta.Clone(), Data: data.Clone()}
	if e.cfg.Version == model.ConfigVersion2 {
		if err := e.sign(rec); err != nil {
			return nil, err
		}
	}

	encrypted, err := encryptFields(rec.Data, ak)
	if err != nil {
		return nil, err
	}
	rec.Data = encrypted
	return rec, nil
}

// DecryptWithEAK decrypts record's fields using a caller-supplied EAK
// rather than the AK Manager's cache, and — for v2 configs — verifies the
// record's signature against the EAK's embedded signer key. An EAK with no
// signer key on a v2 config is a SignatureInvalid failure, not a silent skip.
func (e *RecordEngine) DecryptWithEAK(record *model.Record, eak *model.EAKInfo) (model.RecordData, error) {
	ct, nonce, err := model.DecodeEak(eak.Eak)
	if err != nil {
		return nil, err
	}
	authorizerPub, err := model.B64UDecode(eak.AuthorizerPublicKey.Curve25519)
	if err != nil {
		return nil, fmt.Errorf("%w: bad authorizer public key: %v", model.ErrMalformedEnvelope, err)
	}

	ak, err := model.BoxOpen(ct, nonce, authorizerPub, e.cfg.PrivateKeyBytes())
	if err != nil {
		return nil, err
	}

	data, err := decryptFields(record.Data, model.AccessKey(ak))
	if err != nil {
		return nil, err
	}

	if e.cfg.Version == model.ConfigVersion2 {
		if eak.SignerSigningKey == nil {
			return nil, fmt.Errorf("%w: v2 record decrypted with an EAK lacking a signer key", model.ErrSignatureInvalid)
		}
		if err := verifyRecordSignature(record, data, eak.SignerSigningKey.Ed25519); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func (e *RecordEngine) sign(rec *model.Record) error {
	if !e.cfg.IsSigningCapable() {
		return fmt.Errorf("%w: config has no signing key", model.ErrSignatureUnavailable)
	}
	info, err := model.RecordInfoBytes(&rec.Meta, rec.Data)
	if err != nil {
		return err
	}
	sig := model.SignDetached(info, e.cfg.PrivateSignKeyBytes())
	rec.Signature = model.B64UEncode(sig)
	return nil
}

func verifyRecordSignature(record *model.Record, plaintextData model.RecordData, signerPubB64 string) error {
	signerPub, err := model.B64UDecode(signerPubB64)
	if err != nil {
		return fmt.Errorf("%w: bad signer public key: %v", model.ErrMalformedEnvelope, err)
	}
	sig, err := model.B64UDecode(record.Signature)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding: %v", model.ErrSignatureInvalid, err)
	}
	info, err := model.RecordInfoBytes(&record.Meta, plaintextData)
	if err != nil {
		return err
	}
	if !model.VerifyDetached(sig, info, signerPub) {
		return model.ErrSignatureInvalid
	}
	return nil
}

// decryptEchoed decrypts the server's echo of a just-written/updated record
// using the AK the caller already holds (no AK Manager round trip needed).
func (e *RecordEngine) decryptEchoed(rec *model.Record, ak model.AccessKey) (*model.Record, error) {
	decrypted, err := decryptFields(rec.Data, ak)
	if err != nil {
		return nil, err
	}
	rec.Data = decrypted
	return rec, nil
}

// encryptFields encrypts every field value in data under a fresh per-field
// DK, itself wrapped under ak, per the EncryptedField format.
func encryptFields(data model.RecordData, ak model.AccessKey) (model.RecordData, error) {
	out := make(model.RecordData, len(data))
	for field, value := range data {
		dk := model.RandomSecretboxKey()

		efNonce := model.RandomBytes(model.SecretBoxNonceSize)
		ef := model.SecretboxSeal([]byte(value), efNonce, dk)

		edkNonce := model.RandomBytes(model.SecretBoxNonceSize)
		edk := model.SecretboxSeal(dk, edkNonce, ak)

		out[field] = string(model.EncodeField(edk, edkNonce, ef, efNonce))
	}
	return out, nil
}

// decryptFields is the inverse of encryptFields. It tolerates a partial
// data map (the server only returns requested fields on a selective read).
func decryptFields(data model.RecordData, ak model.AccessKey) (model.RecordData, error) {
	out := make(model.RecordData, len(data))
	for field, encoded := range data {
		edk, edkNonce, ef, efNonce, err := model.DecodeField(model.FieldString(encoded))
		if err != nil {
			return nil, err
		}

		dk, err := model.SecretboxOpen(edk, edkNonce, ak)
		if err != nil {
			return nil, err
		}

		value, err := model.SecretboxOpen(ef, efNonce, dk)
		if err != nil {
			return nil, err
		}
		out[field] = string(value)
	}
	return out, nil
}
