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

// Package client implements the record store's stateful core: the AK
// cache, the record engine, the sharing controller, the query cursor, and
// the facade that binds them to one Config.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/remote"
	"github.com/sealedvault/client/transport"
)

// ErrAccessKeyAbsent is returned by AKManager.Get when no EAK exists for the
// requested reader: the server answered 404, not a transport failure.
var ErrAccessKeyAbsent = remote.ErrAccessKeyAbsent

// AKManager owns the AK Manager (C4): a per-client-instance cache of
// decrypted access keys, keyed by (writer, user, type), fetched and wrapped
// against the server on demand.
//
// Concurrent Get calls for the same (writer,user,reader,type) quadruple are
// coalesced with singleflight rather than each issuing its own HTTP round
// trip; the cache itself is protected by a plain mutex per §5's
// single-writer-at-a-time contract.
type AKManager struct {
	cfg    *model.Config
	client *transport.Client

	mu    sync.Mutex
	cache map[model.AKKey]*memguard.LockedBuffer

	sf singleflight.Group
}

// NewAKManager constructs an empty-cache AK Manager bound to cfg/client.
func NewAKManager(cfg *model.Config, c *transport.Client) *AKManager {
	return &AKManager{
		cfg:    cfg,
		client: c,
		cache:  make(map[model.AKKey]*memguard.LockedBuffer),
	}
}

// Get returns the decrypted AK for (writerID, userID, type), consulting the
// cache first. On a cache miss it fetches and unseals the reader's EAK,
// caching the result. Returns ErrAccessKeyAbsent if no EAK exists.
func (m *AKManager) Get(ctx context.Context, writerID, userID, readerID, recordType string) (model.AccessKey, error) {
	key := model.AKKey{WriterID: writerID, UserID: userID, Type: recordType}

	if ak, ok := m.cachedCopy(key); ok {
		return ak, nil
	}

	sfKey := writerID + "|" + userID + "|" + readerID + "|" + recordType
	v, err, _ := m.sf.Do(sfKey, func() (any, error) {
		return m.fetchAndCache(ctx, writerID, userID, readerID, recordType)
	})
	if err != nil {
		return nil, err
	}
	return v.(model.AccessKey), nil
}

func (m *AKManager) cachedCopy(key model.AKKey) (model.AccessKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.cache[key]
	if !ok {
		return nil, false
	}
	return append(model.AccessKey(nil), buf.Bytes()...), true
}

func (m *AKManager) fetchAndCache(ctx context.Context, writerID, userID, readerID, recordType string) (model.AccessKey, error) {
	// a sibling call may have populated the cache while we waited for the
	// singleflight slot.
	key := model.AKKey{WriterID: writerID, UserID: userID, Type: recordType}
	if ak, ok := m.cachedCopy(key); ok {
		return ak, nil
	}

	eak, err := remote.GetAccessKey(ctx, m.client, writerID, userID, readerID, recordType)
	if err != nil {
		return nil, err
	}

	ak, err := m.unseal(eak)
	if err != nil {
		return nil, err
	}

	m.store(key, ak)
	return ak, nil
}

// unseal unwraps an EAK with this client's private key and the authorizer's
// public key embedded in the response.
func (m *AKManager) unseal(eak *model.EAKInfo) (model.AccessKey, error) {
	ct, nonce, err := model.DecodeEak(eak.Eak)
	if err != nil {
		return nil, err
	}

	authorizerPub, err := model.B64UDecode(eak.AuthorizerPublicKey.Curve25519)
	if err != nil {
		return nil, fmt.Errorf("%w: bad authorizer public key: %v", model.ErrMalformedEnvelope, err)
	}

	ak, err := model.BoxOpen(ct, nonce, authorizerPub, m.cfg.PrivateKeyBytes())
	if err != nil {
		return nil, err
	}
	return model.AccessKey(ak), nil
}

func (m *AKManager) store(key model.AKKey, ak model.AccessKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.cache[key]; ok {
		old.Destroy()
	}
	m.cache[key] = memguard.NewBufferFromBytes(append([]byte(nil), ak...))
}

// GetOrUnseal returns the cached AK for (writerID, userID, type) if present;
// otherwise it unseals and caches eak, which the caller already fetched out
// of band (e.g. one search result's per-record access_key field). This is
// the helper the Query Cursor (C7) uses to avoid a redundant access-key GET
// per page.
func (m *AKManager) GetOrUnseal(writerID, userID, recordType string, eak *model.EAKInfo) (model.AccessKey, error) {
	key := model.AKKey{WriterID: writerID, UserID: userID, Type: recordType}
	if ak, ok := m.cachedCopy(key); ok {
		return ak, nil
	}
	if eak == nil {
		return nil, fmt.Errorf("%w: no cached AK and no access key in response", ErrAccessKeyAbsent)
	}

	ak, err := m.unseal(eak)
	if err != nil {
		return nil, err
	}
	m.store(key, ak)
	return ak, nil
}

// EnsureSelfAK returns the AK for (self,self,type), creating and self-wrapping
// a fresh one if absent.
func (m *AKManager) EnsureSelfAK(ctx context.Context, recordType string) (model.AccessKey, error) {
	self := m.cfg.ClientID
	ak, err := m.Get(ctx, self, self, self, recordType)
	if err == nil {
		return ak, nil
	}
	if !errors.Is(err, ErrAccessKeyAbsent) {
		return nil, err
	}

	ak = model.RandomSecretboxKey()
	if err := m.Put(ctx, self, self, self, recordType, ak); err != nil {
		return nil, err
	}
	return ak, nil
}

// Put seals ak for readerID and PUTs the resulting EAK, updating the cache
// entry for (writerID, userID, type) on success.
func (m *AKManager) Put(ctx context.Context, writerID, userID, readerID, recordType string, ak model.AccessKey) error {
	readerPub, err := m.resolveReaderPublicKey(ctx, readerID)
	if err != nil {
		return err
	}

	nonce := model.RandomBytes(model.BoxNonceSize)
	ct := model.BoxSeal(ak, nonce, readerPub, m.cfg.PrivateKeyBytes())

	eak := &model.EAKInfo{
		Eak:                 model.EncodeEak(ct, nonce),
		AuthorizerPublicKey: model.PublicKeyInfo{Curve25519: m.cfg.PublicKey},
		AuthorizerID:        m.cfg.ClientID,
		SignerID:            m.cfg.ClientID,
	}
	if m.cfg.IsSigningCapable() {
		eak.SignerSigningKey = &model.SigningKeyInfo{Ed25519: m.cfg.PublicSignKey}
	}

	if err := remote.PutAccessKey(ctx, m.client, writerID, userID, readerID, recordType, eak); err != nil {
		return err
	}

	m.store(model.AKKey{WriterID: writerID, UserID: userID, Type: recordType}, ak)
	return nil
}

// Delete removes the server-side EAK for readerID and invalidates the
// (writerID, userID, type) cache entry.
func (m *AKManager) Delete(ctx context.Context, writerID, userID, readerID, recordType string) error {
	if err := remote.DeleteAccessKey(ctx, m.client, writerID, userID, readerID, recordType); err != nil {
		return err
	}

	key := model.AKKey{WriterID: writerID, UserID: userID, Type: recordType}
	m.mu.Lock()
	if buf, ok := m.cache[key]; ok {
		buf.Destroy()
		delete(m.cache, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *AKManager) resolveReaderPublicKey(ctx context.Context, readerID string) ([]byte, error) {
	if readerID == m.cfg.ClientID {
		return m.cfg.PublicKeyBytes()
	}

	info, err := remote.GetClientInfo(ctx, m.client, readerID)
	if err != nil {
		return nil, err
	}
	pub, err := model.B64UDecode(info.PublicKey.Curve25519)
	if err != nil {
		return nil, fmt.Errorf("%w: bad reader public key: %v", model.ErrMalformedEnvelope, err)
	}
	return pub, nil
}

// Close wipes every cached AK. The manager must not be used afterwards.
func (m *AKManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, buf := range m.cache {
		buf.Destroy()
		delete(m.cache, k)
	}
	log.Debug().Msg("AK manager cache cleared")
}
