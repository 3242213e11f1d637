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
	"crypto/ed25519"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sealedvault/client/model"
	"github.com/sealedvault/client/remote"
	"github.com/sealedvault/client/transport"
	"github.com/sealedvault/client/utils/jsonw"
)

const backupRecordType = "tozny.key_backup"

// Facade is the public entry point (C8): one long-lived object binding a
// Config to the AK Manager, Record Engine, Sharing Controller and Query
// Cursor factory.
type Facade struct {
	cfg       *model.Config
	transport *transport.Client
	ak        *AKManager
	engine    *RecordEngine
	sharing   *SharingController
}

// New binds a Facade to cfg, constructing its own transport.Client.
func New(cfg *model.Config, opts ...transport.ClientOption) *Facade {
	t := transport.NewClient(cfg.ApiUrl, cfg.ApiKeyID, cfg.ApiSecret, opts...)
	return newFacadeWithTransport(cfg, t)
}

func newFacadeWithTransport(cfg *model.Config, t *transport.Client) *Facade {
	ak := NewAKManager(cfg, t)
	return &Facade{
		cfg:       cfg,
		transport: t,
		ak:        ak,
		engine:    NewRecordEngine(cfg, t, ak),
		sharing:   NewSharingController(cfg, t, ak),
	}
}

// ClientID returns the id of the client this Facade is bound to.
func (f *Facade) ClientID() string {
	return f.cfg.ClientID
}

// Close tears down the underlying HTTP connections and wipes the AK cache
// and the bound Config's key material. The Facade must not be used
// afterwards.
func (f *Facade) Close() {
	f.transport.CloseIdleConnections()
	f.ak.Close()
	f.cfg.Close()
}

// Write creates a new record of recordType.
func (f *Facade) Write(ctx context.Context, recordType string, data model.RecordData, plain map[string]string) (*model.Record, error) {
	return f.engine.Write(ctx, recordType, data, plain)
}

// Read fetches and decrypts a record, optionally limited to fields.
func (f *Facade) Read(ctx context.Context, recordID string, fields ...string) (*model.Record, error) {
	return f.engine.Read(ctx, recordID, fields)
}

// Update re-signs, re-encrypts and PUTs a mutated record under optimistic
// concurrency control.
func (f *Facade) Update(ctx context.Context, record *model.Record) (*model.Record, error) {
	return f.engine.Update(ctx, record)
}

// Delete removes a record. If version is empty, the unsafe delete endpoint
// is used.
func (f *Facade) Delete(ctx context.Context, recordID, version string) error {
	return f.engine.Delete(ctx, recordID, version)
}

// EncryptWithAK is the offline write variant: it builds a signed/encrypted
// record from meta/data without touching the AK cache or the network.
func (f *Facade) EncryptWithAK(meta model.Meta, data model.RecordData, ak model.AccessKey) (*model.Record, error) {
	return f.engine.EncryptWithAK(meta, data, ak)
}

// DecryptWithEAK is the offline read variant: it decrypts record using a
// caller-supplied EAK instead of the AK cache, verifying the signature
// against the EAK's signer key on v2 configs.
func (f *Facade) DecryptWithEAK(record *model.Record, eak *model.EAKInfo) (model.RecordData, error) {
	return f.engine.DecryptWithEAK(record, eak)
}

// Query starts a new Cursor over template.
func (f *Facade) Query(template model.Query) *Cursor {
	return NewCursor(f.transport, f.ak, template)
}

// Share grants readerID access to this client's records of recordType.
func (f *Facade) Share(ctx context.Context, recordType, readerID string) error {
	return f.sharing.Share(ctx, recordType, readerID)
}

// Revoke withdraws readerID's access to recordType.
func (f *Facade) Revoke(ctx context.Context, recordType, readerID string) error {
	return f.sharing.Revoke(ctx, recordType, readerID)
}

// OutgoingSharing lists readers this client currently shares with.
func (f *Facade) OutgoingSharing(ctx context.Context) ([]model.OutgoingSharingEntry, error) {
	return f.sharing.OutgoingSharing(ctx)
}

// IncomingSharing lists writers who currently share with this client.
func (f *Facade) IncomingSharing(ctx context.Context) ([]model.IncomingSharingEntry, error) {
	return f.sharing.IncomingSharing(ctx)
}

// ClientInfo resolves id to a ClientInfo. Email-shaped ids fail fast with
// ErrEmailLookupUnsupported — the email-lookup endpoint this call used to
// fall back to is gone in v2 (see DESIGN.md Open Question 3).
func (f *Facade) ClientInfo(ctx context.Context, id string) (*model.ClientInfo, error) {
	if looksLikeEmail(id) {
		return nil, fmt.Errorf("%w: %q", model.ErrEmailLookupUnsupported, id)
	}
	return remote.GetClientInfo(ctx, f.transport, id)
}

// GenerateKeypair produces a fresh X25519 keypair, URL-safe-base64 encoded.
func GenerateKeypair() (publicKey, privateKey string) {
	pub, priv := model.RandomCryptoKeypair()
	return model.B64UEncode(pub), model.B64UEncode(priv)
}

// GenerateSigningKeypair produces a fresh Ed25519 keypair, URL-safe-base64
// encoded.
func GenerateSigningKeypair() (publicKey, privateKey string) {
	pub, priv := ed25519.GenerateKey(nil)
	return model.B64UEncode(pub), model.B64UEncode(priv)
}

// RegisterOptions configures the optional backup step of Register.
type RegisterOptions struct {
	// Backup requests credential backup when the account supports it.
	Backup bool
	// PrivateKey is the X25519 private key matching the public key sent in
	// the registration request. Required (along with a returned backup
	// target) for Backup to actually run.
	PrivateKey string
	// PrivateSignKey is the Ed25519 private key matching the signing key
	// sent in the registration request, if any.
	PrivateSignKey string
}

// Register anonymously registers a new client against a registration
// token, returning the server-issued credentials. If opts.Backup is set,
// the server indicates a backup target, and opts.PrivateKey is supplied,
// a transient Facade is constructed from the new credentials to write and
// share a tozny.key_backup record before returning.
func Register(ctx context.Context, apiURL string, req model.RegistrationRequest, opts RegisterOptions) (*model.RegistrationResponse, error) {
	t := transport.NewClient(apiURL, "", "")
	resp, backupTarget, err := remote.RegisterClient(ctx, t, req)
	if err != nil {
		return nil, err
	}

	if opts.Backup && backupTarget != "" && opts.PrivateKey != "" {
		if err := backupNewCredentials(ctx, apiURL, req, resp, backupTarget, opts); err != nil {
			log.Error().Err(err).Str("client_id", resp.ClientID).Msg("credential backup failed")
			return nil, err
		}
	}

	return resp, nil
}

func backupNewCredentials(ctx context.Context, apiURL string, req model.RegistrationRequest, resp *model.RegistrationResponse, backupTarget string, opts RegisterOptions) error {
	version := model.ConfigVersion1
	publicSignKey, privateSignKey := "", ""
	if req.Client.SigningKey != nil && opts.PrivateSignKey != "" {
		version = model.ConfigVersion2
		publicSignKey = req.Client.SigningKey.Ed25519
		privateSignKey = opts.PrivateSignKey
	}

	cfg, err := model.NewConfig(
		resp.ClientID, resp.ApiKeyID, resp.ApiSecret,
		req.Client.PublicKey.Curve25519, opts.PrivateKey,
		publicSignKey, privateSignKey,
		apiURL, version,
	)
	if err != nil {
		return err
	}

	f := newFacadeWithTransport(cfg, transport.NewClient(apiURL, resp.ApiKeyID, resp.ApiSecret))
	defer f.Close()

	return f.backup(ctx, backupTarget, req.Token)
}

// backup writes the bound Config as a tozny.key_backup record, shares it
// with targetClientID, and notifies the account service.
func (f *Facade) backup(ctx context.Context, targetClientID, registrationToken string) error {
	data := model.RecordData{
		"client_id":  jsonQuote(f.cfg.ClientID),
		"api_key_id": jsonQuote(f.cfg.ApiKeyID),
		"api_secret": jsonQuote(f.cfg.ApiSecret),
		"public_key": jsonQuote(f.cfg.PublicKey),
		"private_key": jsonQuote(f.cfg.PrivateKey),
		"api_url":    jsonQuote(f.cfg.ApiUrl),
		"version":    jsonQuote(strconv.Itoa(int(f.cfg.Version))),
	}
	if f.cfg.Version == model.ConfigVersion2 {
		data["public_sign_key"] = jsonQuote(f.cfg.PublicSignKey)
		data["private_sign_key"] = jsonQuote(f.cfg.PrivateSignKey)
	}

	if _, err := f.Write(ctx, backupRecordType, data, nil); err != nil {
		return fmt.Errorf("write backup record: %w", err)
	}
	if err := f.Share(ctx, backupRecordType, targetClientID); err != nil {
		return fmt.Errorf("share backup record: %w", err)
	}
	return remote.NotifyBackup(ctx, f.transport, registrationToken, f.cfg.ClientID)
}

func jsonQuote(s string) string {
	b, err := jsonw.Marshal(s)
	if err != nil {
		// s is always a plain string; Marshal only fails on unsupported
		// types or cyclic structures, neither possible here.
		panic(fmt.Sprintf("client: failed to quote backup field: %v", err))
	}
	return string(b)
}
