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

import (
	"crypto/ed25519"
	"fmt"

	"github.com/awnumar/memguard"
)

// ConfigVersion identifies the envelope/signature generation a Config speaks.
type ConfigVersion int

const (
	// ConfigVersion1 omits signing keys; records carry no signature.
	ConfigVersion1 ConfigVersion = 1
	// ConfigVersion2 requires both signing keys; every write is signed.
	ConfigVersion2 ConfigVersion = 2
)

// Config is the immutable bundle bound to a client at construction time.
// PrivateKey and PrivateSignKey are decoded once and kept in memguard-locked
// buffers rather than plain Go byte slices, generalizing the teacher's
// hand-rolled zero.Bytes/Bytea32 wipe-on-close idiom (model.DID.Zero,
// AccessKey.Neuter) into OS-level memory locking plus guaranteed
// wipe-on-Close instead of a best-effort loop over a GC-managed slice.
type Config struct {
	ClientID  string
	ApiKeyID  string
	ApiSecret string

	PublicKey  string // X25519, URL-safe base64
	PrivateKey string // X25519, URL-safe base64

	PublicSignKey  string // Ed25519, URL-safe base64 (v2 only)
	PrivateSignKey string // Ed25519, URL-safe base64 (v2 only)

	ApiUrl  string
	Version ConfigVersion

	privateKeyBuf     *memguard.LockedBuffer
	privateSignKeyBuf *memguard.LockedBuffer
}

// NewConfig validates and hydrates a Config, decoding its private key
// material into locked buffers. Callers must call Close when done with it.
func NewConfig(
	clientID, apiKeyID, apiSecret string,
	publicKey, privateKey string,
	publicSignKey, privateSignKey string,
	apiURL string,
	version ConfigVersion,
) (*Config, error) {
	cfg := &Config{
		ClientID:       clientID,
		ApiKeyID:       apiKeyID,
		ApiSecret:      apiSecret,
		PublicKey:      publicKey,
		PrivateKey:     privateKey,
		PublicSignKey:  publicSignKey,
		PrivateSignKey: privateSignKey,
		ApiUrl:         apiURL,
		Version:        version,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if privateKey != "" {
		raw, err := B64UDecode(privateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: bad private key encoding: %v", ErrConfigInvalid, err)
		}
		cfg.privateKeyBuf = memguard.NewBufferFromBytes(raw)
	}

	if privateSignKey != "" {
		raw, err := B64UDecode(privateSignKey)
		if err != nil {
			return nil, fmt.Errorf("%w: bad private sign key encoding: %v", ErrConfigInvalid, err)
		}
		cfg.privateSignKeyBuf = memguard.NewBufferFromBytes(raw)
	}

	return cfg, nil
}

// Validate enforces the v1/v2 invariant: if Version == 2, both signing keys
// must be present and non-empty.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: missing client id", ErrConfigInvalid)
	}
	if c.PublicKey == "" || c.PrivateKey == "" {
		return fmt.Errorf("%w: missing encryption keypair", ErrConfigInvalid)
	}
	if c.ApiUrl == "" {
		return fmt.Errorf("%w: missing api url", ErrConfigInvalid)
	}

	switch c.Version {
	case ConfigVersion1:
		// signing keys are optional
	case ConfigVersion2:
		if c.PublicSignKey == "" || c.PrivateSignKey == "" {
			return fmt.Errorf("%w: version 2 requires both signing keys", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported config version %d", ErrConfigInvalid, c.Version)
	}

	return nil
}

// PublicKeyBytes decodes the X25519 public key.
func (c *Config) PublicKeyBytes() ([]byte, error) {
	return B64UDecode(c.PublicKey)
}

// PrivateKeyBytes returns the X25519 private key bytes held in the locked
// buffer. The returned slice aliases memguard-managed memory and must not
// be retained past the Config's lifetime.
func (c *Config) PrivateKeyBytes() []byte {
	if c.privateKeyBuf == nil {
		return nil
	}
	return c.privateKeyBuf.Bytes()
}

// PublicSignKeyBytes decodes the Ed25519 public signing key, if present.
func (c *Config) PublicSignKeyBytes() (ed25519.PublicKey, error) {
	if c.PublicSignKey == "" {
		return nil, nil
	}
	b, err := B64UDecode(c.PublicSignKey)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(b), nil
}

// PrivateSignKeyBytes returns the Ed25519 private signing key bytes, if present.
func (c *Config) PrivateSignKeyBytes() ed25519.PrivateKey {
	if c.privateSignKeyBuf == nil {
		return nil
	}
	return ed25519.PrivateKey(c.privateSignKeyBuf.Bytes())
}

// IsSigningCapable reports whether this config can sign records (version 2
// with both signing keys hydrated).
func (c *Config) IsSigningCapable() bool {
	return c.Version == ConfigVersion2 && c.privateSignKeyBuf != nil
}

// Close destroys the locked buffers backing the private key material. The
// Config must not be used afterwards.
func (c *Config) Close() {
	if c.privateKeyBuf != nil {
		c.privateKeyBuf.Destroy()
		c.privateKeyBuf = nil
	}
	if c.privateSignKeyBuf != nil {
		c.privateSignKeyBuf.Destroy()
		c.privateSignKeyBuf = nil
	}
}
