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
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"fmt"

	"github.com/jamesruan/sodium"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/pbkdf2"

	"github.com/sealedvault/client/utils/zero"
)

// Sizes mandated by the envelope format (C2/C3).
const (
	BoxNonceSize       = 24
	SecretBoxNonceSize = 24
	SecretBoxKeySize   = 32
	PublicKeySize      = 32 // X25519
	PrivateKeySize     = 32 // X25519

	kdfIterations = 1000
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("model: failed to read random bytes: %v", err))
	}
	return b
}

// RandomSecretboxKey returns a fresh 32-byte secret-box key (used both as a
// DK and an AK).
func RandomSecretboxKey() []byte {
	return RandomBytes(SecretBoxKeySize)
}

// BoxSeal performs authenticated public-key encryption (X25519 + XSalsa20-Poly1305):
// the sender's private key authenticates the message to the recipient, who can only
// decrypt it with their own private key and the sender's public key.
func BoxSeal(msg, nonce, recipientPub, senderPriv []byte) []byte {
	pk := sodium.BoxPublicKey{Bytes: append([]byte(nil), recipientPub...)}
	sk := sodium.BoxSecretKey{Bytes: append([]byte(nil), senderPriv...)}
	n := sodium.BoxNonce{Bytes: append([]byte(nil), nonce...)}

	ct := sodium.Bytes(msg).Box(n, pk, sk)
	return []byte(ct)
}

// BoxOpen is the inverse of BoxSeal.
func BoxOpen(ct, nonce, senderPub, recipientPriv []byte) ([]byte, error) {
	pk := sodium.BoxPublicKey{Bytes: append([]byte(nil), senderPub...)}
	sk := sodium.BoxSecretKey{Bytes: append([]byte(nil), recipientPriv...)}
	n := sodium.BoxNonce{Bytes: append([]byte(nil), nonce...)}

	msg, err := sodium.Bytes(ct).BoxOpen(n, pk, sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}
	return []byte(msg), nil
}

// SecretboxSeal encrypts msg under a 32-byte shared key (XSalsa20-Poly1305).
func SecretboxSeal(msg, nonce, key []byte) []byte {
	k := sodium.SecretBoxKey{Bytes: append([]byte(nil), key...)}
	n := sodium.SecretBoxNonce{Bytes: append([]byte(nil), nonce...)}

	ct := sodium.Bytes(msg).SecretBox(n, k)
	return []byte(ct)
}

// SecretboxOpen is the inverse of SecretboxSeal.
func SecretboxOpen(ct, nonce, key []byte) ([]byte, error) {
	k := sodium.SecretBoxKey{Bytes: append([]byte(nil), key...)}
	n := sodium.SecretBoxNonce{Bytes: append([]byte(nil), nonce...)}

	msg, err := sodium.Bytes(ct).SecretBoxOpen(n, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}
	return []byte(msg), nil
}

// SignDetached produces a detached Ed25519 signature over msg.
func SignDetached(msg, priv ed25519.PrivateKey) []byte {
	sk := sodium.SignSecretKey{Bytes: append([]byte(nil), priv...)}
	sig := sodium.Bytes(msg).SignDetached(sk)
	return []byte(sig)
}

// VerifyDetached reports whether sig is a valid detached signature of msg under pub.
func VerifyDetached(sig, msg []byte, pub ed25519.PublicKey) bool {
	pk := sodium.SignPublicKey{Bytes: append([]byte(nil), pub...)}
	err := sodium.Bytes(msg).SignVerifyDetached(sig, pk)
	return err == nil
}

// Kdf derives outLen bytes from password and salt using PBKDF2-HMAC-SHA512
// with a fixed 1000-iteration count, matching the reference client's KDF.
func Kdf(password, salt []byte, outLen int) []byte {
	return pbkdf2.Key(password, salt, kdfIterations, outLen, sha512.New)
}

// DeriveSignKeypair derives an Ed25519 signing keypair from a password/salt pair
// via a 32-byte PBKDF2-SHA512 seed.
func DeriveSignKeypair(password, salt []byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := Kdf(password, salt, ed25519.SeedSize)
	defer zero.Bytes(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	pub := append(ed25519.PublicKey(nil), priv[ed25519.SeedSize:]...)
	return pub, priv
}

// DeriveCryptoKeypair derives an X25519 keypair from a password/salt pair via a
// 32-byte PBKDF2-SHA512 seed used directly as the private scalar.
func DeriveCryptoKeypair(password, salt []byte) (publicKey, privateKey []byte) {
	privateKey = Kdf(password, salt, PrivateKeySize)

	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		panic(fmt.Sprintf("model: failed to derive X25519 public key: %v", err))
	}
	return pub, privateKey
}

// RandomCryptoKeypair generates a fresh X25519 keypair from CSPRNG bytes,
// for GenerateKeypair; unlike DeriveCryptoKeypair it is not reproducible
// from any password.
func RandomCryptoKeypair() (publicKey, privateKey []byte) {
	privateKey = RandomBytes(PrivateKeySize)
	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		panic(fmt.Sprintf("model: failed to derive X25519 public key: %v", err))
	}
	return pub, privateKey
}

// DeriveSymmetricKey derives a 32-byte symmetric key from a password/salt pair.
func DeriveSymmetricKey(password, salt []byte) []byte {
	return Kdf(password, salt, SecretBoxKeySize)
}

// B64UEncode encodes b as unpadded, URL-safe base64.
func B64UEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// B64UDecode decodes an unpadded, URL-safe base64 string.
func B64UDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
