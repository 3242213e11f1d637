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

package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealedvault/client/model"
)

func TestBoxSealOpen_RoundTrip(t *testing.T) {
	recipientPub, recipientPriv := model.DeriveCryptoKeypair([]byte("recipient"), []byte("salt1"))
	senderPub, senderPriv := model.DeriveCryptoKeypair([]byte("sender"), []byte("salt2"))

	nonce := model.RandomBytes(model.BoxNonceSize)
	msg := []byte("top secret access key")

	ct := model.BoxSeal(msg, nonce, recipientPub, senderPriv)
	out, err := model.BoxOpen(ct, nonce, senderPub, recipientPriv)
	require.NoError(t, err)
	assert.Equal(t, msg, out)
}

func TestBoxOpen_WrongKeyFails(t *testing.T) {
	recipientPub, recipientPriv := model.DeriveCryptoKeypair([]byte("recipient"), []byte("salt1"))
	senderPub, senderPriv := model.DeriveCryptoKeypair([]byte("sender"), []byte("salt2"))
	otherPub, otherPriv := model.DeriveCryptoKeypair([]byte("other"), []byte("salt3"))
	_ = otherPub

	nonce := model.RandomBytes(model.BoxNonceSize)
	ct := model.BoxSeal([]byte("msg"), nonce, recipientPub, senderPriv)

	_, err := model.BoxOpen(ct, nonce, senderPub, otherPriv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecryptionFailure))
}

func TestSecretboxSealOpen_RoundTrip(t *testing.T) {
	key := model.RandomSecretboxKey()
	nonce := model.RandomBytes(model.SecretBoxNonceSize)
	msg := []byte("field value")

	ct := model.SecretboxSeal(msg, nonce, key)
	out, err := model.SecretboxOpen(ct, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, msg, out)
}

func TestSecretboxOpen_TamperedCiphertextFails(t *testing.T) {
	key := model.RandomSecretboxKey()
	nonce := model.RandomBytes(model.SecretBoxNonceSize)
	ct := model.SecretboxSeal([]byte("msg"), nonce, key)
	ct[0] ^= 0xFF

	_, err := model.SecretboxOpen(ct, nonce, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecryptionFailure))
}

func TestSignVerifyDetached_RoundTrip(t *testing.T) {
	pub, priv := model.DeriveSignKeypair([]byte("password"), []byte("salt"))
	msg := []byte("record info bytes")

	sig := model.SignDetached(msg, priv)
	assert.True(t, model.VerifyDetached(sig, msg, pub))
}

func TestVerifyDetached_TamperedMessageFails(t *testing.T) {
	pub, priv := model.DeriveSignKeypair([]byte("password"), []byte("salt"))
	sig := model.SignDetached([]byte("original"), priv)

	assert.False(t, model.VerifyDetached(sig, []byte("tampered"), pub))
}

func TestDeriveSignKeypair_IsDeterministic(t *testing.T) {
	pub1, priv1 := model.DeriveSignKeypair([]byte("pw"), []byte("salt"))
	pub2, priv2 := model.DeriveSignKeypair([]byte("pw"), []byte("salt"))

	assert.Equal(t, pub1, pub2)
	assert.Equal(t, priv1, priv2)
}

func TestDeriveCryptoKeypair_IsDeterministic(t *testing.T) {
	pub1, priv1 := model.DeriveCryptoKeypair([]byte("pw"), []byte("salt"))
	pub2, priv2 := model.DeriveCryptoKeypair([]byte("pw"), []byte("salt"))

	assert.Equal(t, pub1, pub2)
	assert.Equal(t, priv1, priv2)
}

func TestB64UEncodeDecode_RoundTrip(t *testing.T) {
	raw := model.RandomBytes(32)
	s := model.B64UEncode(raw)

	assert.NotContains(t, s, "=")
	assert.NotContains(t, s, "+")
	assert.NotContains(t, s, "/")

	out, err := model.B64UDecode(s)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
