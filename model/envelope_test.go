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

func TestEakEncodeDecode_RoundTrip(t *testing.T) {
	ct := model.RandomBytes(48)
	nonce := model.RandomBytes(model.BoxNonceSize)

	s := model.EncodeEak(ct, nonce)
	outCt, outNonce, err := model.DecodeEak(s)
	require.NoError(t, err)
	assert.Equal(t, ct, outCt)
	assert.Equal(t, nonce, outNonce)
}

func TestDecodeEak_RejectsMalformed(t *testing.T) {
	_, _, err := model.DecodeEak("only-one-part")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedEnvelope))

	_, _, err = model.DecodeEak("a.b.c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedEnvelope))
}

func TestFieldEncodeDecode_RoundTrip(t *testing.T) {
	edk := model.RandomBytes(32)
	edkNonce := model.RandomBytes(model.SecretBoxNonceSize)
	ef := model.RandomBytes(64)
	efNonce := model.RandomBytes(model.SecretBoxNonceSize)

	s := model.EncodeField(edk, edkNonce, ef, efNonce)
	outEdk, outEdkNonce, outEf, outEfNonce, err := model.DecodeField(s)
	require.NoError(t, err)
	assert.Equal(t, edk, outEdk)
	assert.Equal(t, edkNonce, outEdkNonce)
	assert.Equal(t, ef, outEf)
	assert.Equal(t, efNonce, outEfNonce)
}

func TestDecodeField_RejectsMalformed(t *testing.T) {
	_, _, _, _, err := model.DecodeField("a.b.c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedEnvelope))

	_, _, _, _, err = model.DecodeField("not base64 at all!!.b.c.d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedEnvelope))
}
