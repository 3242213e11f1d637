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
	"fmt"
	"strings"
)

// EakString is the wire/stored form of an EAK: an AK sealed for a specific
// reader, "b64u(ciphertext).b64u(nonce)".
type EakString string

// EncodeEak builds the dotted EAK envelope string from its parts.
func EncodeEak(ciphertext, nonce []byte) EakString {
	return EakString(B64UEncode(ciphertext) + "." + B64UEncode(nonce))
}

// DecodeEak splits and decodes an EAK envelope string, rejecting anything
// that doesn't parse as exactly two base64url parts.
func DecodeEak(s EakString) (ciphertext, nonce []byte, err error) {
	parts := strings.Split(string(s), ".")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w: MalformedEak: expected 2 parts, got %d", ErrMalformedEnvelope, len(parts))
	}

	ciphertext, err = B64UDecode(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: MalformedEak: bad ciphertext: %v", ErrMalformedEnvelope, err)
	}

	nonce, err = B64UDecode(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: MalformedEak: bad nonce: %v", ErrMalformedEnvelope, err)
	}

	return ciphertext, nonce, nil
}

// FieldString is the wire form of one encrypted record field value:
// "b64u(edk).b64u(edkNonce).b64u(ef).b64u(efNonce)".
type FieldString string

// EncodeField builds the dotted field envelope string from its parts.
func EncodeField(edk, edkNonce, ef, efNonce []byte) FieldString {
	return FieldString(strings.Join([]string{
		B64UEncode(edk),
		B64UEncode(edkNonce),
		B64UEncode(ef),
		B64UEncode(efNonce),
	}, "."))
}

// DecodeField splits and decodes a field envelope string, rejecting anything
// that doesn't parse as exactly four base64url parts.
func DecodeField(s FieldString) (edk, edkNonce, ef, efNonce []byte, err error) {
	parts := strings.Split(string(s), ".")
	if len(parts) != 4 {
		return nil, nil, nil, nil, fmt.Errorf("%w: MalformedField: expected 4 parts, got %d", ErrMalformedEnvelope, len(parts))
	}

	decoded := make([][]byte, 4)
	for i, p := range parts {
		b, err := B64UDecode(p)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("%w: MalformedField: bad part %d: %v", ErrMalformedEnvelope, i, err)
		}
		decoded[i] = b
	}

	return decoded[0], decoded[1], decoded[2], decoded[3], nil
}
