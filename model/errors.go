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

import "errors"

// Error kinds from the client's error handling design. They are never
// swallowed: callers propagate them, wrapping with extra context via
// fmt.Errorf("...: %w", ...) where useful.
var (
	ErrConfigInvalid          = errors.New("config invalid")
	ErrTransportError         = errors.New("transport error")
	ErrAuthFailure            = errors.New("authentication failure")
	ErrNoAccess               = errors.New("no access")
	ErrConflict               = errors.New("version conflict")
	ErrMalformedEnvelope      = errors.New("malformed envelope")
	ErrDecryptionFailure      = errors.New("decryption failure")
	ErrSignatureInvalid       = errors.New("signature invalid")
	ErrSignatureUnavailable   = errors.New("signature unavailable")
	ErrEmailLookupUnsupported = errors.New("email lookup unsupported")
	ErrRegistrationFailed     = errors.New("registration failed")
)
