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

package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sealedvault/client/model"
)

// newTestIdentity derives a deterministic keypair set for one simulated
// client identity, keyed off label so separate identities don't collide.
func newTestIdentity(t *testing.T, label, apiURL string) (clientID string, cfg *model.Config) {
	t.Helper()

	pub, priv := model.DeriveCryptoKeypair([]byte(label), []byte("crypto-salt"))
	signPub, signPriv := model.DeriveSignKeypair([]byte(label), []byte("sign-salt"))

	clientID = label
	c, err := model.NewConfig(
		clientID, "key-"+label, "secret-"+label,
		model.B64UEncode(pub), model.B64UEncode(priv),
		model.B64UEncode(signPub), model.B64UEncode(signPriv),
		apiURL, model.ConfigVersion2,
	)
	require.NoError(t, err)
	return clientID, c
}

// withAuthToken registers the standard /v1/auth/token handler on mux so
// every test server can authenticate transport.Client without repeating
// the boilerplate.
func withAuthToken(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires_at":   time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	withAuthToken(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mux
}
