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

// Command sealedvault-example is a minimal demonstration of the client
// library: register two clients, write a record, share it, query it back,
// and revoke access. It is not part of the library's public API.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sealedvault/client/client"
	"github.com/sealedvault/client/model"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp})

	apiURL := os.Getenv("SEALEDVAULT_API_URL")
	regToken := os.Getenv("SEALEDVAULT_REG_TOKEN")
	if apiURL == "" || regToken == "" {
		log.Fatal().Msg("SEALEDVAULT_API_URL and SEALEDVAULT_REG_TOKEN must be set")
	}

	ctx := context.Background()

	writer, err := registerClient(ctx, apiURL, regToken, "alice")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register writer")
	}
	defer writer.Close()

	reader, err := registerClient(ctx, apiURL, regToken, "bob")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register reader")
	}
	defer reader.Close()

	written, err := writer.Write(ctx, "example.note", model.RecordData{
		"title": "hello from sealedvault-example",
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to write record")
	}
	log.Info().Str("record_id", written.Meta.RecordID).Msg("wrote record")

	readerID := reader.ClientID()
	if err := writer.Share(ctx, "example.note", readerID); err != nil {
		log.Fatal().Err(err).Msg("failed to share record")
	}
	log.Info().Str("reader_id", readerID).Msg("shared record")

	read, err := reader.Read(ctx, written.Meta.RecordID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read shared record")
	}
	log.Info().Str("title", read.Data["title"]).Msg("reader decrypted record")

	cur := writer.Query(model.Query{IncludeData: true, WriterIDs: []string{writer.ClientID()}})
	for !cur.Done() {
		batch, err := cur.Next(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("query failed")
		}
		for _, rec := range batch {
			log.Info().Str("record_id", rec.Meta.RecordID).Str("title", rec.Data["title"]).Msg("query result")
		}
	}

	if err := writer.Revoke(ctx, "example.note", readerID); err != nil {
		log.Fatal().Err(err).Msg("failed to revoke access")
	}
	log.Info().Str("reader_id", readerID).Msg("revoked access")
}

// registerClient generates a fresh keypair, registers it anonymously against
// regToken, and returns a ready-to-use Facade bound to the new credentials.
func registerClient(ctx context.Context, apiURL, regToken, name string) (*client.Facade, error) {
	publicKey, privateKey := client.GenerateKeypair()
	publicSignKey, privateSignKey := client.GenerateSigningKeypair()

	req := model.RegistrationRequest{
		Token: regToken,
		Client: model.RegistrationInfo{
			Name:       name,
			PublicKey:  model.PublicKeyInfo{Curve25519: publicKey},
			SigningKey: &model.SigningKeyInfo{Ed25519: publicSignKey},
		},
	}

	resp, err := client.Register(ctx, apiURL, req, client.RegisterOptions{
		Backup:         true,
		PrivateKey:     privateKey,
		PrivateSignKey: privateSignKey,
	})
	if err != nil {
		return nil, err
	}

	cfg, err := model.NewConfig(
		resp.ClientID, resp.ApiKeyID, resp.ApiSecret,
		publicKey, privateKey,
		publicSignKey, privateSignKey,
		apiURL, model.ConfigVersion2,
	)
	if err != nil {
		return nil, err
	}

	return client.New(cfg), nil
}
