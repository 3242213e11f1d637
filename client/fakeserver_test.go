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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sealedvault/client/model"
)

// fakeServer is a minimal in-memory stand-in for the external record-store
// service §6 describes as a black box: just enough of the wire protocol
// (records, access keys, policy, search, client lookup) to drive the client
// package's components end to end, with no encryption logic of its own —
// it only ever sees ciphertext.
type fakeServer struct {
	mu sync.Mutex

	nextID    int
	records   map[string]*model.Record // recordID -> stored record (encrypted)
	order     []string                 // insertion order, for search pagination
	eaks      map[string]*model.EAKInfo
	policies  map[string]bool // key -> allowed
	clientKey map[string]model.PublicKeyInfo

	backupTarget  string // X-Backup-Client to return on registration, if any
	registrations int
	backupNotices []string // "token/clientID" pairs NotifyBackup recorded
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		records:   make(map[string]*model.Record),
		eaks:      make(map[string]*model.EAKInfo),
		policies:  make(map[string]bool),
		clientKey: make(map[string]model.PublicKeyInfo),
	}
}

func (s *fakeServer) registerClient(clientID string, cfg *model.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientKey[clientID] = model.PublicKeyInfo{Curve25519: cfg.PublicKey}
}

func akKey(w, u, r, t string) string { return strings.Join([]string{w, u, r, t}, "|") }

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	withAuthToken(mux)

	mux.HandleFunc("/v1/account/e3db/clients/register", func(w http.ResponseWriter, r *http.Request) {
		var req model.RegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.nextID++
		clientID := fmt.Sprintf("registered-%d", s.nextID)
		s.clientKey[clientID] = req.Client.PublicKey
		s.registrations++
		target := s.backupTarget
		s.mu.Unlock()

		if target != "" {
			w.Header().Set("X-Backup-Client", target)
		}
		_ = json.NewEncoder(w).Encode(model.RegistrationResponse{
			ClientID:  clientID,
			ApiKeyID:  "key-" + clientID,
			ApiSecret: "secret-" + clientID,
		})
	})

	mux.HandleFunc("/v1/account/backup/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.backupNotices = append(s.backupNotices, strings.TrimPrefix(r.URL.Path, "/v1/account/backup/"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/v1/storage/clients/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/storage/clients/")
		s.mu.Lock()
		pub, ok := s.clientKey[id]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(model.ClientInfo{ClientID: id, PublicKey: pub, Validated: true})
	})

	mux.HandleFunc("/v1/storage/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var rec model.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.nextID++
		rec.Meta.RecordID = fmt.Sprintf("rec-%d", s.nextID)
		rec.Meta.Version = "1"
		stored := rec
		s.records[rec.Meta.RecordID] = &stored
		s.order = append(s.order, rec.Meta.RecordID)
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode(stored)
	})

	mux.HandleFunc("/v1/storage/records/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1/storage/records/")

		if strings.HasPrefix(path, "safe/") {
			parts := strings.Split(strings.TrimPrefix(path, "safe/"), "/")
			if len(parts) != 2 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			id, version := parts[0], parts[1]

			switch r.Method {
			case http.MethodPut:
				var rec model.Record
				if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}

				s.mu.Lock()
				current, ok := s.records[id]
				if !ok || current.Meta.Version != version {
					s.mu.Unlock()
					w.WriteHeader(http.StatusConflict)
					return
				}
				next, _ := strconv.Atoi(version)
				rec.Meta.RecordID = id
				rec.Meta.Version = strconv.Itoa(next + 1)
				stored := rec
				s.records[id] = &stored
				s.mu.Unlock()

				_ = json.NewEncoder(w).Encode(stored)
			case http.MethodDelete:
				s.mu.Lock()
				current, ok := s.records[id]
				if !ok || current.Meta.Version != version {
					s.mu.Unlock()
					w.WriteHeader(http.StatusConflict)
					return
				}
				delete(s.records, id)
				s.mu.Unlock()
				w.WriteHeader(http.StatusNoContent)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		}

		id := path
		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			rec, ok := s.records[id]
			s.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			out := *rec
			if fields, ok := r.URL.Query()["field"]; ok && len(fields) > 0 {
				filtered := make(model.RecordData, len(fields))
				for _, f := range fields {
					if v, present := rec.Data[f]; present {
						filtered[f] = v
					}
				}
				out.Data = filtered
			}
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodDelete:
			s.mu.Lock()
			delete(s.records, id)
			s.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/storage/access_keys/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/storage/access_keys/"), "/")
		if len(parts) != 4 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := akKey(parts[0], parts[1], parts[2], parts[3])

		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			eak, ok := s.eaks[key]
			s.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(eak)
		case http.MethodPut:
			var eak model.EAKInfo
			if err := json.NewDecoder(r.Body).Decode(&eak); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			s.mu.Lock()
			s.eaks[key] = &eak
			s.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			s.mu.Lock()
			delete(s.eaks, key)
			s.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/v1/storage/policy/outgoing", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]model.OutgoingSharingEntry, 0)
		for key, allowed := range s.policies {
			if !allowed {
				continue
			}
			parts := strings.Split(key, "|")
			out = append(out, model.OutgoingSharingEntry{ReaderID: parts[2], RecordType: parts[3]})
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/v1/storage/policy/incoming", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]model.IncomingSharingEntry, 0)
		for key, allowed := range s.policies {
			if !allowed {
				continue
			}
			parts := strings.Split(key, "|")
			out = append(out, model.IncomingSharingEntry{WriterID: parts[0], RecordType: parts[3]})
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/v1/storage/policy/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/storage/policy/"), "/")
		if len(parts) != 4 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := akKey(parts[0], parts[1], parts[2], parts[3])

		var req model.PolicyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.policies[key] = len(req.Allow) > 0
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/v1/storage/search", func(w http.ResponseWriter, r *http.Request) {
		var q model.Query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		matches := func(rec *model.Record) bool {
			if len(q.WriterIDs) > 0 && !containsStr(q.WriterIDs, rec.Meta.WriterID) {
				return false
			}
			if len(q.ContentTypes) > 0 && !containsStr(q.ContentTypes, rec.Meta.Type) {
				return false
			}
			return true
		}

		// findEak returns any EAK wrapped for (writer,user,type), regardless
		// of which reader it was wrapped for: the fake server has no notion
		// of the calling identity (every test identity authenticates with
		// the same dummy bearer token), so it can't restrict the lookup to
		// one specific reader the way the real service would.
		findEak := func(writerID, userID, recordType string) *model.EAKInfo {
			prefix := writerID + "|" + userID + "|"
			suffix := "|" + recordType
			for k, eak := range s.eaks {
				if strings.HasPrefix(k, prefix) && strings.HasSuffix(k, suffix) {
					return eak
				}
			}
			return nil
		}

		var results []model.QueryResultItem
		var lastIndex int64
		pageSize := int64(len(s.order))
		if q.Count > 0 {
			pageSize = int64(q.Count)
		}

		idx := int64(0)
		for i, id := range s.order {
			if int64(i) < q.AfterIndex {
				continue
			}
			rec := s.records[id]
			if rec == nil || !matches(rec) {
				continue
			}
			item := model.QueryResultItem{Meta: rec.Meta}
			if q.IncludeData {
				item.Data = rec.Data
				item.Eak = findEak(rec.Meta.WriterID, rec.Meta.UserID, rec.Meta.Type)
			}
			results = append(results, item)
			lastIndex = int64(i) + 1
			idx++
			if idx >= pageSize {
				break
			}
		}

		_ = json.NewEncoder(w).Encode(model.QueryResponse{Results: results, LastIndex: lastIndex})
	})

	return mux
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func newFakeServerHTTP(t *testing.T) (*httptest.Server, *fakeServer) {
	t.Helper()
	s := newFakeServer()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return srv, s
}
