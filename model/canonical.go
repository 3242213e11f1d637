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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/sealedvault/client/utils/jsonw"
)

// SignedString wraps a string that must be embedded in a canonical document
// verbatim, without JSON quoting: canonical(SignedString(s)) == s.
type SignedString string

// CanonicalJSON renders v as the unique byte serialization used for signing:
// object keys are sorted by UTF-16 code unit (matching the JavaScript
// reference implementation's default Array.sort on strings), sorting is
// recursive, null-valued object fields are omitted, and there is no
// whitespace. Arbitrary structs are normalized through a JSON round trip so
// their field tags are honoured the same way sonic-driven wire marshalling
// would render them; SignedString values bypass quoting entirely.
func CanonicalJSON(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := renderCanonical(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RecordInfoBytes implements the RecordInfo signable concatenation:
// canonical(meta_for_signing) || canonical(data), with no separator.
// meta_for_signing carries only plain, type, user_id and writer_id — the
// server-assigned fields (record_id, created, last_modified, version) are
// excluded because they don't exist yet at sign time and must not affect
// the signature.
func RecordInfoBytes(meta *Meta, data RecordData) ([]byte, error) {
	metaForSigning := map[string]any{
		"plain":     plainMapToAny(meta.Plain),
		"type":      meta.Type,
		"user_id":   meta.UserID,
		"writer_id": meta.WriterID,
	}

	metaCanon, err := CanonicalJSON(metaForSigning)
	if err != nil {
		return nil, fmt.Errorf("canonicalize meta: %w", err)
	}

	dataCanon, err := CanonicalJSON(stringMapToAny(data))
	if err != nil {
		return nil, fmt.Errorf("canonicalize data: %w", err)
	}

	out := make([]byte, 0, len(metaCanon)+len(dataCanon))
	out = append(out, metaCanon...)
	out = append(out, dataCanon...)
	return out, nil
}

func plainMapToAny(m map[string]string) any {
	if m == nil {
		return nil
	}
	return stringMapToAny(m)
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// normalize walks v and converts it into the small value set renderCanonical
// understands: map[string]any, []any, string, float64, bool, nil or
// SignedString. Anything else is round-tripped through JSON first.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case SignedString:
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[string]string:
		return normalize(stringMapToAny(val))
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			n, err := normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	case string, float64, int, int64, bool:
		return val, nil
	default:
		// arbitrary struct: round-trip through the wire JSON encoder so its
		// json tags are honoured the same way the rest of the client marshals it.
		b, err := jsonw.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		var generic any
		if err := jsonw.Unmarshal(b, &generic); err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		return normalize(generic)
	}
}

func renderCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case SignedString:
		buf.WriteString(string(val))
		return nil
	case map[string]any:
		return renderObject(buf, val)
	case []any:
		return renderArray(buf, val)
	case string:
		return renderString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case float64, int, int64:
		return renderNumber(buf, val)
	default:
		return fmt.Errorf("canonical: unsupported value type %T", v)
	}
}

func renderObject(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v == nil {
			continue // null-valued fields are omitted
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return utf16Less(keys[i], keys[j]) })

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := renderString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := renderCanonical(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func renderArray(buf *bytes.Buffer, a []any) error {
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := renderCanonical(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func renderString(buf *bytes.Buffer, s string) error {
	b, err := encodeNoHTMLEscape(s)
	if err != nil {
		return fmt.Errorf("canonical: encode string: %w", err)
	}
	buf.Write(b)
	return nil
}

func renderNumber(buf *bytes.Buffer, v any) error {
	b, err := encodeNoHTMLEscape(v)
	if err != nil {
		return fmt.Errorf("canonical: encode number: %w", err)
	}
	buf.Write(b)
	return nil
}

// encodeNoHTMLEscape marshals v the way JavaScript's JSON.stringify would:
// encoding/json's Marshal escapes '<', '>' and '&' for safe HTML embedding,
// which the reference implementation never does and would desynchronize
// cross-implementation signatures over values containing those bytes.
func encodeNoHTMLEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// utf16Less orders two strings by UTF-16 code unit, matching JavaScript's
// default string comparison (and therefore the reference implementation's
// Array.sort behaviour on object keys, including keys outside the BMP such
// as emoji, which sort as surrogate pairs).
func utf16Less(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))

	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
