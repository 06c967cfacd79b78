// Package dedup computes canonical content hashes for entries and resolves
// duplicate or stale copies left behind by publish races.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// bookkeepingFields never participate in the content hash. The hash is a
// pure function of semantic fields only and must be stable across
// independent computations on different devices.
var bookkeepingFields = map[string]bool{
	"id":          true,
	"txid":        true,
	"prevTxid":    true,
	"status":      true,
	"seenRemote":  true,
	"settled":     true,
	"contentHash": true,
	"tombstonedAt": true,
	"createdAt":   true,
	"updatedAt":   true,
}

// ContentHash returns the hex SHA-256 of the canonical encoding of the
// semantic fields in payload. Remote-declared hashes are never trusted;
// callers recompute with this function instead.
func ContentHash(payload map[string]any) (string, error) {
	var sb strings.Builder
	if err := writeCanonical(&sb, semanticFields(payload)); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

func semanticFields(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if bookkeepingFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// writeCanonical emits a deterministic encoding: objects with sorted keys,
// scalars via encoding/json. Map iteration order never leaks into the hash.
func writeCanonical(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			sb.Write(keyJSON)
			sb.WriteByte(':')
			if err := writeCanonical(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
		return nil
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil
	default:
		enc, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("failed to encode field: %w", err)
		}
		sb.Write(enc)
		return nil
	}
}
