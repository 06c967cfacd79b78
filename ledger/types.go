// Package ledger defines the narrow client interface the sync engine uses to
// talk to the append-only content-addressed ledger, and an HTTP
// implementation speaking to a bundler write endpoint, two query endpoints
// (fast index plus canonical), and a pair of content gateways.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

// ErrPaymentRequired is the sentinel for a 402 response. It is a protocol
// state, not a failure: the upload coordinator resolves it through the
// funding policy. A 402 carries no body guarantee and none is ever parsed.
var ErrPaymentRequired = errors.New("ledger write requires payment")

// Tag is one name/value pair attached to a ledger record.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TxRef is a transaction reference returned by a tag-filtered query.
// Settled is true when the canonical settlement layer returned the id, as
// opposed to only the fast-indexing layer.
type TxRef struct {
	ID      string
	Tags    []Tag
	Settled bool
}

// TagValue returns the first value for name, or "".
func (r TxRef) TagValue(name string) string {
	for _, t := range r.Tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// Client is the engine's view of the ledger. Implementations must treat
// Submit payloads as opaque signed bytes.
type Client interface {
	// Submit posts a signed, tagged payload to the token-specific write
	// endpoint. Returns the opaque transaction id on acceptance, or
	// ErrPaymentRequired on a 402.
	Submit(ctx context.Context, payload []byte, tags []Tag) (string, error)

	// Query runs a tag-filtered query against the fast-indexing endpoint
	// first and the canonical endpoint as fallback, merging results and
	// de-duplicating by id.
	Query(ctx context.Context, filters []Tag) ([]TxRef, error)

	// FetchData fetches payload bytes by id from the content gateways,
	// first success wins.
	FetchData(ctx context.Context, id string) ([]byte, error)

	// EstimatePrice returns the write price in wei for an exact byte size.
	EstimatePrice(ctx context.Context, byteSize int) (*big.Int, error)

	// IsSettled reports whether the id is visible on the canonical layer.
	IsSettled(ctx context.Context, id string) (bool, error)
}
