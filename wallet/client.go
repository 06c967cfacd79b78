// Package wallet defines the engine's view of the on-chain wallet and an
// EVM implementation. The engine treats the wallet as an opaque capability;
// it never holds raw key material beyond the derived encryption key.
package wallet

import (
	"context"
	"math/big"
)

// Client is the wallet collaborator interface.
type Client interface {
	// Address returns the wallet's hex address.
	Address() string

	// Balance returns the wallet balance in wei.
	Balance(ctx context.Context) (*big.Int, error)

	// SendPayment sends amountWei to the given address and returns the
	// transaction hash.
	SendPayment(ctx context.Context, to string, amountWei *big.Int) (string, error)

	// SignPayload signs arbitrary bytes with the wallet key.
	SignPayload(payload []byte) ([]byte, error)
}
