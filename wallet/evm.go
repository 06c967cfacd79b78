package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const paymentGasLimit = 21000 // plain value transfer

// EVMClient implements Client over an EVM JSON-RPC endpoint with a single
// local signing key.
type EVMClient struct {
	rpc     *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	logger  zerolog.Logger
}

// NewEVMClient dials the RPC endpoint and derives the wallet address from
// the hex-encoded private key.
func NewEVMClient(rpcURL, privateKeyHex string, chainID int64, logger zerolog.Logger) (*EVMClient, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet key: %w", err)
	}

	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet RPC: %w", err)
	}

	return &EVMClient{
		rpc:     rpc,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
		logger:  logger.With().Str("component", "evm_wallet").Logger(),
	}, nil
}

// Address returns the wallet's hex address.
func (c *EVMClient) Address() string {
	return c.address.Hex()
}

// Balance returns the current balance in wei.
func (c *EVMClient) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := c.rpc.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	return balance, nil
}

// SendPayment sends a plain value transfer and returns its transaction hash.
func (c *EVMClient) SendPayment(ctx context.Context, to string, amountWei *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid payment target address %q", to)
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	target := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &target,
		Value:    amountWei,
		Gas:      paymentGasLimit,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign payment: %w", err)
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send payment: %w", err)
	}

	hash := signed.Hash().Hex()
	c.logger.Info().
		Str("to", to).
		Str("amount_wei", amountWei.String()).
		Str("tx_hash", hash).
		Msg("funding payment sent")
	return hash, nil
}

// SignPayload signs the keccak digest of payload with the wallet key.
func (c *EVMClient) SignPayload(payload []byte) ([]byte, error) {
	digest := crypto.Keccak256(payload)
	sig, err := crypto.Sign(digest, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	return sig, nil
}
