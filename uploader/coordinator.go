// Package uploader drives the write-and-retry protocol against the ledger:
// submit, resolve payment-required through the funding policy, and poll for
// acceptance while a payment credits.
package uploader

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/openshelf/shelf-sync-node/constant"
	syncerrors "github.com/openshelf/shelf-sync-node/errors"
	"github.com/openshelf/shelf-sync-node/funding"
	"github.com/openshelf/shelf-sync-node/ledger"
	"github.com/openshelf/shelf-sync-node/wallet"
)

// Status is the terminal state of one upload attempt.
type Status string

const (
	// StatusDone means the ledger accepted the write.
	StatusDone Status = "done"

	// StatusBlocked means the funding policy refused to fund now.
	StatusBlocked Status = "blocked"

	// StatusPostFundTimeout means a payment was made (or is propagating)
	// but the ledger did not accept the write within the poll timeout.
	// Non-fatal: the caller queues the op for later retry.
	StatusPostFundTimeout Status = "post-fund-timeout"

	// StatusFailed means a non-402 error stopped the attempt.
	StatusFailed Status = "failed"
)

// Result reports the outcome of one upload attempt.
type Result struct {
	Status   Status
	TxID     string
	Decision *funding.Decision
}

// Config holds the coordinator's policy constants. Timeouts come from
// configuration, not callers, to keep funding behavior auditable.
type Config struct {
	Node                string // ledger node identity for funding history
	Token               string
	FundTargetAddr      string // ledger-operated deposit address
	GasReserveWei       *big.Int
	PollInterval        time.Duration
	PollTimeout         time.Duration // poll window without a recent payment
	PostFundPollTimeout time.Duration // longer window while a payment credits
	FundBlockDuration   time.Duration
}

// Coordinator runs the per-write state machine
// Submit → Done | PaymentRequired → Fund → Poll.
type Coordinator struct {
	ledger ledger.Client
	wallet wallet.Client
	policy funding.Policy
	state  *funding.StateStore
	clock  clock.Clock
	cfg    Config
	logger zerolog.Logger
}

// New creates an upload coordinator.
func New(
	lc ledger.Client,
	wc wallet.Client,
	policy funding.Policy,
	state *funding.StateStore,
	clk clock.Clock,
	cfg Config,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		ledger: lc,
		wallet: wc,
		policy: policy,
		state:  state,
		clock:  clk,
		cfg:    cfg,
		logger: logger.With().Str("component", "upload_coordinator").Logger(),
	}
}

// Upload signs and submits the payload. On 402 it estimates the price for
// the exact signed envelope size, consults the funding policy, funds if told
// to, and polls the identical signed payload until acceptance, a non-402
// error, or the policy timeout.
func (c *Coordinator) Upload(ctx context.Context, payload []byte, tags []ledger.Tag) (Result, error) {
	sig, err := c.wallet.SignPayload(payload)
	if err != nil {
		return Result{Status: StatusFailed}, syncerrors.NewInternalError("failed to sign payload", err)
	}
	signedTags := append(append([]ledger.Tag{}, tags...), ledger.Tag{
		Name:  constant.TagSignature,
		Value: base64.RawURLEncoding.EncodeToString(sig),
	})

	id, err := c.ledger.Submit(ctx, payload, signedTags)
	if err == nil {
		return Result{Status: StatusDone, TxID: id}, nil
	}
	if !errors.Is(err, ledger.ErrPaymentRequired) {
		return Result{Status: StatusFailed}, err
	}

	return c.resolvePayment(ctx, payload, signedTags)
}

func (c *Coordinator) resolvePayment(ctx context.Context, payload []byte, signedTags []ledger.Tag) (Result, error) {
	size, err := ledger.EnvelopeSize(payload, signedTags)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	price, err := c.ledger.EstimatePrice(ctx, size)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	identity := funding.Identity{
		Node:    c.cfg.Node,
		Token:   c.cfg.Token,
		Address: c.wallet.Address(),
	}
	now := c.clock.Now()

	last, err := c.state.LatestFund(identity)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	block, err := c.state.ActiveBlock(identity.Address, now)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	// Balance is best-effort: an unreachable wallet RPC must not turn a
	// fundable write into a block.
	var balance *big.Int
	if b, berr := c.wallet.Balance(ctx); berr == nil {
		balance = b
	} else {
		c.logger.Warn().Err(berr).Msg("balance query failed, funding without balance check")
	}

	decision := c.policy.Decide(price, last, block, identity, balance, c.cfg.GasReserveWei, now)
	c.logger.Info().
		Str("action", string(decision.Action)).
		Str("reason", decision.Reason).
		Str("price_wei", price.String()).
		Msg("funding decision")

	switch decision.Action {
	case funding.ActionBlock:
		if decision.Reason == funding.ReasonInsufficientBalance {
			until := now.Add(c.cfg.FundBlockDuration)
			if err := c.state.RecordBlock(identity.Address, decision.Reason, until); err != nil {
				c.logger.Error().Err(err).Msg("failed to persist fund block")
			}
		}
		return Result{Status: StatusBlocked, Decision: &decision}, nil

	case funding.ActionSkip:
		// A recent payment is still propagating; poll with the extended
		// window to allow ledger-side crediting latency.
		return c.poll(ctx, payload, signedTags, c.cfg.PostFundPollTimeout, &decision)

	case funding.ActionFund:
		txHash, err := c.wallet.SendPayment(ctx, c.cfg.FundTargetAddr, decision.AmountWei)
		if err != nil {
			return Result{Status: StatusFailed, Decision: &decision},
				syncerrors.NewPaymentError("funding payment failed", err)
		}
		if err := c.state.RecordFund(funding.LastFund{
			Identity:  identity,
			AmountWei: decision.AmountWei,
			TxHash:    txHash,
			At:        c.clock.Now(),
		}); err != nil {
			c.logger.Error().Err(err).Msg("failed to persist funding payment")
		}
		return c.poll(ctx, payload, signedTags, c.cfg.PostFundPollTimeout, &decision)

	default:
		return Result{Status: StatusFailed},
			syncerrors.NewInternalError("unknown funding action", nil)
	}
}

// poll resubmits the identical signed payload on a fixed interval until it
// is accepted, a non-402 error occurs, or the timeout elapses.
func (c *Coordinator) poll(ctx context.Context, payload []byte, signedTags []ledger.Tag, timeout time.Duration, decision *funding.Decision) (Result, error) {
	deadline := c.clock.Now().Add(timeout)

	for {
		timer := c.clock.Timer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Status: StatusFailed, Decision: decision}, ctx.Err()
		case <-timer.C:
		}

		id, err := c.ledger.Submit(ctx, payload, signedTags)
		if err == nil {
			return Result{Status: StatusDone, TxID: id, Decision: decision}, nil
		}
		if !errors.Is(err, ledger.ErrPaymentRequired) {
			return Result{Status: StatusFailed, Decision: decision}, err
		}

		if !c.clock.Now().Before(deadline) {
			c.logger.Warn().
				Dur("timeout", timeout).
				Msg("payment not credited within poll window")
			return Result{Status: StatusPostFundTimeout, Decision: decision}, nil
		}
	}
}
