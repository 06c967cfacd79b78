// Package funding decides whether the local wallet must pre-pay the ledger
// network before a write is retried. Decide is pure and side-effect-free so
// it can run concurrently with UI reads; all currency amounts are
// arbitrary-precision integers in wei — no floating point anywhere here.
package funding

import (
	"math/big"
	"time"
)

// Action is the outcome of a funding decision.
type Action string

const (
	// ActionFund instructs the caller to send an on-chain payment.
	ActionFund Action = "fund"

	// ActionSkip means a recent payment is still propagating; retry later.
	ActionSkip Action = "skip"

	// ActionBlock means funding must not be attempted now.
	ActionBlock Action = "block"
)

// Decision reasons.
const (
	ReasonFundBlockActive    = "fund-block-active"
	ReasonFundedRecently     = "funded-recently"
	ReasonInsufficientBalance = "insufficient-balance"
	ReasonFundable           = "fundable"
)

// Identity names the funding target: which ledger node, paid in which token,
// from which wallet address.
type Identity struct {
	Node    string
	Token   string
	Address string
}

// LastFund is the most recent successful on-chain funding payment.
type LastFund struct {
	Identity
	AmountWei *big.Int
	TxHash    string
	At        time.Time
}

// FundBlock is an active block after a hard failure.
type FundBlock struct {
	Address string
	Reason  string
	Until   time.Time
}

// Decision is the policy outcome. AmountWei is set only for ActionFund;
// RetryIn only for ActionSkip.
type Decision struct {
	Action    Action
	Reason    string
	AmountWei *big.Int
	RetryIn   time.Duration
}

// Policy holds the funding policy constants. They come from configuration,
// never from callers, so funding behavior stays auditable.
type Policy struct {
	Cooldown  time.Duration // window after a payment during which we skip
	MinRetry  time.Duration // floor on the recommended retry window
	BufferBps int64         // price buffer in basis points (1/10000)
}

// Decide evaluates, in order, first match wins:
//
//  1. Block if an unexpired fund block exists for this exact address.
//  2. Skip if the last payment matches the (node, token, address) identity
//     and is within the cooldown; the retry window is the greater of the
//     remaining cooldown and the configured minimum.
//  3. Block if a balance is supplied and it cannot cover
//     price + buffer + gasReserve.
//  4. Fund price + ceil(price * bufferBps / 10000).
//
// priceWei must be non-negative; balanceWei and gasReserveWei may be nil
// (nil balance skips the balance check, nil reserve means zero).
func (p Policy) Decide(
	priceWei *big.Int,
	last *LastFund,
	block *FundBlock,
	id Identity,
	balanceWei *big.Int,
	gasReserveWei *big.Int,
	now time.Time,
) Decision {
	if block != nil && block.Address == id.Address && now.Before(block.Until) {
		return Decision{Action: ActionBlock, Reason: ReasonFundBlockActive}
	}

	if last != nil &&
		last.Node == id.Node && last.Token == id.Token && last.Address == id.Address {
		elapsed := now.Sub(last.At)
		if elapsed >= 0 && elapsed < p.Cooldown {
			retry := p.Cooldown - elapsed
			if retry < p.MinRetry {
				retry = p.MinRetry
			}
			return Decision{Action: ActionSkip, Reason: ReasonFundedRecently, RetryIn: retry}
		}
	}

	amount := FundAmount(priceWei, p.BufferBps)

	if balanceWei != nil {
		required := new(big.Int).Set(amount)
		if gasReserveWei != nil {
			required.Add(required, gasReserveWei)
		}
		if balanceWei.Cmp(required) < 0 {
			return Decision{Action: ActionBlock, Reason: ReasonInsufficientBalance}
		}
	}

	return Decision{Action: ActionFund, Reason: ReasonFundable, AmountWei: amount}
}

// FundAmount computes price + ceil(price * bufferBps / 10000) in pure
// integer arithmetic. Division truncates toward zero, so the ceiling is
// taken by adding 9999 before dividing.
func FundAmount(priceWei *big.Int, bufferBps int64) *big.Int {
	if priceWei == nil || priceWei.Sign() <= 0 {
		return big.NewInt(0)
	}
	buffer := new(big.Int).Mul(priceWei, big.NewInt(bufferBps))
	buffer.Add(buffer, big.NewInt(9999))
	buffer.Div(buffer, big.NewInt(10000))
	return new(big.Int).Add(priceWei, buffer)
}
