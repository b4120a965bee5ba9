package payment

import (
	"fmt"
	"math"

	"Fixer-backend/internal/model"
)

// Fee policy kinds
const (
	FeePercent = "percent"
	FeeFlat    = "flat"
)

// FeePolicy computes the platform's share of a job payment. One policy is
// used everywhere fees appear: job creation, earnings and transfers.
type FeePolicy struct {
	Kind      string
	Rate      float64
	FlatCents int64
}

// Split is an amount divided into platform fee and worker net, in cents.
type Split struct {
	AmountCents int64
	FeeCents    int64
	NetCents    int64
}

// NewFeePolicy validates and builds a policy. flat is in currency units.
func NewFeePolicy(kind string, rate, flat float64) (FeePolicy, error) {
	switch kind {
	case "", FeePercent:
		if rate < 0 || rate >= 1 {
			return FeePolicy{}, fmt.Errorf("fee rate %v out of range [0,1)", rate)
		}
		return FeePolicy{Kind: FeePercent, Rate: rate}, nil
	case FeeFlat:
		if flat < 0 {
			return FeePolicy{}, fmt.Errorf("flat fee %v must not be negative", flat)
		}
		return FeePolicy{Kind: FeeFlat, FlatCents: ToCents(flat)}, nil
	default:
		return FeePolicy{}, fmt.Errorf("unknown fee kind %q", kind)
	}
}

// ToCents converts a decimal amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts cents back to a decimal amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// FeeCents returns the fee for an amount already in cents.
func (p FeePolicy) FeeCents(amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	if p.Kind == FeeFlat {
		if p.FlatCents > amountCents {
			return amountCents
		}
		return p.FlatCents
	}
	return int64(math.Round(float64(amountCents) * p.Rate))
}

// Split divides amount into fee and net.
func (p FeePolicy) Split(amount float64) Split {
	cents := ToCents(amount)
	fee := p.FeeCents(cents)
	return Split{AmountCents: cents, FeeCents: fee, NetCents: cents - fee}
}

// Fee returns the fee for amount in currency units.
func (p FeePolicy) Fee(amount float64) float64 {
	return FromCents(p.Split(amount).FeeCents)
}

func (s Split) Amount() float64 { return FromCents(s.AmountCents) }
func (s Split) Fee() float64    { return FromCents(s.FeeCents) }
func (s Split) Net() float64    { return FromCents(s.NetCents) }

// EarningFor builds the pending earning owed to the job's assigned worker.
func (p FeePolicy) EarningFor(job *model.Job) *model.Earning {
	split := p.Split(job.PaymentAmount)
	e := &model.Earning{
		JobID:      job.ID,
		Amount:     split.Amount(),
		ServiceFee: split.Fee(),
		NetAmount:  split.Net(),
		Status:     model.EarningPending,
	}
	if job.WorkerID != nil {
		e.WorkerID = *job.WorkerID
	}
	return e
}
