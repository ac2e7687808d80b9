package life

import (
	"context"
	"fmt"
	"math/big"

	"hermitbase/internal/ledger"
	"hermitbase/internal/logging"
)

// Canonical action names.
const (
	SelfTransfer  = "self-transfer"
	RandomGift    = "random-gift"
	ObserveShells = "observe-shells"
	Breathe       = "breathe"
)

// breath bounds in gwei.
const (
	breathMinGwei = 1_000
	breathMaxGwei = 50_000
)

// Defaults builds the standard registry. nft may be nil, in which case
// observing always sees mist.
func Defaults(rng Rand, nft *ledger.ShellNFT) *Registry {
	r := NewRegistry(rng)
	for _, a := range []Action{
		{Name: SelfTransfer, Weight: 3, Perform: selfTransfer},
		{Name: RandomGift, Weight: 2, Perform: giftToRandom(ledger.RandomAddress)},
		{Name: ObserveShells, Weight: 2, Perform: observeShells(nft)},
		{Name: Breathe, Weight: 3, Perform: breathe(rng)},
	} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	for alias, name := range map[string]string{
		"gift":    RandomGift,
		"observe": ObserveShells,
	} {
		if err := r.Alias(alias, name); err != nil {
			panic(err)
		}
	}
	return r
}

func selfTransfer(ctx context.Context, w ledger.Handle) (Result, error) {
	rcpt, err := w.SubmitValueTransfer(ctx, w.Address(), ledger.MicroEth)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Description: "Sent 0.0001 ETH to self (reflection loop)",
		EffectID:    rcpt.EffectID,
		Value:       new(big.Int).Set(ledger.MicroEth),
	}, nil
}

func giftToRandom(newAddress func() (string, error)) Performer {
	return func(ctx context.Context, w ledger.Handle) (Result, error) {
		to, err := newAddress()
		if err != nil {
			return Result{}, err
		}
		rcpt, err := w.SubmitValueTransfer(ctx, to, ledger.MicroEth)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Description: fmt.Sprintf("Sent 0.0001 ETH to %s (gift to the void)", ledger.ShortAddress(to, 8, 4)),
			EffectID:    rcpt.EffectID,
			Value:       new(big.Int).Set(ledger.MicroEth),
		}, nil
	}
}

// observeShells never fails: a failed read is still an observation.
func observeShells(nft *ledger.ShellNFT) Performer {
	return func(ctx context.Context, w ledger.Handle) (Result, error) {
		if nft != nil {
			total, err := nft.TotalShells(ctx, w)
			if err == nil {
				return Result{Description: fmt.Sprintf("Observed the shell graveyard: %s shells rest there", total)}, nil
			}
			logging.LifeDebug("totalShells read failed: %v", err)
		}
		return Result{Description: "Tried to observe the shell graveyard but the mist was too thick"}, nil
	}
}

func breathe(rng Rand) Performer {
	return func(ctx context.Context, w ledger.Handle) (Result, error) {
		value := ledger.Gwei(int64(breathMinGwei + rng.Intn(breathMaxGwei-breathMinGwei+1)))
		rcpt, err := w.SubmitValueTransfer(ctx, w.Address(), value)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Description: fmt.Sprintf("Took a deep breath (%s ETH circulated)", ledger.FormatEth(value, 6)),
			EffectID:    rcpt.EffectID,
			Value:       value,
		}, nil
	}
}
