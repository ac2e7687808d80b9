package molt

import (
	"context"
	"fmt"
	"time"

	"hermitbase/internal/ledger"
	"hermitbase/internal/logging"
	"hermitbase/internal/state"
)

// MintRecord is a previously minted commemorative record.
type MintRecord struct {
	EffectID string
	TokenID  string
}

// MintLedger remembers which generations were already minted, so a molt
// repeated after a crash does not mint twice.
type MintLedger interface {
	LookupMint(ctx context.Context, generation int, bornAt time.Time) (MintRecord, bool, error)
}

// Executor performs the transition side effects. It never mutates or
// persists the lifecycle state; the caller applies the returned Summary.
type Executor struct {
	nft   *ledger.ShellNFT
	mints MintLedger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewExecutor creates an executor. nft may be nil to skip minting; mints may
// be nil to disable dedupe.
func NewExecutor(nft *ledger.ShellNFT, mints MintLedger) *Executor {
	return &Executor{nft: nft, mints: mints}
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Execute snapshots the outgoing generation, mints its commemorative record
// and returns the transition summary. Only a failed balance snapshot is an
// error; a failed mint is recorded on the summary and the transition goes on.
func (e *Executor) Execute(ctx context.Context, st *state.LifecycleState, outgoing, incoming ledger.Handle) (Summary, error) {
	snap := st.Clone()
	logging.Molt("Beginning molt of shell #%d: %s -> %s", snap.GenerationIndex, outgoing.Address(), incoming.Address())

	balance, err := outgoing.Balance(ctx, outgoing.Address())
	if err != nil {
		return Summary{}, fmt.Errorf("failed to snapshot outgoing balance: %w", err)
	}
	logging.Molt("Shell #%d stats: %d actions, balance %s ETH", snap.GenerationIndex, snap.ActionCount, ledger.FormatEth(balance, 6))

	now := e.now()
	sum := Summary{
		OutgoingGeneration: snap.GenerationIndex,
		IncomingGeneration: snap.GenerationIndex + 1,
		OutgoingAddress:    outgoing.Address(),
		IncomingAddress:    incoming.Address(),
		BornAt:             snap.GenerationStartedAt,
		EndedAt:            now.UTC(),
		ActionCount:        snap.ActionCount,
		ValueMoved:         snap.TotalValueMoved.Int(),
		FinalBalance:       balance,
		LifeSummary:        LifeSummary(snap, now),
	}

	if err := e.mint(ctx, snap, outgoing, &sum); err != nil {
		sum.MintError = err.Error()
		logging.Get(logging.CategoryMolt).Error("ShellNFT mint failed for shell #%d: %v", snap.GenerationIndex, err)
	}

	logging.Molt("Molt of shell #%d complete (mint=%q token=%q)", snap.GenerationIndex, sum.MintTxHash, sum.TokenID)
	return sum, nil
}

func (e *Executor) mint(ctx context.Context, snap *state.LifecycleState, outgoing ledger.Handle, sum *Summary) error {
	if e.nft == nil {
		return fmt.Errorf("no ShellNFT contract configured")
	}

	if e.mints != nil {
		prev, found, err := e.mints.LookupMint(ctx, snap.GenerationIndex, snap.GenerationStartedAt)
		if err != nil {
			logging.MoltDebug("Mint lookup failed, minting anyway: %v", err)
		} else if found {
			logging.Molt("Shell #%d already minted in %s, reusing record", snap.GenerationIndex, prev.EffectID)
			sum.MintTxHash = prev.EffectID
			sum.TokenID = prev.TokenID
			return nil
		}
	}

	logging.Molt("Minting ShellNFT for shell #%d", snap.GenerationIndex)
	rcpt, err := outgoing.SubmitContractCall(ctx, e.nft.MintCall(ledger.ShellRecord{
		Owner:       sum.OutgoingAddress,
		BornAt:      snap.GenerationStartedAt,
		ActionCount: snap.ActionCount,
		ValueMoved:  snap.TotalValueMoved.Int(),
		LifeSummary: sum.LifeSummary,
	}))
	if err != nil {
		return err
	}
	sum.MintTxHash = rcpt.EffectID
	sum.TokenID = ExtractTokenID(rcpt.Logs)
	return nil
}
