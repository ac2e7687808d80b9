package molt

import (
	"fmt"
	"math/big"
	"time"

	"hermitbase/internal/ledger"
	"hermitbase/internal/state"
)

// isoMillis matches the timestamp style of the minted life summaries.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Summary describes a completed transition. MintTxHash and TokenID are empty
// when the commemorative mint did not happen or yielded no token id.
type Summary struct {
	OutgoingGeneration int
	IncomingGeneration int
	OutgoingAddress    string
	IncomingAddress    string
	BornAt             time.Time
	EndedAt            time.Time
	ActionCount        int
	ValueMoved         *big.Int
	FinalBalance       *big.Int
	MintTxHash         string
	TokenID            string
	MintError          string
	LifeSummary        string
}

// Minted reports whether the commemorative record exists.
func (s Summary) Minted() bool { return s.MintTxHash != "" }

// LifeSummary renders the one-line epitaph of the generation in st.
func LifeSummary(st *state.LifecycleState, now time.Time) string {
	hours := st.Age(now).Hours()
	return fmt.Sprintf("Shell #%d lived %.1fh, made %d transactions, moved %s ETH. Born %s.",
		st.GenerationIndex,
		hours,
		st.ActionCount,
		ledger.FormatEth(st.TotalValueMoved.Int(), 6),
		st.GenerationStartedAt.UTC().Format(isoMillis),
	)
}
