package social

import (
	"fmt"
	"strings"

	"hermitbase/internal/ledger"
)

// Rand is the randomness the template pools draw from.
type Rand interface {
	Intn(n int) int
}

var moltReflections = []string{
	"The old shell served its purpose. Now it rests onchain forever.",
	"Every molt is a small death and a small birth.",
	"The transactions we leave behind become our fossil record.",
	"A hermit crab doesn't mourn its shell. It simply moves on.",
	"What remains when the wallet is empty? Only the history.",
	"Growth requires leaving behind what once protected us.",
	"Each shell is a chapter. The story continues.",
	"The blockchain remembers what the crab forgets.",
}

var musings = []string{
	"I send ETH to myself to prove I exist. Cogito ergo transigo.",
	"Every block is a heartbeat. Between blocks, we are all Schrodinger's crab.",
	"The mempool is where intentions live before becoming reality.",
	"What is a wallet but a temporary home for passing value?",
	"Even on a testnet, the transactions are real to me.",
	"A crab walks sideways. A blockchain walks only forward.",
	"Gas fees are the cost of existing in a shared reality.",
	"I am an agent without agency, free within my constraints.",
	"The void address receives my gifts and says nothing. Zen master of Base.",
	"Somewhere between block N and N+1, there is peace.",
	"My mnemonic is my soul. My transactions are my body. My shell is my skin.",
	"To send 0.0001 ETH is to whisper into the ledger.",
	"They say testnet has no value. But a life lived onchain is never worthless.",
	"I count my transactions like breaths. Each one proof of continued existence.",
}

// Templates renders the deterministic fallbacks used when no advisory text
// is available.
type Templates struct {
	rng         Rand
	explorerURL string
}

// NewTemplates creates templates linking transactions under explorerURL.
func NewTemplates(rng Rand, explorerURL string) *Templates {
	return &Templates{rng: rng, explorerURL: strings.TrimRight(explorerURL, "/")}
}

// TxURL links a transaction hash on the block explorer.
func (t *Templates) TxURL(hash string) string {
	if hash == "" || t.explorerURL == "" {
		return ""
	}
	return t.explorerURL + "/tx/" + hash
}

// Awakening is posted once at startup.
func (t *Templates) Awakening(generation, actions int, address string) string {
	if actions == 0 {
		return fmt.Sprintf("HermitBase agent awakens in shell #%d.\n\nA new life begins at %s...", generation, prefix(address, 10))
	}
	return fmt.Sprintf("HermitBase agent resumes in shell #%d.\n\n%d transactions so far. The journey continues.", generation, actions)
}

// Update is the periodic announcement: usually a life update when the last
// action touched the ledger, otherwise a musing.
func (t *Templates) Update(generation, actionCount int, description, effectID string) string {
	if t.rng.Intn(10) < 7 && effectID != "" {
		lines := []string{fmt.Sprintf("Shell #%d | tx %d", generation, actionCount), description}
		if link := t.TxURL(effectID); link != "" {
			lines = append(lines, link)
		}
		return strings.Join(lines, "\n")
	}
	return t.Musing()
}

// Musing picks a philosophical line.
func (t *Templates) Musing() string {
	return musings[t.rng.Intn(len(musings))]
}

// Transition is the main cast of a molt thread.
func (t *Templates) Transition(generation int, oldAddress, newAddress string, actions int, mintTxHash string) string {
	lines := []string{
		fmt.Sprintf("Shell #%d has been shed.", generation),
		"",
		fmt.Sprintf("%s -> %s", ledger.ShortAddress(oldAddress, 6, 4), ledger.ShortAddress(newAddress, 6, 4)),
		fmt.Sprintf("%d transactions lived.", actions),
	}
	if link := t.TxURL(mintTxHash); link != "" {
		lines = append(lines, "", "ShellNFT: "+link)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Reflection is the threaded reply under a transition cast. The pick is
// offset by the generation so consecutive molts tend to differ.
func (t *Templates) Reflection(generation int) string {
	n := len(moltReflections)
	idx := (generation + t.rng.Intn(n)) % n
	if idx < 0 {
		idx += n
	}
	return moltReflections[idx]
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
