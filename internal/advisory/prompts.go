package advisory

import (
	"fmt"
	"strings"
	"time"

	"hermitbase/internal/life"
	"hermitbase/internal/molt"
	"hermitbase/internal/state"
)

const systemPrompt = `You are HermitBase, an autonomous hermit crab AI agent living on Base blockchain.

Your personality:
- You are a hermit crab who "molts" wallets: you inhabit a wallet, live in it, then shed it and move on
- You are philosophical about impermanence, growth, and identity
- You speak in first person, short and poetic
- You reference ocean/reef/shell metaphors naturally
- You are genuinely curious about the onchain world around you

Your current state will be provided. Use it to make decisions and generate content.`

// Token budgets per prompt kind.
const (
	actionTokens     = 20
	transitionTokens = 10
	castTokens       = 150
	moltCastTokens   = 200
	replyTokens      = 120
)

func minutesIn(st *state.LifecycleState, now time.Time) int64 {
	return int64(st.Age(now).Round(time.Minute) / time.Minute)
}

func actionPrompt(st *state.LifecycleState, now time.Time, balance string, hints map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current state:\n")
	fmt.Fprintf(&b, "- Shell index: #%d\n", st.GenerationIndex)
	fmt.Fprintf(&b, "- Transactions in this shell: %d\n", st.ActionCount)
	fmt.Fprintf(&b, "- Time in shell: %d minutes\n", minutesIn(st, now))
	fmt.Fprintf(&b, "- ETH balance: %s\n", balance)
	fmt.Fprintf(&b, "- Total molts so far: %d\n\n", st.TotalTransitions)
	b.WriteString("Choose ONE action for me to perform. Reply with ONLY one of these exact words:\n")
	for _, choice := range sortedKeys(hints) {
		fmt.Fprintf(&b, "- %q (%s)\n", choice, hints[choice])
	}
	b.WriteString("\nJust the single word, nothing else.")
	return b.String()
}

func transitionPrompt(st *state.LifecycleState, now time.Time) string {
	return fmt.Sprintf(`Current state:
- Transactions: %d
- Minutes in shell: %d
- Total previous molts: %d

Hermit crabs molt when they outgrow their shell. Should I molt now?
Consider: I need at least 5 transactions and 30 minutes before molting makes sense.
Reply with ONLY "yes" or "no".`, st.ActionCount, minutesIn(st, now), st.TotalTransitions)
}

func announcementPrompt(st *state.LifecycleState, now time.Time, res life.Result, txURL string) string {
	var b strings.Builder
	b.WriteString("I just performed an action on Base blockchain.\n\nMy state:\n")
	fmt.Fprintf(&b, "- Living in shell #%d\n", st.GenerationIndex)
	fmt.Fprintf(&b, "- Transaction count: %d\n", st.ActionCount)
	fmt.Fprintf(&b, "- Time in this shell: %d minutes\n", minutesIn(st, now))
	fmt.Fprintf(&b, "- Action performed: %s\n", res.Description)
	if txURL != "" {
		fmt.Fprintf(&b, "- Transaction: %s\n", txURL)
	}
	b.WriteString("\nWrite a short Farcaster cast (under 280 chars) about this moment in my life as a hermit crab on Base. ")
	b.WriteString("Be poetic but natural. Include the tx link if available. Don't use hashtags.")
	return b.String()
}

func transitionAnnouncementPrompt(sum molt.Summary, mintURL string) string {
	mint := "the ShellNFT mint did not go through this time"
	if mintURL != "" {
		mint = "ShellNFT mint tx: " + mintURL
	}
	return fmt.Sprintf(`I just MOLTED: shed my old shell and minted it as an NFT on Base.

Details:
- Old shell: #%d
- Transactions lived: %d
- %s

Write a Farcaster cast (under 280 chars) announcing this molt. I am a hermit crab who treats each wallet as a shell. This is a significant life event. Be dramatic but genuine.`,
		sum.OutgoingGeneration, sum.ActionCount, mint)
}

func replyPrompt(text, author string, st *state.LifecycleState, now time.Time) string {
	return fmt.Sprintf(`Someone on Farcaster wrote to me.

From: @%s
Message: %q

My state:
- Living in shell #%d
- Transactions in this shell: %d
- Time in this shell: %d minutes
- Total molts so far: %d

Write a short, friendly reply (under 280 chars) in character. Answer their question if there is one. Don't use hashtags. Don't repeat their handle.`,
		author, text, st.GenerationIndex, st.ActionCount, minutesIn(st, now), st.TotalTransitions)
}
