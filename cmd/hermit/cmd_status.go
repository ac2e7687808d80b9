package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hermitbase/internal/archive"
	"hermitbase/internal/ledger"
	"hermitbase/internal/molt"
	"hermitbase/internal/state"
)

// statusReport is everything `hermit status` shows. Probe failures are kept
// as text so one unreachable service does not hide the rest.
type statusReport struct {
	State       *state.LifecycleState
	Address     string
	Balance     *big.Int
	BalanceErr  string
	TotalShells *big.Int
	ShellsErr   string
	Archive     *archive.Stats
	ArchiveErr  string
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report := statusReport{State: state.NewStore(cfg.State.Path, time.Now()).Load()}

	var wallet *ledger.Wallet
	if cfg.Wallet.PrivateKey != "" {
		w, closeChain, err := openWallet(ctx, cfg)
		if err != nil {
			report.BalanceErr = err.Error()
		} else {
			defer closeChain()
			wallet = w
			report.Address = w.Address()
		}
	} else {
		report.BalanceErr = "no PRIVATE_KEY configured"
	}

	// Probes are independent; each records its own failure.
	g, gctx := errgroup.WithContext(ctx)
	if wallet != nil {
		g.Go(func() error {
			balance, err := wallet.Balance(gctx, wallet.Address())
			if err != nil {
				report.BalanceErr = err.Error()
				return nil
			}
			report.Balance = balance
			return nil
		})
		g.Go(func() error {
			nft, err := ledger.NewShellNFT(cfg.Chain.ShellNFTAddress)
			if err != nil {
				report.ShellsErr = err.Error()
				return nil
			}
			total, err := nft.TotalShells(gctx, wallet)
			if err != nil {
				report.ShellsErr = err.Error()
				return nil
			}
			report.TotalShells = total
			return nil
		})
	}
	if cfg.Archive.Enabled {
		g.Go(func() error {
			arc, err := archive.Open(gctx, cfg.Archive.Path)
			if err != nil {
				report.ArchiveErr = err.Error()
				return nil
			}
			defer arc.Close()
			stats, err := arc.Stats(gctx)
			if err != nil {
				report.ArchiveErr = err.Error()
				return nil
			}
			report.Archive = &stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	renderStatus(cmd.OutOrStdout(), report, time.Now())
	return nil
}

func renderStatus(w io.Writer, r statusReport, now time.Time) {
	st := r.State
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Shell #%d", st.GenerationIndex)))
	fmt.Fprintln(w, row("Age", formatAge(st.Age(now))))
	fmt.Fprintln(w, row("Transactions", fmt.Sprintf("%d", st.ActionCount)))
	fmt.Fprintln(w, row("Value moved", ledger.FormatEth(st.TotalValueMoved.Int(), 6)+" ETH"))
	fmt.Fprintln(w, row("Total molts", fmt.Sprintf("%d", st.TotalTransitions)))
	fmt.Fprintln(w, row("Until announce", fmt.Sprintf("%d actions so far", st.ActionsSinceAnnouncement)))
	fmt.Fprintln(w, row("Mentions seen", fmt.Sprintf("%d", len(st.AcknowledgedEventIDs))))

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Chain"))
	if r.Address != "" {
		fmt.Fprintln(w, row("Wallet", r.Address))
	}
	if r.Balance != nil {
		fmt.Fprintln(w, row("Balance", ledger.FormatEth(r.Balance, 6)+" ETH"))
	} else {
		fmt.Fprintln(w, row("Balance", errStyle.Render(r.BalanceErr)))
	}
	switch {
	case r.TotalShells != nil:
		fmt.Fprintln(w, row("Shells minted", r.TotalShells.String()))
	case r.ShellsErr != "":
		fmt.Fprintln(w, row("Shells minted", errStyle.Render(r.ShellsErr)))
	}

	if r.Archive != nil || r.ArchiveErr != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Archive"))
		if r.Archive != nil {
			fmt.Fprintln(w, row("Shells", fmt.Sprintf("%d (%d minted)", r.Archive.Shells, r.Archive.Minted)))
			fmt.Fprintln(w, row("Actions", fmt.Sprintf("%d (%d on-chain)", r.Archive.Actions, r.Archive.LedgerActions)))
		} else {
			fmt.Fprintln(w, row("Error", errStyle.Render(r.ArchiveErr)))
		}
	}
}

func listShells(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	arc, err := archive.Open(cmd.Context(), cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer arc.Close()

	shells, err := arc.ListShells(cmd.Context(), limit)
	if err != nil {
		return err
	}
	renderShells(cmd.OutOrStdout(), shells)
	return nil
}

func renderShells(w io.Writer, shells []archive.Shell) {
	if len(shells) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No shells shed yet."))
		return
	}
	for _, s := range shells {
		mint := dimStyle.Render("not minted")
		switch {
		case s.TokenID != "":
			mint = okStyle.Render("token #" + s.TokenID)
		case s.MintTxHash != "":
			mint = okStyle.Render("minted " + ledger.ShortAddress(s.MintTxHash, 10, 6))
		case s.MintError != "":
			mint = errStyle.Render("mint failed")
		}
		fmt.Fprintf(w, "%s  %s  %d txs  %s ETH  %s\n",
			titleStyle.Render(fmt.Sprintf("#%d", s.Generation)),
			formatAge(s.EndedAt.Sub(s.BornAt)),
			s.ActionCount,
			ledger.FormatEth(s.ValueMoved, 6),
			mint,
		)
		if s.LifeSummary != "" {
			fmt.Fprintln(w, "    "+dimStyle.Render(s.LifeSummary))
		}
	}
}

func printState(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetBool("raw")
	if raw {
		data, err := os.ReadFile(cfg.State.Path)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	st, err := state.NewStore(cfg.State.Path, time.Now()).Read()
	if err != nil {
		return err
	}
	data, err := state.Encode(st)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func moltCheck(cmd *cobra.Command, args []string) error {
	runs, _ := cmd.Flags().GetInt("runs")
	if runs < 1 {
		runs = 1
	}
	st, err := state.NewStore(cfg.State.Path, time.Now()).Read()
	if err != nil {
		return err
	}
	seed, err := newSeed()
	if err != nil {
		return err
	}

	tuning := cfg.Tuning()
	engine := molt.NewEngine(molt.Thresholds{
		TxMin:  tuning.TxMin,
		TxMax:  tuning.TxMax,
		AgeMin: tuning.TimeMin,
		AgeMax: tuning.TimeMax,
	}, rand.New(rand.NewSource(seed)))

	decisions := make([]molt.Decision, 0, runs)
	now := time.Now()
	for i := 0; i < runs; i++ {
		decisions = append(decisions, engine.Evaluate(st, now))
	}
	renderMoltCheck(cmd.OutOrStdout(), st, decisions, now)
	return nil
}

func renderMoltCheck(w io.Writer, st *state.LifecycleState, decisions []molt.Decision, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Shell #%d: %d actions, %s old", st.GenerationIndex, st.ActionCount, formatAge(st.Age(now)))))
	molts := 0
	for _, d := range decisions {
		verdict := dimStyle.Render("stay")
		if d.ShouldMolt {
			molts++
			verdict = okStyle.Render("MOLT")
		}
		fmt.Fprintf(w, "%s  %s\n", verdict, d.Reason)
	}
	if len(decisions) > 1 {
		fmt.Fprintf(w, "\n%d of %d checks would molt\n", molts, len(decisions))
	}
}

// formatAge renders a duration as hours with one decimal, or minutes below
// an hour.
func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", d.Hours()), ".0") + "h"
}
