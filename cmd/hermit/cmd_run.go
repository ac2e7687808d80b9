package main

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hermitbase/internal/advisory"
	"hermitbase/internal/agent"
	"hermitbase/internal/archive"
	"hermitbase/internal/config"
	"hermitbase/internal/ledger"
	"hermitbase/internal/life"
	"hermitbase/internal/logging"
	"hermitbase/internal/molt"
	"hermitbase/internal/social"
	"hermitbase/internal/state"
	"hermitbase/internal/telemetry"
)

// processStart is when this process was born; a missing state file starts
// the first shell here.
var processStart = time.Now()

// runAgent wires every collaborator and runs the loop until a signal arrives.
func runAgent(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Boot("Received %s, shutting down gracefully", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("Tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	wallet, closeChain, err := openWallet(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChain()

	nft, err := ledger.NewShellNFT(cfg.Chain.ShellNFTAddress)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("ShellNFT disabled: %v", err)
	}

	var recorder agent.Recorder
	var mints molt.MintLedger
	if cfg.Archive.Enabled {
		arc, err := archive.Open(ctx, cfg.Archive.Path)
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("Shell archive disabled: %v", err)
		} else {
			defer arc.Close()
			recorder = arc
			mints = arc
		}
	}

	completer, err := advisory.NewCompleter(ctx, advisory.Settings{
		Provider: cfg.LLM.Provider,
		URL:      cfg.LLM.APIURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("LLM advice disabled: %v", err)
		completer = nil
	}
	if completer == nil {
		logging.Boot("No LLM configured, using templates and weighted choice")
	}

	neynar := social.DefaultNeynarConfig(cfg.Social.NeynarAPIKey, cfg.Social.SignerUUID)
	neynar.FID = cfg.Social.FID
	neynar.BaseURL = cfg.Social.BaseURL
	neynar.Timeout = cfg.GetSocialTimeout()

	seed, err := newSeed()
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))
	tuning := cfg.Tuning()

	deps := agent.Deps{
		Store:   state.NewStore(cfg.State.Path, processStart),
		Keyring: ledger.NewStaticKeyring(wallet),
		Actions: life.Defaults(rng, nft),
		Engine: molt.NewEngine(molt.Thresholds{
			TxMin:  tuning.TxMin,
			TxMax:  tuning.TxMax,
			AgeMin: tuning.TimeMin,
			AgeMax: tuning.TimeMax,
		}, rng),
		Molter:    molt.NewExecutor(nft, mints),
		Advisor:   advisory.New(completer, cfg.Social.ExplorerURL),
		Social:    social.NewNeynarClient(neynar),
		Templates: social.NewTemplates(rng, cfg.Social.ExplorerURL),
		Archive:   recorder,
		Tuning:    tuning,
		Rand:      rng,
	}

	if _, err := os.Stat(configPath); err == nil {
		watcher, err := config.NewWatcher(configPath, tuning)
		if err != nil {
			logging.Get(logging.CategoryConfig).Warn("Config reload disabled: %v", err)
		} else if err := watcher.Start(ctx); err != nil {
			logging.Get(logging.CategoryConfig).Warn("Config reload disabled: %v", err)
			watcher.Stop()
		} else {
			defer watcher.Stop()
			deps.Reload = watcher
		}
	}

	a, err := agent.New(deps)
	if err != nil {
		return err
	}

	logging.Boot("HermitBase agent starting on chain %d", cfg.Chain.ChainID)
	return a.Run(ctx)
}

// openWallet dials the RPC endpoint and loads the signing key.
func openWallet(ctx context.Context, c *config.Config) (*ledger.Wallet, func(), error) {
	client, err := ledger.Dial(ctx, c.Chain.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	wallet, err := ledger.NewWallet(client, c.Wallet.PrivateKey, big.NewInt(c.Chain.ChainID))
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return wallet, client.Close, nil
}

// newSeed draws a seed for math/rand from crypto/rand.
func newSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
