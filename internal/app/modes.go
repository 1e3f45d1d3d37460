package app

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	solanasdk "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/analyzer"
	"github.com/alanyoungcy/crossarb/internal/coordinator"
	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/executor"
	"github.com/alanyoungcy/crossarb/internal/market"
	evmplatform "github.com/alanyoungcy/crossarb/internal/platform/evm"
	solanaplatform "github.com/alanyoungcy/crossarb/internal/platform/solana"
	"github.com/alanyoungcy/crossarb/internal/server"
	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/ws"
	"github.com/alanyoungcy/crossarb/internal/service"
	"github.com/alanyoungcy/crossarb/internal/simulator"
)

// TradeMode runs the full engine with live execution (unless executor.dry_run
// is set) plus the HTTP server when enabled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runEngine(ctx, deps, a.cfg.Executor.DryRun, a.cfg.Server.Enabled)
}

// MonitorMode runs the engine read-only: cycles analyze and simulate but never
// submit, and no key material is required.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runEngine(ctx, deps, true, a.cfg.Server.Enabled)
}

// ServerMode serves the API over existing stored outcomes without running the
// engine at all.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error { return hub.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, nil, hub)
	return g.Wait()
}

// FullMode runs the engine and always serves the API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.runEngine(ctx, deps, a.cfg.Executor.DryRun, true)
}

// runEngine builds the analysis pipeline and blocks until the context is
// cancelled. dryRun stops every cycle after simulation; withServer additionally
// serves the HTTP and WebSocket API.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, dryRun, withServer bool) error {
	g, ctx := errgroup.WithContext(ctx)

	// The hub is created before the cycle service so cycle outcomes reach
	// connected dashboards as well as the configured notify channels.
	var hub *ws.Hub
	if withServer {
		hub = ws.NewHub(a.cfg.Mode, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	}

	coord, err := a.buildEngine(ctx, deps, dryRun, hub)
	if err != nil {
		return err
	}
	g.Go(func() error { return coord.Run(ctx) })

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.S3.ArchiveInterval.Duration)
		})
	}

	if withServer {
		a.startHTTPServer(ctx, g, deps, coord, hub)
	}

	return g.Wait()
}

// buildEngine assembles the pipeline: chain clients and feeds, snapshot
// fetcher, analyzer, simulator, executor, cycle service, and the coordinator
// that drives it from venue events.
func (a *App) buildEngine(ctx context.Context, deps *Dependencies, dryRun bool, hub *ws.Hub) (*coordinator.Coordinator, error) {
	// Key material is loaded only for modes that submit transactions; without
	// it the chain clients are read-only.
	var (
		solKey solanasdk.PrivateKey
		evmKey *ecdsa.PrivateKey
	)
	if a.cfg.NeedsWallets() {
		var err error
		solKey, err = crypto.SolanaKey(crypto.KeyConfig{
			RawPrivateKey:    a.cfg.Solana.Wallet.PrivateKey,
			EncryptedKeyPath: a.cfg.Solana.Wallet.EncryptedKeyPath,
			KeyPassword:      a.cfg.Solana.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("app: solana wallet: %w", err)
		}
		evmKey, err = crypto.EthereumKey(crypto.KeyConfig{
			RawPrivateKey:    a.cfg.EVM.Wallet.PrivateKey,
			EncryptedKeyPath: a.cfg.EVM.Wallet.EncryptedKeyPath,
			KeyPassword:      a.cfg.EVM.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("app: evm wallet: %w", err)
		}
	}

	solClient, err := solanaplatform.NewClient(solanaplatform.Config{
		RPCURL:           a.cfg.Solana.RPCURL,
		Program:          a.cfg.Solana.Program,
		Curve:            a.cfg.Solana.Curve,
		BaseMint:         a.cfg.Solana.BaseMint,
		BaseTokenAccount: a.cfg.Solana.BaseTokenAccount,
		FeeBps:           a.cfg.Solana.FeeBps,
		ConfirmAttempts:  a.cfg.Solana.ConfirmAttempts,
		ConfirmInterval:  a.cfg.Solana.ConfirmInterval.Duration,
	}, solKey, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: solana client: %w", err)
	}

	evmClient, err := evmplatform.NewClient(ctx, evmplatform.Config{
		RPCURL:          a.cfg.EVM.RPCURL,
		Pair:            a.cfg.EVM.Pair,
		Router:          a.cfg.EVM.Router,
		BaseToken:       a.cfg.EVM.BaseToken,
		QuoteToken:      a.cfg.EVM.QuoteToken,
		BaseIsToken0:    a.cfg.EVM.BaseIsToken0,
		GasLimit:        a.cfg.EVM.GasLimit,
		ConfirmAttempts: a.cfg.EVM.ConfirmAttempts,
		ConfirmInterval: a.cfg.EVM.ConfirmInterval.Duration,
	}, evmKey, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: evm client: %w", err)
	}

	oracle := market.NewHTTPOracle(market.OracleConfig{
		URL:        a.cfg.Oracle.URL,
		AssetID:    a.cfg.Oracle.AssetID,
		TTL:        a.cfg.Oracle.TTL.Duration,
		StaleBound: a.cfg.Oracle.StaleBound.Duration,
	}, deps.PriceCache, a.logger)

	fetcher := market.NewFetcher(
		solClient, market.VenueSpec{
			Kind:          domain.KindBondingCurve,
			BaseDecimals:  uint8(a.cfg.Solana.BaseDecimals),
			QuoteDecimals: uint8(a.cfg.Solana.QuoteDecimals),
			FeeBps:        a.cfg.Solana.FeeBps,
		},
		evmClient, market.VenueSpec{
			Kind:          domain.KindConstantProduct,
			BaseDecimals:  uint8(a.cfg.EVM.BaseDecimals),
			QuoteDecimals: uint8(a.cfg.EVM.QuoteDecimals),
			FeeBps:        a.cfg.EVM.FeeBps,
		},
		oracle, a.logger,
	)

	anl := analyzer.New(analyzer.Config{
		TolerancePct:   a.cfg.Analyzer.TolerancePct,
		MaxIterations:  a.cfg.Analyzer.MaxIterations,
		MaxReserveBps:  a.cfg.Analyzer.MaxReserveBps,
		NotionalCapUSD: a.cfg.Analyzer.NotionalCapUSD,
		MinProfitUSD:   a.cfg.Analyzer.MinProfitUSD,
		MinProfitPct:   a.cfg.Analyzer.MinProfitPct,
	}, a.logger)

	sim := simulator.New(simulator.Config{
		MinNetUSD:         a.cfg.Simulator.MinNetUSD,
		MinNetPct:         a.cfg.Simulator.MinNetPct,
		SlippageBps:       a.cfg.Simulator.SlippageBps,
		FreshnessBound:    a.cfg.Simulator.FreshnessBound.Duration,
		SolanaOverheadSOL: a.cfg.Simulator.SolanaOverheadSOL,
		EVMOverheadUSD:    a.cfg.Simulator.EVMOverheadUSD,
	}, fetcher, a.logger)

	exec := executor.New(solClient, evmClient, a.cfg.Executor.LegDeadline.Duration, a.logger)

	var notifier service.Notifier = deps.Notifier
	if hub != nil {
		notifier = fanoutNotifier{deps.Notifier, hub}
	}

	cycleSvc := service.NewCycleService(
		fetcher, anl, sim, exec,
		deps.Outcomes, notifier, dryRun, a.logger,
	)

	feeds := []domain.EventFeed{
		solanaplatform.NewFeed(a.cfg.Solana.WSURL, a.cfg.Solana.Curve, a.logger),
		evmplatform.NewFeed(a.cfg.EVM.WSURL, a.cfg.EVM.Pair, a.cfg.EVM.BaseIsToken0, a.logger),
	}
	decimals := map[domain.VenueID]coordinator.VenueDecimals{
		domain.VenueSolana: {
			Base:  uint8(a.cfg.Solana.BaseDecimals),
			Quote: uint8(a.cfg.Solana.QuoteDecimals),
		},
		domain.VenueEVM: {
			Base:  uint8(a.cfg.EVM.BaseDecimals),
			Quote: uint8(a.cfg.EVM.QuoteDecimals),
		},
	}

	return coordinator.New(coordinator.Config{
		DeviationPct: a.cfg.Coordinator.DeviationPct,
		Cooldown:     a.cfg.Coordinator.Cooldown.Duration,
		EventBuffer:  a.cfg.Coordinator.EventBuffer,
	}, feeds, deps.Dedup, cycleSvc, decimals, a.logger), nil
}

// startHTTPServer adds the HTTP server and its graceful-shutdown watcher to
// the given errgroup. engine may be nil (server mode); the status endpoint
// then omits the engine fields.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, engine handler.Engine, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Status:   handler.NewStatusHandler(a.cfg.Mode, engine, time.Now().UTC()),
		Outcomes: handler.NewOutcomeHandler(deps.Outcomes, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// fanoutNotifier delivers each alert to every sink.
type fanoutNotifier []service.Notifier

func (f fanoutNotifier) Notify(ctx context.Context, event, title, message string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, event, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
