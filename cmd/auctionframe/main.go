package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/jc4p/jc4p-auction-frame/internal/config"
	"github.com/jc4p/jc4p-auction-frame/internal/contract"
	"github.com/jc4p/jc4p-auction-frame/internal/engine"
	"github.com/jc4p/jc4p-auction-frame/internal/history"
	"github.com/jc4p/jc4p-auction-frame/internal/logger"
	"github.com/jc4p/jc4p-auction-frame/internal/metadata"
	"github.com/jc4p/jc4p-auction-frame/internal/models"
	"github.com/jc4p/jc4p-auction-frame/internal/notify"
	"github.com/jc4p/jc4p-auction-frame/internal/pricefeed"
	"github.com/jc4p/jc4p-auction-frame/internal/wallet"
)

// failureAlertThreshold is how many consecutive failed poll cycles trigger a
// degradation notification.
const failureAlertThreshold = 3

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	bidAmount  = flag.String("bid", "", "Place a single bid of this many ETH, then watch")
)

// staticIdentity supplies the FID the frame host resolved for this session.
type staticIdentity struct {
	fid uint64
}

func (s staticIdentity) ResolveFID(ctx context.Context) (uint64, error) {
	if s.fid == 0 {
		return 0, engine.ErrIdentityUnavailable
	}
	return s.fid, nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	rpcClient, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Failed to connect to RPC endpoint: %v", err)
	}
	defer rpcClient.Close()

	w, err := wallet.NewKeyedWalletFromEnv(cfg.Wallet.PrivateKeyEnv, big.NewInt(cfg.Chain.ChainID), rpcClient)
	if err != nil {
		logger.Fatal("Failed to initialize wallet: %v", err)
	}

	auctionClient, err := contract.NewClient(rpcClient, w, cfg.ContractAddr(), cfg.Chain.TokenID)
	if err != nil {
		logger.Fatal("Failed to create auction client: %v", err)
	}

	var notifier *notify.Client
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelayBase,
			engine.FormatEther,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram notifications enabled")
	}

	log := history.New(cfg.History.MaxSnapshots, cfg.History.FilePath, 0o644, 0o755)
	if err := log.Load(); err != nil {
		logger.Warn("Failed to load snapshot history: %v", err)
	}

	controller := engine.NewController(
		staticIdentity{fid: cfg.Identity.FID},
		w,
		auctionClient,
		auctionClient,
		engine.ControllerConfig{
			ChainID:       big.NewInt(cfg.Chain.ChainID),
			ConfirmDelay:  cfg.Engine.ConfirmDelay,
			UrgencyWindow: cfg.Engine.UrgencyWindow,
		},
	)

	if err := controller.Connect(ctx); err != nil {
		logger.Fatal("Session setup failed: %v", err)
	}
	logger.Info("Session ready: fid=%d account=%s phase=%s",
		controller.Session().FID, controller.Session().Account.Hex(), controller.Phase())

	if state := controller.State(); state != nil {
		if _, err := log.Record(state, "connect"); err != nil {
			logger.Warn("Failed to record initial snapshot: %v", err)
		}
		logState(state, controller.NextBid())
	}

	describeLot(ctx, auctionClient, cfg.Chain.Timeout)

	if stats, err := controller.BidderStats(ctx, controller.Session().Account); err != nil {
		logger.Warn("Could not read own bidder stats: %v", err)
	} else if stats.BidCount > 0 {
		badge := ""
		if state := controller.State(); state != nil && state.FirstBidderFID == controller.Session().FID {
			badge = " (first bidder)"
		}
		logger.Info("Your bids so far: %d%s", stats.BidCount, badge)
	}

	if cfg.Pricefeed.APIKey != "" {
		logNextBidUSD(ctx, cfg, controller.NextBid())
	}

	if *bidAmount != "" {
		placeBid(ctx, controller, *bidAmount)
	}

	watch(ctx, cfg, controller, log, notifier)

	if err := log.Save(); err != nil {
		logger.Error("Failed to save snapshot history: %v", err)
	}
	logger.Info("Service stopped")
}

// describeLot resolves and logs the lot's metadata. Failures degrade to a
// log line; the auction itself does not depend on metadata.
func describeLot(ctx context.Context, auctionClient *contract.Client, timeout time.Duration) {
	uri, err := auctionClient.TokenURI(ctx)
	if err != nil {
		logger.Warn("Could not read token URI: %v", err)
		return
	}
	tok, err := metadata.NewResolver(timeout).Resolve(ctx, uri)
	if err != nil {
		if errors.Is(err, metadata.ErrUnrecognizedURI) {
			logger.Warn("Lot image unavailable: %v", err)
		} else {
			logger.Warn("Could not resolve lot metadata: %v", err)
		}
		return
	}
	logger.Info("Lot: %s (%s)", tok.Name, tok.Image)
}

// logNextBidUSD shows the next valid bid in USD terms at the current spot
// price. Purely informational; any failure is just a warning.
func logNextBidUSD(ctx context.Context, cfg *config.Config, nextBid *big.Int) {
	if nextBid == nil {
		return
	}
	client := pricefeed.NewClient(
		cfg.Pricefeed.APIBaseURL,
		cfg.Pricefeed.APIKey,
		cfg.Pricefeed.Symbol,
		cfg.Pricefeed.Timeout,
	)
	quote, err := client.FetchPrice(ctx)
	if err != nil {
		logger.Warn("Could not fetch %s price: %v", cfg.Pricefeed.Symbol, err)
		return
	}
	usd, err := pricefeed.USDValue(nextBid, quote)
	if err != nil {
		logger.Warn("Could not convert next bid to USD: %v", err)
		return
	}
	logger.Info("Next valid bid is about %s at %s/%s", pricefeed.FormatUSD(usd), quote.Value, cfg.Pricefeed.Symbol)
}

// placeBid parses and submits one bid, then waits out the confirmation
// delay.
func placeBid(ctx context.Context, controller *engine.Controller, amountText string) {
	amount, err := engine.ParseEther(amountText)
	if err != nil {
		logger.Error("Invalid bid amount %q: %v", amountText, err)
		return
	}

	txHash, err := controller.PlaceBid(ctx, amount)
	if err != nil {
		logger.Error("Bid failed: %s", engine.Truncate(err.Error(), engine.MaxErrorDisplayLength))
		return
	}
	logger.Info("Bid broadcast: %s ETH tx=%s", engine.FormatEther(amount), txHash.Hex())

	if err := controller.AwaitConfirmation(ctx); err != nil {
		logger.Warn("Post-bid refresh failed: %v", err)
		return
	}
	logger.Info("Bid landed: phase=%s next minimum %s ETH",
		controller.Phase(), engine.FormatEther(controller.NextBid()))
}

// watch drives the poll and countdown tickers until the auction ends or the
// context is cancelled.
func watch(
	ctx context.Context,
	cfg *config.Config,
	controller *engine.Controller,
	log *history.Log,
	notifier *notify.Client,
) {
	pollTicker := time.NewTicker(cfg.Engine.PollInterval)
	defer pollTicker.Stop()

	countdownTicker := time.NewTicker(time.Second)
	defer countdownTicker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return

		case <-countdownTicker.C:
			tick := controller.Tick()
			if tick.RefreshDue {
				logger.Info("Deadline reached, taking final state")
				if err := runCycle(ctx, controller, log, notifier, "deadline"); err != nil {
					logger.Error("Final refresh failed: %v", err)
				}
			}
			if controller.Phase() == engine.PhaseEnded {
				reportEnded(controller, notifier)
				return
			}

		case <-pollTicker.C:
			if err := runCycle(ctx, controller, log, notifier, "poll"); err != nil {
				consecutiveFailures++
				logger.Error("Poll cycle failed (%d consecutive): %v", consecutiveFailures, err)
				if consecutiveFailures == failureAlertThreshold && notifier != nil {
					if nerr := notifier.CycleFailure(consecutiveFailures, err); nerr != nil {
						logger.Error("Failed to send degradation alert: %v", nerr)
					}
				}
				continue
			}
			if consecutiveFailures >= failureAlertThreshold && notifier != nil {
				if nerr := notifier.Recovered(consecutiveFailures); nerr != nil {
					logger.Error("Failed to send recovery notice: %v", nerr)
				}
			}
			consecutiveFailures = 0

			if controller.Phase() == engine.PhaseEnded {
				reportEnded(controller, notifier)
				return
			}
		}
	}
}

// runCycle refreshes auction state, records a snapshot, and reports
// first-bid and outbid transitions against the previous snapshot.
func runCycle(
	ctx context.Context,
	controller *engine.Controller,
	log *history.Log,
	notifier *notify.Client,
	source string,
) error {
	prev, hadPrev := log.Latest()

	if err := controller.Refresh(ctx); err != nil {
		return err
	}
	state := controller.State()
	if state == nil {
		return fmt.Errorf("no auction state after refresh")
	}

	if _, err := log.Record(state, source); err != nil {
		logger.Warn("Failed to record snapshot: %v", err)
	}
	if err := log.Save(); err != nil {
		logger.Warn("Failed to persist snapshot history: %v", err)
	}

	if !hadPrev || notifier == nil {
		return nil
	}

	account := controller.Session().Account.Hex()
	switch {
	case !prev.HasFirstBid && state.HasFirstBid:
		logger.Info("First bid landed: %s ETH", engine.FormatEther(state.HighestBid))
		if err := notifier.FirstBid(state.HighestBid, state.FirstBidderFID); err != nil {
			logger.Error("Failed to send first-bid notice: %v", err)
		}
	case prev.HighestBidder == account && state.HighestBidder.Hex() != account && state.HasFirstBid:
		logger.Info("Outbid: new highest %s ETH", engine.FormatEther(state.HighestBid))
		if err := notifier.Outbid(state.HighestBid, state.HighestBidderFID, engine.NextValidBid(state)); err != nil {
			logger.Error("Failed to send outbid notice: %v", err)
		}
	}
	return nil
}

func reportEnded(controller *engine.Controller, notifier *notify.Client) {
	state := controller.State()
	if state == nil {
		return
	}
	logger.Info("Auction ended: hadBids=%v finalBid=%s ETH",
		state.HasFirstBid, engine.FormatEther(state.HighestBid))
	if notifier != nil {
		if err := notifier.Ended(state.HighestBid, state.HighestBidderFID, state.HasFirstBid); err != nil {
			logger.Error("Failed to send ended notice: %v", err)
		}
	}
}

func logState(state *models.AuctionState, nextBid *big.Int) {
	if state.HasFirstBid {
		logger.Info("Auction state: highest=%s ETH leader=%s totalBids=%s remaining=%s",
			engine.FormatEther(state.HighestBid),
			state.HighestBidder.Hex(),
			state.TotalBids.String(),
			engine.FormatRemaining(state.SecondsRemaining(time.Now().Unix())))
	} else {
		logger.Info("Auction state: no bids yet, reserve=%s ETH remaining=%s",
			engine.FormatEther(state.ReservePrice),
			engine.FormatRemaining(state.SecondsRemaining(time.Now().Unix())))
	}
	if nextBid != nil {
		logger.Info("Next valid bid: %s ETH", engine.FormatEther(nextBid))
	}
}
