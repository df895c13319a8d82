package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goodnatureofminers/vesting-escrow/internal/blockfrost"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/metrics"
	"github.com/goodnatureofminers/vesting-escrow/internal/signer"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/builder"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/service"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	Network       string        `long:"network" env:"VESTING_NETWORK" description:"network name" choice:"preview" choice:"preprod" choice:"mainnet" default:"preview"`
	BlockfrostURL string        `long:"blockfrost-url" env:"VESTING_BLOCKFROST_URL" description:"Blockfrost API base URL, the public endpoint of the network when empty"`
	ProjectID     string        `long:"project-id" env:"VESTING_BLOCKFROST_PROJECT_ID" description:"Blockfrost project id" required:"true"`
	RPS           int           `long:"rps" env:"VESTING_BLOCKFROST_RPS" description:"max Blockfrost requests per second" default:"10"`
	HTTPTimeout   time.Duration `long:"http-timeout" env:"VESTING_HTTP_TIMEOUT" description:"HTTP timeout for Blockfrost requests" default:"30s"`
	Blueprint     string        `long:"blueprint" env:"VESTING_BLUEPRINT" description:"path to the plutus.json blueprint" default:"plutus.json"`
	Validator     string        `long:"validator" env:"VESTING_VALIDATOR" description:"validator title in the blueprint, the first one when empty"`
	ScriptAddress string        `long:"script-address" env:"VESTING_SCRIPT_ADDRESS" description:"escrow script address, derived from the validator when empty"`
	SignCommand   string        `long:"sign-command" env:"VESTING_SIGN_COMMAND" description:"command reading unsigned tx hex on stdin and writing signed tx hex to stdout"`
	MetricsAddr   string        `long:"metrics-addr" env:"VESTING_METRICS_ADDR" description:"address for metrics server, disabled when empty"`

	Lock   lockCommand   `command:"lock" description:"lock funds at the escrow script for a beneficiary"`
	Unlock unlockCommand `command:"unlock" description:"withdraw an escrow deposit as its beneficiary"`
	Fund   fundCommand   `command:"fund" description:"send funds from one wallet to another"`
	Submit submitCommand `command:"submit" description:"sign and submit a previously built transaction"`
	Status statusCommand `command:"status" description:"show the unspent outputs of addresses"`
}

type lockCommand struct {
	Owner       string        `long:"owner" env:"VESTING_OWNER_ADDRESS" description:"owner address paying the deposit" required:"true"`
	Beneficiary string        `long:"beneficiary" env:"VESTING_BENEFICIARY_ADDRESS" description:"beneficiary address" required:"true"`
	Lovelace    uint64        `long:"lovelace" description:"lovelace to lock" default:"3000000"`
	Assets      []string      `long:"asset" description:"native asset to lock as unit=quantity, repeatable"`
	LockUntil   string        `long:"lock-until" description:"RFC3339 unlock time"`
	LockFor     time.Duration `long:"lock-for" description:"unlock after this duration when --lock-until is empty" default:"1m"`
	Submit      bool          `long:"submit" description:"sign and submit instead of printing the unsigned transaction"`
}

type unlockCommand struct {
	DepositTx   string `long:"deposit-tx" description:"id of the deposit transaction" required:"true"`
	Beneficiary string `long:"beneficiary" env:"VESTING_BENEFICIARY_ADDRESS" description:"beneficiary address" required:"true"`
	Collateral  string `long:"collateral" description:"collateral output as txid#index, chosen automatically when empty"`
	Submit      bool   `long:"submit" description:"sign and submit instead of printing the unsigned transaction"`
}

type fundCommand struct {
	From     string   `long:"from" env:"VESTING_OWNER_ADDRESS" description:"paying address" required:"true"`
	To       string   `long:"to" env:"VESTING_BENEFICIARY_ADDRESS" description:"receiving address" required:"true"`
	Lovelace uint64   `long:"lovelace" description:"lovelace to send" default:"10000000"`
	Assets   []string `long:"asset" description:"native asset to send as unit=quantity, repeatable"`
	Submit   bool     `long:"submit" description:"sign and submit instead of printing the unsigned transaction"`
}

type submitCommand struct {
	TxFile string `long:"tx-file" description:"file holding unsigned transaction hex, stdin when empty"`
}

type statusCommand struct {
	Addresses []string `long:"address" description:"address to inspect, repeatable" required:"true"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, parser.Active.Name, logger); err != nil {
		logger.Fatal("vesting command failed", zap.String("command", parser.Active.Name), zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, command string, logger *zap.Logger) error {
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	switch command {
	case "lock":
		return runLock(ctx, svc, cfg.Lock)
	case "unlock":
		return runUnlock(ctx, svc, cfg.Unlock)
	case "fund":
		return runFund(ctx, svc, cfg.Fund)
	case "submit":
		return runSubmit(ctx, svc, cfg.Submit)
	case "status":
		return runStatus(ctx, svc, cfg.Status)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newService(ctx context.Context, cfg config, logger *zap.Logger) (*service.Service, error) {
	f, err := os.Open(cfg.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("open blueprint: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	script, err := vesting.ReadBlueprint(f, cfg.Validator)
	if err != nil {
		return nil, err
	}

	vcfg, err := vesting.NewConfig(cfg.Network, script, model.Address(cfg.ScriptAddress))
	if err != nil {
		return nil, fmt.Errorf("init vesting config: %w", err)
	}

	baseURL := cfg.BlockfrostURL
	if baseURL == "" {
		var ok bool
		if baseURL, ok = blockfrost.BaseURL(cfg.Network); !ok {
			return nil, fmt.Errorf("no blockfrost endpoint for network %s", cfg.Network)
		}
	}
	bfCfg := blockfrost.DefaultConfig(baseURL, cfg.ProjectID)
	bfCfg.RPS = cfg.RPS
	client, err := blockfrost.New(bfCfg, &http.Client{Timeout: cfg.HTTPTimeout}, metrics.NewLedgerClient(cfg.Network), logger)
	if err != nil {
		return nil, fmt.Errorf("init blockfrost client: %w", err)
	}

	params, err := client.ProtocolParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch protocol parameters: %w", err)
	}
	vcfg.ApplyProtocolParameters(params)

	b, err := builder.New(vcfg)
	if err != nil {
		return nil, err
	}

	var sign service.Signer
	if cfg.SignCommand != "" {
		if sign, err = signer.New(cfg.SignCommand); err != nil {
			return nil, err
		}
	}

	logger.Info("escrow configured",
		zap.String("network", cfg.Network),
		zap.String("script_address", string(vcfg.Script.Address)),
		zap.Uint64("min_fee_a", vcfg.Fees.MinFeeA),
		zap.Int("cost_model_size", len(vcfg.CostModel)))
	return service.New(b, client, client, sign, metrics.NewService(cfg.Network), logger)
}

func runLock(ctx context.Context, svc *service.Service, cmd lockCommand) error {
	amount, err := parseAmount(cmd.Lovelace, cmd.Assets)
	if err != nil {
		return err
	}
	lockUntil := time.Now().Add(cmd.LockFor)
	if cmd.LockUntil != "" {
		if lockUntil, err = time.Parse(time.RFC3339, cmd.LockUntil); err != nil {
			return fmt.Errorf("parse --lock-until: %w", err)
		}
	}

	built, err := svc.Lock(ctx, service.LockRequest{
		Owner:       model.Address(cmd.Owner),
		Beneficiary: model.Address(cmd.Beneficiary),
		Amount:      amount,
		LockUntil:   lockUntil,
	})
	if err != nil {
		return err
	}
	return emit(ctx, svc, built, cmd.Submit)
}

func runUnlock(ctx context.Context, svc *service.Service, cmd unlockCommand) error {
	req := service.UnlockRequest{
		DepositTxID: cmd.DepositTx,
		Beneficiary: model.Address(cmd.Beneficiary),
	}
	if cmd.Collateral != "" {
		ref, err := model.ParseOutRef(cmd.Collateral)
		if err != nil {
			return fmt.Errorf("parse --collateral: %w", err)
		}
		req.Collateral = &ref
	}

	built, err := svc.Unlock(ctx, req)
	if err != nil {
		return err
	}
	return emit(ctx, svc, built, cmd.Submit)
}

func runFund(ctx context.Context, svc *service.Service, cmd fundCommand) error {
	amount, err := parseAmount(cmd.Lovelace, cmd.Assets)
	if err != nil {
		return err
	}
	built, err := svc.Fund(ctx, service.FundRequest{
		From:   model.Address(cmd.From),
		To:     model.Address(cmd.To),
		Amount: amount,
	})
	if err != nil {
		return err
	}
	return emit(ctx, svc, built, cmd.Submit)
}

func runSubmit(ctx context.Context, svc *service.Service, cmd submitCommand) error {
	var (
		raw []byte
		err error
	)
	if cmd.TxFile == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(cmd.TxFile)
	}
	if err != nil {
		return fmt.Errorf("read transaction: %w", err)
	}
	unsigned, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("decode transaction hex: %w", err)
	}

	txID, err := svc.SignAndSubmit(ctx, &service.Built{CBOR: unsigned})
	if err != nil {
		return err
	}
	fmt.Println(txID)
	return nil
}

func runStatus(ctx context.Context, svc *service.Service, cmd statusCommand) error {
	addresses := make([]model.Address, 0, len(cmd.Addresses))
	for _, a := range cmd.Addresses {
		addresses = append(addresses, model.Address(a))
	}
	balances, err := svc.Balances(ctx, addresses)
	if err != nil {
		return err
	}
	for _, b := range balances {
		fmt.Printf("%s\t%d utxos\t%s\n", b.Address, len(b.UTxOs), b.Total)
		for _, u := range b.UTxOs {
			datum := ""
			if u.HasInlineDatum() {
				datum = "\tinline datum " + hex.EncodeToString(u.InlineDatum)
			}
			fmt.Printf("  %s\t%s%s\n", u.Ref, u.Value, datum)
		}
	}
	return nil
}

// emit prints the unsigned transaction, or signs and submits it.
func emit(ctx context.Context, svc *service.Service, built *service.Built, submit bool) error {
	if !submit {
		fmt.Println(hex.EncodeToString(built.CBOR))
		return nil
	}
	txID, err := svc.SignAndSubmit(ctx, built)
	if err != nil {
		return err
	}
	fmt.Println(txID)
	return nil
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
