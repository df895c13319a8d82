// Package service drives the escrow workflows: it reads the ledger, calls the
// pure transaction builders and hands finished transactions to a signer and a
// submitter.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/txcbor"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/builder"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/selector"
	"github.com/goodnatureofminers/vesting-escrow/pkg/workerpool"
	"go.uber.org/zap"
)

const (
	defaultBalanceWorkerCount = 4

	opLock     = "lock"
	opUnlock   = "unlock"
	opFund     = "fund"
	opSubmit   = "submit"
	opBalances = "balances"
)

// Built is an unsigned transaction together with its serialized form.
type Built struct {
	Tx   *model.UnsignedTransaction
	CBOR []byte
	TxID string
}

type (
	LockRequest struct {
		Owner       model.Address
		Beneficiary model.Address
		Amount      model.AssetValue
		LockUntil   time.Time
	}
	UnlockRequest struct {
		DepositTxID string
		Beneficiary model.Address
		// Collateral pins a specific beneficiary output; when nil the first
		// pure-lovelace output above the configured minimum is used.
		Collateral *model.OutRef
	}
	FundRequest struct {
		From   model.Address
		To     model.Address
		Amount model.AssetValue
	}
	Balance struct {
		Address model.Address
		UTxOs   []model.UTxO
		Total   model.AssetValue
	}
)

type Service struct {
	builder     *builder.Builder
	ledger      Ledger
	submitter   Submitter
	signer      Signer
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
	workerCount int
}

func New(
	b *builder.Builder,
	ledger Ledger,
	submitter Submitter,
	signer Signer,
	metrics Metrics,
	logger *zap.Logger,
) (*Service, error) {
	if b == nil || ledger == nil {
		return nil, errors.New("builder and ledger are required")
	}
	if metrics == nil {
		return nil, errors.New("vesting service metrics is required")
	}
	if logger == nil {
		return nil, errors.New("vesting service logger is required")
	}
	return &Service{
		builder:     b,
		ledger:      ledger,
		submitter:   submitter,
		signer:      signer,
		metrics:     metrics,
		logger:      logger.Named("vesting"),
		now:         time.Now,
		workerCount: defaultBalanceWorkerCount,
	}, nil
}

// Lock builds a deposit of req.Amount from the owner's wallet into the escrow script.
func (s *Service) Lock(ctx context.Context, req LockRequest) (built *Built, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(opLock, err, started)
	}()
	logger := s.logger.With(
		zap.String("owner", string(req.Owner)),
		zap.String("beneficiary", string(req.Beneficiary)),
		zap.Stringer("amount", req.Amount),
		zap.Time("lock_until", req.LockUntil),
	)

	utxos, err := s.ledger.ListUnspentOutputs(ctx, req.Owner)
	if err != nil {
		return nil, fmt.Errorf("list owner utxos: %w", err)
	}
	logger.Debug("owner utxos fetched", zap.Int("count", len(utxos)))

	tx, err := s.builder.BuildDeposit(utxos, req.Owner, req.Beneficiary, req.Amount, req.LockUntil.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("build deposit: %w", err)
	}
	if built, err = s.finish(opLock, tx); err != nil {
		return nil, err
	}
	logger.Info("deposit built", zap.String("tx_id", built.TxID), zap.Uint64("fee", tx.Fee))
	return built, nil
}

// Unlock builds the beneficiary's withdrawal of the deposit created by req.DepositTxID.
func (s *Service) Unlock(ctx context.Context, req UnlockRequest) (built *Built, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(opUnlock, err, started)
	}()
	logger := s.logger.With(
		zap.String("deposit_tx", req.DepositTxID),
		zap.String("beneficiary", string(req.Beneficiary)),
	)

	deposit, err := s.ResolveDeposit(ctx, req.DepositTxID)
	if err != nil {
		return nil, err
	}

	utxos, err := s.ledger.ListUnspentOutputs(ctx, req.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("list beneficiary utxos: %w", err)
	}

	collateral, err := s.pickCollateral(utxos, req.Collateral)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tx, err := s.builder.BuildWithdrawal(deposit, req.Beneficiary, utxos, collateral, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("build withdrawal: %w", err)
	}
	if built, err = s.finish(opUnlock, tx); err != nil {
		return nil, err
	}
	logger.Info("withdrawal built",
		zap.String("tx_id", built.TxID),
		zap.Stringer("deposit", deposit.Ref),
		zap.Uint64("valid_from", *tx.ValidFrom),
		zap.Uint64("fee", tx.Fee))
	return built, nil
}

// Fund builds a plain transfer between two wallets, typically to give a
// beneficiary the fee and collateral outputs a withdrawal needs.
func (s *Service) Fund(ctx context.Context, req FundRequest) (built *Built, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(opFund, err, started)
	}()

	utxos, err := s.ledger.ListUnspentOutputs(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("list sender utxos: %w", err)
	}
	tx, err := s.builder.BuildTransfer(utxos, req.From, req.To, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}
	if built, err = s.finish(opFund, tx); err != nil {
		return nil, err
	}
	s.logger.Info("transfer built",
		zap.String("tx_id", built.TxID),
		zap.String("from", string(req.From)),
		zap.String("to", string(req.To)),
		zap.Stringer("amount", req.Amount))
	return built, nil
}

// ResolveDeposit returns the first output of txID that sits at the script address.
func (s *Service) ResolveDeposit(ctx context.Context, txID string) (model.UTxO, error) {
	outputs, err := s.ledger.TransactionOutputs(ctx, txID)
	if err != nil {
		return model.UTxO{}, fmt.Errorf("fetch deposit outputs: %w", err)
	}
	scriptAddress := s.builder.Config().Script.Address
	for _, out := range outputs {
		if out.Address == scriptAddress {
			return out, nil
		}
	}
	return model.UTxO{}, fmt.Errorf("%w: transaction %s has no output at %s", vesting.ErrScriptOutputNotFound, txID, scriptAddress)
}

// SignAndSubmit signs built with the external signer and submits it once.
// Submission failures are never retried here.
func (s *Service) SignAndSubmit(ctx context.Context, built *Built) (txID string, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(opSubmit, err, started)
	}()
	if s.signer == nil || s.submitter == nil {
		return "", errors.New("signer and submitter are required to submit")
	}

	signed, err := s.signer.Sign(ctx, built.CBOR)
	if err != nil {
		return "", fmt.Errorf("sign transaction %s: %w", built.TxID, err)
	}
	txID, err = s.submitter.Submit(ctx, signed)
	if err != nil {
		if !errors.Is(err, vesting.ErrSubmissionFailure) {
			err = fmt.Errorf("%w: %v", vesting.ErrSubmissionFailure, err)
		}
		return "", err
	}
	if built.TxID != "" && txID != built.TxID {
		s.logger.Warn("submitted id differs from built id",
			zap.String("built", built.TxID), zap.String("submitted", txID))
	}
	s.logger.Info("transaction submitted", zap.String("tx_id", txID))
	return txID, nil
}

// Balances fetches a fresh UTxO snapshot for every address concurrently.
func (s *Service) Balances(ctx context.Context, addresses []model.Address) (balances []Balance, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe(opBalances, err, started)
	}()

	return workerpool.Map(ctx, s.workerCount, addresses, func(ctx context.Context, addr model.Address) (Balance, error) {
		utxos, err := s.ledger.ListUnspentOutputs(ctx, addr)
		if err != nil {
			return Balance{}, fmt.Errorf("list utxos of %s: %w", addr, err)
		}
		total, err := model.SumValues(utxos)
		if err != nil {
			return Balance{}, fmt.Errorf("sum utxos of %s: %w", addr, err)
		}
		return Balance{Address: addr, UTxOs: utxos, Total: total}, nil
	})
}

func (s *Service) pickCollateral(utxos []model.UTxO, pinned *model.OutRef) ([]model.UTxO, error) {
	if pinned != nil {
		for _, u := range utxos {
			if u.Ref == *pinned {
				return []model.UTxO{u}, nil
			}
		}
		return nil, fmt.Errorf("%w: %s is not an unspent beneficiary output", vesting.ErrMissingCollateral, pinned)
	}
	if c, ok := selector.SelectCollateral(utxos, s.builder.Config().CollateralMin); ok {
		return []model.UTxO{c}, nil
	}
	return nil, nil
}

func (s *Service) finish(op string, tx *model.UnsignedTransaction) (*Built, error) {
	raw, err := txcbor.Encode(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	id, err := txcbor.TxID(tx)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	s.metrics.ObserveFee(op, tx.Fee)
	return &Built{Tx: tx, CBOR: raw, TxID: id}, nil
}
