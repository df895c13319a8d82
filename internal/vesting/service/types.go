package service

import (
	"context"
	"time"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Ledger interface {
		ListUnspentOutputs(ctx context.Context, addr model.Address) ([]model.UTxO, error)
		TransactionOutputs(ctx context.Context, txID string) ([]model.UTxO, error)
	}
	Submitter interface {
		Submit(ctx context.Context, tx model.SignedTransaction) (string, error)
	}
	Signer interface {
		Sign(ctx context.Context, unsigned []byte) (model.SignedTransaction, error)
	}
	Metrics interface {
		Observe(operation string, err error, started time.Time)
		ObserveFee(operation string, fee uint64)
	}
)
