package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
)

const token model.Unit = "aa000000000000000000000000000000000000000000000000000000746f6b"

func utxo(id string, value model.AssetValue) model.UTxO {
	return model.UTxO{Ref: model.OutRef{TxID: id}, Address: "addr_test1owner", Value: value}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		available  []model.UTxO
		target     model.AssetValue
		wantChosen []string
		wantChange uint64
		wantErr    error
	}{
		{
			name:       "single output covers",
			available:  []model.UTxO{utxo("a", model.NewCoin(10_000_000))},
			target:     model.NewCoin(5_000_000),
			wantChosen: []string{"a"},
			wantChange: 5_000_000,
		},
		{
			name: "accumulates in order and stops once covered",
			available: []model.UTxO{
				utxo("a", model.NewCoin(1_000_000)),
				utxo("b", model.NewCoin(2_000_000)),
				utxo("c", model.NewCoin(4_000_000)),
				utxo("d", model.NewCoin(8_000_000)),
			},
			target:     model.NewCoin(6_500_000),
			wantChosen: []string{"a", "b", "c"},
			wantChange: 500_000,
		},
		{
			name: "token target keeps selecting",
			available: []model.UTxO{
				utxo("a", model.NewCoin(9_000_000)),
				utxo("b", model.AssetValue{model.Lovelace: 1_000_000, token: 3}),
			},
			target:     model.AssetValue{model.Lovelace: 2_000_000, token: 2},
			wantChosen: []string{"a", "b"},
			wantChange: 8_000_000,
		},
		{
			name:       "zero target selects nothing",
			available:  []model.UTxO{utxo("a", model.NewCoin(1))},
			target:     model.AssetValue{},
			wantChosen: []string{},
		},
		{
			name:      "native shortfall",
			available: []model.UTxO{utxo("a", model.NewCoin(1_000_000))},
			target:    model.NewCoin(2_000_000),
			wantErr:   vesting.ErrInsufficientFunds,
		},
		{
			name:      "token shortfall",
			available: []model.UTxO{utxo("a", model.NewCoin(100_000_000))},
			target:    model.AssetValue{model.Lovelace: 1, token: 1},
			wantErr:   vesting.ErrInsufficientFunds,
		},
		{
			name:    "nothing available",
			target:  model.NewCoin(1),
			wantErr: vesting.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.available, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
				}
				if got.Chosen != nil || got.Total != nil {
					t.Fatalf("Select() returned partial result %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			ids := make([]string, 0, len(got.Chosen))
			for _, u := range got.Chosen {
				ids = append(ids, u.Ref.TxID)
			}
			if !reflect.DeepEqual(ids, tt.wantChosen) {
				t.Fatalf("Select() chosen = %v, want %v", ids, tt.wantChosen)
			}
			if got.Change != tt.wantChange {
				t.Fatalf("Select() change = %d, want %d", got.Change, tt.wantChange)
			}
		})
	}
}

func TestSelect_InsufficientFundsDetail(t *testing.T) {
	_, err := Select([]model.UTxO{utxo("a", model.NewCoin(3))}, model.NewCoin(10))
	var typed *vesting.InsufficientFundsError
	if !errors.As(err, &typed) {
		t.Fatalf("Select() error = %v, want *InsufficientFundsError", err)
	}
	if typed.Unit != model.Lovelace || typed.Shortfall != 7 {
		t.Fatalf("Select() error detail = %+v", typed)
	}
}

func TestSelect_CoverageProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := 1 + r.Intn(8)
		available := make([]model.UTxO, 0, n)
		var sum uint64
		for j := 0; j < n; j++ {
			v := uint64(1 + r.Intn(5_000_000))
			sum += v
			available = append(available, utxo(fmt.Sprintf("tx%d", j), model.NewCoin(v)))
		}
		target := uint64(r.Int63n(int64(sum) + 2_000_000))

		got, err := Select(available, model.NewCoin(target))
		if target > sum {
			if !errors.Is(err, vesting.ErrInsufficientFunds) {
				t.Fatalf("target %d > sum %d: error = %v", target, sum, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("target %d <= sum %d: error = %v", target, sum, err)
		}
		if got.Total.Coin() < target || got.Change != got.Total.Coin()-target {
			t.Fatalf("selection %+v does not cover %d exactly", got, target)
		}

		again, _ := Select(available, model.NewCoin(target))
		if !reflect.DeepEqual(got, again) {
			t.Fatal("Select() is not deterministic")
		}
	}
}

func TestSelectCollateral(t *testing.T) {
	available := []model.UTxO{
		utxo("small", model.NewCoin(1_000_000)),
		utxo("tokens", model.AssetValue{model.Lovelace: 9_000_000, token: 1}),
		utxo("pure", model.NewCoin(5_000_000)),
		utxo("later", model.NewCoin(50_000_000)),
	}
	got, ok := SelectCollateral(available, 5_000_000)
	if !ok || got.Ref.TxID != "pure" {
		t.Fatalf("SelectCollateral() = %v, %v", got.Ref, ok)
	}
	if _, ok := SelectCollateral(available[:2], 5_000_000); ok {
		t.Fatal("SelectCollateral() accepted a token output or a small output")
	}
}
