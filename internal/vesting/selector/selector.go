// Package selector picks wallet outputs that cover a target value.
package selector

import (
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
)

// Selection is the result of Select.
type Selection struct {
	Chosen []model.UTxO
	// Total is the summed value of Chosen.
	Total model.AssetValue
	// Change is the native surplus over the target.
	Change uint64
}

// Select accumulates outputs in the supplied order until every unit of target is
// covered. It fails with *vesting.InsufficientFundsError when the outputs run out.
func Select(available []model.UTxO, target model.AssetValue) (Selection, error) {
	total := model.AssetValue{}
	chosen := make([]model.UTxO, 0, len(available))

	for _, u := range available {
		if _, _, ok := total.Shortfall(target); ok {
			break
		}
		next, err := total.Add(u.Value)
		if err != nil {
			return Selection{}, fmt.Errorf("add utxo %s: %w", u.Ref, err)
		}
		total = next
		chosen = append(chosen, u)
	}

	if unit, missing, ok := total.Shortfall(target); !ok {
		return Selection{}, &vesting.InsufficientFundsError{Unit: unit, Shortfall: missing}
	}

	return Selection{
		Chosen: chosen,
		Total:  total,
		Change: total.Coin() - target.Coin(),
	}, nil
}

// SelectCollateral returns the first output that holds only the native unit and
// at least minLovelace of it.
func SelectCollateral(available []model.UTxO, minLovelace uint64) (model.UTxO, bool) {
	for _, u := range available {
		units := u.Value.Units()
		if len(units) == 1 && units[0] == model.Lovelace && u.Value.Coin() >= minLovelace {
			return u, true
		}
	}
	return model.UTxO{}, false
}
