package main

import (
	"fmt"
	"strings"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/pkg/safe"
)

// parseAmount combines a lovelace quantity with unit=quantity asset flags.
func parseAmount(lovelace uint64, assets []string) (model.AssetValue, error) {
	amount := model.NewCoin(lovelace)
	for _, a := range assets {
		unit, qty, ok := strings.Cut(a, "=")
		if !ok || unit == "" {
			return nil, fmt.Errorf("asset %q: want unit=quantity", a)
		}
		if unit == string(model.Lovelace) {
			return nil, fmt.Errorf("asset %q: use --lovelace for the native unit", a)
		}
		if len(unit) < model.PolicyIDHexLen {
			return nil, fmt.Errorf("asset %q: unit must start with a %d character policy id", a, model.PolicyIDHexLen)
		}
		n, err := safe.Quantity(qty)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", a, err)
		}
		if amount, err = amount.Add(model.AssetValue{model.Unit(unit): n}); err != nil {
			return nil, fmt.Errorf("asset %q: %w", a, err)
		}
	}
	return amount, nil
}
