package blockfrost

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/pkg/safe"
)

type amountDTO struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// utxoDTO is shared by the address and transaction UTxO endpoints; the latter
// omits tx_hash and reports spent outputs too.
type utxoDTO struct {
	Address     string      `json:"address"`
	TxHash      string      `json:"tx_hash"`
	OutputIndex int         `json:"output_index"`
	Amount      []amountDTO `json:"amount"`
	DataHash    *string     `json:"data_hash"`
	InlineDatum *string     `json:"inline_datum"`
	Collateral  bool        `json:"collateral"`
}

type txUtxosDTO struct {
	Hash    string    `json:"hash"`
	Outputs []utxoDTO `json:"outputs"`
}

// parametersDTO is the subset of /epochs/latest/parameters the builders use.
type parametersDTO struct {
	MinFeeA       int64              `json:"min_fee_a"`
	MinFeeB       int64              `json:"min_fee_b"`
	PriceMem      json.Number        `json:"price_mem"`
	PriceStep     json.Number        `json:"price_step"`
	CostModelsRaw map[string][]int64 `json:"cost_models_raw"`
}

const plutusV3CostModel = "PlutusV3"

func (d parametersDTO) toModel() (vesting.ProtocolParameters, error) {
	minFeeA, err := safe.Uint64(d.MinFeeA)
	if err != nil {
		return vesting.ProtocolParameters{}, fmt.Errorf("min_fee_a: %w", err)
	}
	minFeeB, err := safe.Uint64(d.MinFeeB)
	if err != nil {
		return vesting.ProtocolParameters{}, fmt.Errorf("min_fee_b: %w", err)
	}
	priceMem, err := vesting.ParseRatio(d.PriceMem.String())
	if err != nil {
		return vesting.ProtocolParameters{}, fmt.Errorf("price_mem: %w", err)
	}
	priceSteps, err := vesting.ParseRatio(d.PriceStep.String())
	if err != nil {
		return vesting.ProtocolParameters{}, fmt.Errorf("price_step: %w", err)
	}
	costModel := d.CostModelsRaw[plutusV3CostModel]
	if len(costModel) == 0 {
		return vesting.ProtocolParameters{}, errors.New("no PlutusV3 cost model")
	}
	return vesting.ProtocolParameters{
		MinFeeA:     minFeeA,
		MinFeeB:     minFeeB,
		PriceMem:    priceMem,
		PriceSteps:  priceSteps,
		CostModelV3: costModel,
	}, nil
}

type errorDTO struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func (d utxoDTO) toModel(txHash string) (model.UTxO, error) {
	if d.TxHash != "" {
		txHash = d.TxHash
	}
	index, err := safe.Uint32(d.OutputIndex)
	if err != nil {
		return model.UTxO{}, fmt.Errorf("output index: %w", err)
	}

	value := make(model.AssetValue, len(d.Amount))
	for _, a := range d.Amount {
		qty, err := safe.Quantity(a.Quantity)
		if err != nil {
			return model.UTxO{}, fmt.Errorf("%s#%d unit %s: %w", txHash, index, a.Unit, err)
		}
		if qty == 0 {
			continue
		}
		value[model.Unit(a.Unit)] += qty
	}

	utxo := model.UTxO{
		Ref:     model.OutRef{TxID: txHash, Index: index},
		Address: model.Address(d.Address),
		Value:   value,
	}
	if d.InlineDatum != nil && *d.InlineDatum != "" {
		if utxo.InlineDatum, err = hex.DecodeString(*d.InlineDatum); err != nil {
			return model.UTxO{}, fmt.Errorf("%s inline datum: %w", utxo.Ref, err)
		}
	}
	if d.DataHash != nil {
		utxo.DatumHash = *d.DataHash
	}
	return utxo, nil
}
