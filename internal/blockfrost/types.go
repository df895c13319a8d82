// Package blockfrost is the ledger indexer client: UTxO lookups and transaction
// submission against the Blockfrost REST API.
package blockfrost

import "time"

type (
	// Metrics records the outcome of indexer calls.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
		ObserveRetry(operation string)
	}
)

// Operation names reported to Metrics.
const (
	opListUtxos  = "list_utxos"
	opTxOutputs  = "tx_outputs"
	opSubmit     = "submit"
	opParameters = "protocol_parameters"
	defaultCount = 100
)

// BaseURL returns the public endpoint for a named network.
func BaseURL(network string) (string, bool) {
	switch network {
	case "preview":
		return "https://cardano-preview.blockfrost.io/api/v0", true
	case "preprod":
		return "https://cardano-preprod.blockfrost.io/api/v0", true
	case "mainnet":
		return "https://cardano-mainnet.blockfrost.io/api/v0", true
	default:
		return "", false
	}
}
