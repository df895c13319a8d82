// Package slot converts wall-clock time to ledger slots.
package slot

import "fmt"

// Config is the fixed time configuration of a network.
type Config struct {
	ZeroTimeMs   int64
	ZeroSlot     uint64
	SlotLengthMs int64
}

var (
	// Preview is the slot configuration of the preview testnet.
	Preview = Config{ZeroTimeMs: 1666656000000, ZeroSlot: 0, SlotLengthMs: 1000}
	// Preprod is the slot configuration of the pre-production testnet.
	Preprod = Config{ZeroTimeMs: 1655769600000, ZeroSlot: 86400, SlotLengthMs: 1000}
	// Mainnet is the slot configuration of mainnet since the Shelley hard fork.
	Mainnet = Config{ZeroTimeMs: 1596059091000, ZeroSlot: 4492800, SlotLengthMs: 1000}
)

// ForNetwork returns the preset for a network name.
func ForNetwork(name string) (Config, error) {
	switch name {
	case "preview":
		return Preview, nil
	case "preprod":
		return Preprod, nil
	case "mainnet":
		return Mainnet, nil
	default:
		return Config{}, fmt.Errorf("unsupported network %q", name)
	}
}

// Validate checks that the configuration can be used for conversions.
func (c Config) Validate() error {
	if c.SlotLengthMs <= 0 {
		return fmt.Errorf("slot length must be positive, got %d", c.SlotLengthMs)
	}
	return nil
}

// TimeToSlot returns the slot enclosing epochMs. Times before the zero time map to ZeroSlot.
func (c Config) TimeToSlot(epochMs int64) uint64 {
	if epochMs <= c.ZeroTimeMs || c.SlotLengthMs <= 0 {
		return c.ZeroSlot
	}
	return c.ZeroSlot + uint64((epochMs-c.ZeroTimeMs)/c.SlotLengthMs)
}

// SlotToTime returns the start of slot in epoch milliseconds.
func (c Config) SlotToTime(slot uint64) int64 {
	if slot <= c.ZeroSlot {
		return c.ZeroTimeMs
	}
	return c.ZeroTimeMs + int64(slot-c.ZeroSlot)*c.SlotLengthMs
}
