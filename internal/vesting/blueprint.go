package vesting

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type blueprint struct {
	Preamble struct {
		PlutusVersion string `json:"plutusVersion"`
	} `json:"preamble"`
	Validators []struct {
		Title        string `json:"title"`
		CompiledCode string `json:"compiledCode"`
		Hash         string `json:"hash"`
	} `json:"validators"`
}

// ReadBlueprint returns the compiled code of a Plutus V3 validator from a
// plutus.json blueprint. An empty title selects the first validator.
func ReadBlueprint(r io.Reader, title string) ([]byte, error) {
	var bp blueprint
	if err := json.NewDecoder(r).Decode(&bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if v := bp.Preamble.PlutusVersion; v != "" && !strings.EqualFold(v, "v3") {
		return nil, fmt.Errorf("blueprint targets plutus %s, need v3", v)
	}
	for _, v := range bp.Validators {
		if title != "" && v.Title != title {
			continue
		}
		if v.CompiledCode == "" {
			return nil, fmt.Errorf("validator %q has no compiled code", v.Title)
		}
		code, err := hex.DecodeString(v.CompiledCode)
		if err != nil {
			return nil, fmt.Errorf("validator %q compiled code: %w", v.Title, err)
		}
		return code, nil
	}
	if title == "" {
		return nil, errors.New("blueprint has no validators")
	}
	return nil, fmt.Errorf("validator %q not found in blueprint", title)
}
