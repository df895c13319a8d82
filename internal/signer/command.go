// Package signer delegates witness creation to an operator supplied program so
// that signing keys never enter this process.
package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
)

// Command runs Path with Args, writes the unsigned transaction as hex to its
// stdin and reads the signed transaction as hex from its stdout.
type Command struct {
	Path string
	Args []string
}

// New splits a command line such as "cardano-signer sign --key owner.skey".
func New(commandLine string) (*Command, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("sign command is empty")
	}
	return &Command{Path: fields[0], Args: fields[1:]}, nil
}

// Sign returns the signed form of unsigned.
func (c *Command) Sign(ctx context.Context, unsigned []byte) (model.SignedTransaction, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = strings.NewReader(hex.EncodeToString(unsigned) + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return model.SignedTransaction{}, fmt.Errorf("run %s: %w: %s", c.Path, err, msg)
		}
		return model.SignedTransaction{}, fmt.Errorf("run %s: %w", c.Path, err)
	}

	signed, err := hex.DecodeString(strings.TrimSpace(stdout.String()))
	if err != nil {
		return model.SignedTransaction{}, fmt.Errorf("decode %s output: %w", c.Path, err)
	}
	if len(signed) == 0 {
		return model.SignedTransaction{}, fmt.Errorf("%s produced no transaction", c.Path)
	}
	return model.SignedTransaction{CBOR: signed}, nil
}
