// Package portfolio loads the balances and prices to be valued.
package portfolio

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/matrixise/wallet-valuator/internal/valuation"
)

// ErrNoHoldings is returned when a holdings source lists no balances
var ErrNoHoldings = errors.New("no holdings")

// Provider supplies snapshots of balances and prices. Implementations return
// the same pointers for as long as the underlying data is unchanged.
type Provider interface {
	Load(ctx context.Context) (*valuation.BalanceSet, *valuation.PriceTable, error)
}

// holdingsFile is the on-disk YAML layout
type holdingsFile struct {
	Balances []valuation.Balance       `yaml:"balances"`
	Prices   map[string]decimal.Decimal `yaml:"prices"`
}

// FileProvider reads holdings from a YAML file. The file is re-read on every
// Load and new snapshots are built only when its content changed.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	digest   [sha256.Size]byte
	balances *valuation.BalanceSet
	prices   *valuation.PriceTable
}

// NewFileProvider creates a provider for the YAML file at path
func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProvider{path: path, logger: logger}
}

// Load returns the current snapshots
func (p *FileProvider) Load(ctx context.Context) (*valuation.BalanceSet, *valuation.PriceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read holdings file: %w", err)
	}
	digest := sha256.Sum256(data)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.balances != nil && digest == p.digest {
		return p.balances, p.prices, nil
	}

	var hf holdingsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&hf); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to parse holdings file %s: %w", p.path, err)
	}
	if len(hf.Balances) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", p.path, ErrNoHoldings)
	}

	p.digest = digest
	p.balances = valuation.NewBalanceSet(hf.Balances...)
	p.prices = valuation.NewPriceTable(hf.Prices)
	p.logger.Info("Holdings loaded", "path", p.path, "balances", p.balances.Len(), "prices", p.prices.Len())

	return p.balances, p.prices, nil
}
