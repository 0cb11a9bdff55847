package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

// DynamicProvider lets the active model be swapped while requests are in flight.
type DynamicProvider struct {
	cfg     *config.AppConfig
	current atomic.Value
	mu      sync.RWMutex
	model   string
}

func NewDynamicProvider(ctx context.Context, cfg *config.AppConfig) (*DynamicProvider, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial provider: %w", err)
	}

	d := &DynamicProvider{cfg: cfg, model: cfg.Model}
	d.current.Store(provider)
	return d, nil
}

func (d *DynamicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return d.current.Load().(Provider).Generate(ctx, prompt)
}

func (d *DynamicProvider) Models(ctx context.Context) ([]core.Model, error) {
	return d.current.Load().(Provider).Models(ctx)
}

// GetModel (thread-safe)
func (d *DynamicProvider) GetModel() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model
}

// SetModel switches the model for subsequent calls. It is not persisted.
func (d *DynamicProvider) SetModel(ctx context.Context, model string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := newProvider(d.cfg.Provider, d.cfg, model)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	d.current.Store(next)
	d.model = model

	log.FromCtx(ctx).Info().Str("model", model).Msg("llm model switched")
	return nil
}
