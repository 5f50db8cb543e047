package main

import (
	"context"

	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
	"github.com/yairfalse/aurora-snapshot-copier/internal/registry"
	"github.com/yairfalse/aurora-snapshot-copier/internal/runner"
	"github.com/yairfalse/aurora-snapshot-copier/pkg/config"
)

type providerFunc func(ctx context.Context, c *config.Config) (registry.Provider, error)

type handler struct {
	lookup   func(string) (string, bool)
	log      logger.Logger
	provider providerFunc
}

// Handle executes one pass. The invocation fails when any unit failed, and
// the report is returned either way.
func (h *handler) Handle(ctx context.Context) (*runner.Report, error) {
	h.log.Info("Starting")

	c, err := config.FromEnv(h.lookup, h.log)
	if err != nil {
		h.log.Error("Invalid environment configuration", err)
		return nil, err
	}

	opts, err := c.Options()
	if err != nil {
		h.log.Error("Invalid environment configuration", err)
		return nil, err
	}
	h.log.WithField("options", opts).Info("Found options")

	provider, err := h.provider(ctx, c)
	if err != nil {
		h.log.Error("Failed to load AWS configuration", err)
		return nil, err
	}

	return runner.New(provider, h.log, nil).Run(ctx, opts)
}
