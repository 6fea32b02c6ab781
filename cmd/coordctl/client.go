package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/identity"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
)

// newClient resolves identity and opens the datastore connection, the
// same sequence the tool host performs at startup. CLI callers are
// short-lived processes, so the adapter is closed by the caller via
// the returned closer.
func newClient(ctx context.Context) (*broker.Client, string, config.Config, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", config.Config{}, nil, fmt.Errorf("getting current directory: %w", err)
	}
	self, err := identity.Resolve(ctx, cwd)
	if err != nil {
		return nil, "", config.Config{}, nil, err
	}

	cfg := config.FromEnv("coord.toml")
	adapter := kvstore.NewRedis(cfg.RedisAddr(), cfg.RedisDB)
	client := broker.New(adapter, cfg, self, zerolog.Nop())
	return client, self, cfg, func() { adapter.Close() }, nil
}
