//go:build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/navidrome/goupnp-core/internal/config"
	"github.com/navidrome/goupnp-core/upnp"
)

// InitializeService is the wire injector for the CLI's serve command.
// wire_gen.go holds its generated counterpart; this file only
// describes the dependency graph and is excluded from normal builds
// by the wireinject tag.
func InitializeService(cfg config.Config) (*upnp.Service, error) {
	wire.Build(upnp.New)
	return nil, nil
}
