//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/rigidbody/internal/config"
)

func InitializeSimulation(cfg config.Config) (*Simulation, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideBackend,
		ProvideBus,
		ProvideScene,
		ProvideStream,
		ProvideReplay,
		wire.Struct(new(Simulation), "*"),
	)
	return nil, nil, nil
}
