package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// Configure runs right after instantiation with the module's raw section.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after Configure:
// defaults, derived state, and service registration on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can check their configuration.
// Validate runs after Provision and must not have side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that open listeners or connections.
// Start is called once every module has been provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that hold resources.
// Stop is called in reverse start order during shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}
