package isolation

import (
	"context"
	"fmt"
	"log/slog"
	"plugin"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// RegisterSymbol is the symbol a function plugin exports.
const RegisterSymbol = "RegisterFunctions"

// Loader opens function plugins inside a scope.
type Loader struct {
	scope  *Scope
	logger *slog.Logger
}

// NewLoader creates a loader bound to scope
func NewLoader(scope *Scope, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{scope: scope, logger: logger}
}

// Load verifies the artifact at path, opens it and runs its RegisterFunctions
// symbol against registrar inside the scope.
func (l *Loader) Load(ctx context.Context, path string, registrar functions.Registrar) error {
	if err := l.scope.CheckArtifact(path); err != nil {
		return err
	}
	if err := CheckDependencies(path); err != nil {
		return err
	}

	p, err := plugin.Open(path)
	if err != nil {
		return errors.WrapFatal(err, "Loader", "Load", "open plugin")
	}
	sym, err := p.Lookup(RegisterSymbol)
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "Load", "lookup "+RegisterSymbol)
	}

	register, err := asRegisterFunc(sym)
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "Load", "check "+RegisterSymbol+" signature")
	}

	err = l.scope.Run(ctx, RegisterSymbol, func(context.Context) error {
		return register(registrar)
	})
	if err != nil {
		return errors.WrapFatal(err, "Loader", "Load", "register functions")
	}

	l.logger.Info("Loaded function plugin", "path", path)
	return nil
}

func asRegisterFunc(sym any) (functions.RegisterFunc, error) {
	switch fn := sym.(type) {
	case func(functions.Registrar) error:
		return fn, nil
	case functions.RegisterFunc:
		return fn, nil
	case *functions.RegisterFunc:
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, fmt.Errorf("%s has type %T, want func(functions.Registrar) error", RegisterSymbol, sym)
}
