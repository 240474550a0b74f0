package store

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"wisp/internal/errors"
	"wisp/internal/vm"
)

// Register installs storeglobals(name) and loadglobals(name) in v. Both
// return the number of globals written or read; a database failure is a
// runtime error in the calling script.
func (s *Store) Register(v *vm.VM) {
	v.Register("storeglobals", func(args []vm.Value) ([]vm.Value, error) {
		name, err := snapshotName("storeglobals", args)
		if err != nil {
			return nil, err
		}
		n, err := s.Save(context.Background(), name, v)
		if err != nil {
			return nil, errors.NewRuntimeError(err.Error())
		}
		return []vm.Value{float64(n)}, nil
	})

	v.Register("loadglobals", func(args []vm.Value) ([]vm.Value, error) {
		name, err := snapshotName("loadglobals", args)
		if err != nil {
			return nil, err
		}
		n, err := s.Load(context.Background(), name, v)
		if pkgerrors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, errors.NewRuntimeError(err.Error())
		}
		return []vm.Value{float64(n)}, nil
	})
}

func snapshotName(fn string, args []vm.Value) (string, error) {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", errors.NewArgumentError(1, fn, "string expected")
}
