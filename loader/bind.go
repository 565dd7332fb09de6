package loader

import (
	scpload "github.com/scpkg/scpload"
	"github.com/scpkg/scpload/errors"
)

// bind is the single point of cross-module resolution: it checks every
// dependency against the registry, validates signatures, and computes
// the absolute entry address for each function from the mapped base
// plus its declared offset. Called under the registry write lock so the
// dependency check, symbol collision check, and the caller's insert are
// one atomic step. replacing is non-nil during hot reload; its exported
// names are about to be swapped out and do not count as collisions.
func (ld *Loader) bind(mod *Module, replacing *Module) error {
	img := mod.img

	for _, dep := range img.Dependencies {
		found, ok := ld.modules[dep.Name]
		if !ok {
			return errors.DependencyMissing(dep.Name, dep.RequiredVersion)
		}
		if found.version < dep.RequiredVersion {
			return errors.VersionUnmet(dep.Name, dep.RequiredVersion, found.version)
		}
	}

	if err := checkSignatures(img); err != nil {
		return err
	}

	mod.funcs = make(map[string]*FunctionRef, len(img.Functions))
	for i := range img.Functions {
		fn := &img.Functions[i]

		if existing, ok := ld.symbols[fn.Name]; ok && existing.mod != replacing {
			return errors.New(errors.PhaseBind, errors.KindDuplicateSymbol).
				Path(fn.Name).
				Detail("already exported by module %q", existing.mod.name).
				Build()
		}

		addr, err := mod.region.Addr(fn.EntryOffset)
		if err != nil {
			return err
		}
		mod.funcs[fn.Name] = &FunctionRef{
			mod:   mod,
			entry: fn,
			site: scpload.CallSite{
				Addr:       addr,
				Params:     fn.Params,
				Return:     fn.Return,
				Convention: img.Header.CallConv,
			},
		}
	}
	return nil
}
