// Package config holds the runtime configuration the packet core reads:
// the physics toggles and grid-type selection plus the numerical
// tolerances, loaded from an INI-style file with gopkg.in/gcfg.v1.
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	"github.com/sedna-rt/rpkt/model"
)

// CoreConfig holds the [Core] section of a run's configuration file.
type CoreConfig struct {
	// Required
	GridType string

	// Optional, with sensible defaults applied by Default().
	UseRelativisticDopplerShift bool
	SeparateStimRecomb          bool
	DetailedLineEstimatorsOn    bool

	OpacityCacheRelTol   float64
	UnitVectorTol        float64
	NegativeLineDepthTol float64
	NegativeDistTolCM    float64
	MaxPathStepCM        float64
	Workers              int
}

// Wrapper is the gcfg root document: a single [Core] section.
type Wrapper struct {
	Core CoreConfig
}

// Default returns a configuration usable without a configuration file.
func Default() *Wrapper {
	return &Wrapper{Core: CoreConfig{
		GridType:                    "UNIFORM_3D_CARTESIAN",
		UseRelativisticDopplerShift: true,
		SeparateStimRecomb:          false,
		DetailedLineEstimatorsOn:    false,
		OpacityCacheRelTol:          1e-4,
		UnitVectorTol:               1e-8,
		NegativeLineDepthTol:        0,
		NegativeDistTolCM:           100,
		MaxPathStepCM:               1e99,
		Workers:                     1,
	}}
}

// ReadFile loads a configuration file into a copy of Default(), the way
// render/main/main.go seeds its wrapper before calling gcfg.ReadFileInto.
func ReadFile(path string) (*Wrapper, error) {
	w := Default()
	if err := gcfg.ReadFileInto(w, path); err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if !w.Core.ValidGridType() {
		return nil, fmt.Errorf("config: invalid GridType %q", w.Core.GridType)
	}
	return w, nil
}

// ValidGridType reports whether GridType names a grid topology this core
// understands.
func (c *CoreConfig) ValidGridType() bool {
	_, ok := c.GridKind()
	return ok
}

// GridKind maps the configured grid-type string onto model.GridType.
func (c *CoreConfig) GridKind() (model.GridType, bool) {
	switch c.GridType {
	case "UNIFORM_3D_CARTESIAN":
		return model.Uniform3DCartesian, true
	case "SPHERICAL_1D":
		return model.Spherical1D, true
	default:
		return 0, false
	}
}
