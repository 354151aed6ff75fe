package manifest

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/job"
)

// Declared is a chain built from a manifest entry.
type Declared struct {
	Def   ChainDef
	Chain *chain.Chain
}

// ChainFactory declares a chain over jobs. engine.Engine.Chain satisfies it.
type ChainFactory func(jobs []job.Spec, opts ...chain.Option) *chain.Chain

// Build registers a constructor for every step of m in registry and
// declares the chains through declare. Each step is registered under
// "<chain>/<index>/<unit>" so its display name is the unit name.
func Build(m *Manifest, registry *job.Registry, declare ChainFactory, logger *slog.Logger, opts ...chain.Option) ([]Declared, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Declared, 0, len(m.Chains))
	for _, def := range m.Chains {
		specs := make([]job.Spec, 0, len(def.Jobs))
		for i, step := range def.Jobs {
			mk, ok := builtins[step.Unit]
			if !ok {
				return nil, fmt.Errorf("chain %q job %d: unknown unit %q", def.Name, i, step.Unit)
			}
			newUnit, err := mk(step.With, logger.With(slog.String("chain", def.Name), slog.String("unit", step.Unit)))
			if err != nil {
				return nil, fmt.Errorf("chain %q job %d (%s): %w", def.Name, i, step.Unit, err)
			}

			identifier := def.Name + "/" + strconv.Itoa(i) + "/" + step.Unit
			if err := registry.Register(identifier, func() job.Unit { return newUnit() }); err != nil {
				return nil, err
			}
			specs = append(specs, job.Named(identifier))
		}

		c := declare(specs, opts...)
		if def.Queue != "" {
			c.OnQueue(def.Queue)
		}
		if def.Enqueue != nil {
			c.ShouldEnqueue(*def.Enqueue)
		}
		if d, _ := def.TimeoutDuration(); d > 0 {
			c.Within(d)
		}
		if def.Retries > 0 {
			c.Retries(def.Retries)
		}
		out = append(out, Declared{Def: def, Chain: c})
	}
	return out, nil
}
