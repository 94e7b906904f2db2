package redisq

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Envelope is the per-job payload stored once at Q.env.J and fetched by
// every worker that pops a chunk for that job, so the chunk itself only
// needs to carry the job ID plus that chunk's own arguments.
type Envelope struct {
	Job string

	// Expr is the opaque, pre-serialized task body.
	Expr []byte

	// Bindings holds the resolved value of every exported symbol, each
	// gob-encoded as an interface value: auto-discovered free variables
	// plus explicit exports, minus NoExport and loop variables. A worker
	// decodes each entry into an
	// interface{}, so every bound value's concrete type must have been
	// passed to gob.Register by both the submitting process and the
	// worker before Submit is called.
	Bindings map[string][]byte

	// Packages lists external packages/modules a worker must load before
	// it can execute Expr.
	Packages []string

	// ReduceEnabled mirrors the job's two-level reduction setting.
	ReduceEnabled bool
	// ReduceName is the registered combine name a worker resolves via
	// RegisterCombine to fold its own chunk locally before the chunk's
	// result is ever pushed to Q.out.J. Empty when reduction is disabled
	// or when the job never registered a name for its combine (an
	// in-process worker can still be handed the function directly without
	// going through the registry).
	ReduceName string
}

// buildEnvelope performs explicit export resolution plus auto-discovery
// (free variables minus NoExport minus LoopVars), both resolved against
// job.Bindings, then unions the registry's process-wide export list. A
// symbol appearing in both the auto-discovered and explicit sets is
// allowed, but logged as a warning. Every resolved name is gob-encoded into
// the envelope. An auto-discovered name with no entry in Bindings is
// skipped; an explicit export with no entry is an error
// (ErrExportNotFound), since there is nothing to ship to the worker for it.
func buildEnvelope[R any](job string, j *Job[R], cfg Config, log zerolog.Logger) (Envelope, error) {
	noExport := toSet(j.NoExport)
	loopVars := toSet(j.LoopVars)

	auto := toSet(nil)
	for _, name := range j.FreeVars {
		if noExport[name] || loopVars[name] {
			continue
		}
		auto[name] = true
	}
	explicit := toSet(nil)
	for _, name := range j.Export {
		explicit[name] = true
	}
	for _, name := range cfg.Export {
		explicit[name] = true
	}

	var overlap []string
	for name := range auto {
		if explicit[name] {
			overlap = append(overlap, name)
		}
	}
	if len(overlap) > 0 {
		log.Warn().Strs("symbols", overlap).Msg("export symbol both auto-discovered and explicitly exported")
	}

	names := toSet(nil)
	for name := range auto {
		names[name] = true
	}
	for name := range explicit {
		names[name] = true
	}

	bindings := make(map[string][]byte, len(names))
	for name := range names {
		val, ok := j.Bindings[name]
		if !ok {
			if !explicit[name] {
				continue
			}
			return Envelope{}, fmt.Errorf("%w: %s", ErrExportNotFound, name)
		}
		// Encoded through a pointer to the interface so gob sends it as an
		// interface value, which a worker can decode into interface{}.
		enc, err := encodeValue(&val)
		if err != nil {
			return Envelope{}, fmt.Errorf("%s: encoding export %q: %w", Namespace, name, err)
		}
		bindings[name] = enc
	}

	reduceName := ""
	if cfg.Reduce.Enabled() {
		reduceName = cfg.Reduce.Name()
	}

	return Envelope{
		Job:           job,
		Expr:          j.Expr,
		Bindings:      bindings,
		Packages:      append([]string(nil), cfg.Packages...),
		ReduceEnabled: cfg.Reduce.Enabled(),
		ReduceName:    reduceName,
	}, nil
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}

// checkEnvelopeSize reports ErrEnvelopeTooLarge when the encoded envelope
// exceeds limit.
func checkEnvelopeSize(encoded []byte, limit int64) error {
	if limit > 0 && int64(len(encoded)) > limit {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrEnvelopeTooLarge, len(encoded), limit)
	}
	return nil
}
