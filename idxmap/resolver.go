package idxmap

import (
	"context"

	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/log"
	"github.com/harborx/harborx/metrics"
	"github.com/harborx/harborx/statediff"
)

// Resolver replaces surrogates with their literal values. Lookup failures
// of any kind leave the surrogate unchanged; they are logged, never
// returned.
type Resolver struct {
	store  Store
	policy Policy
	logger *log.Logger
}

var _ statediff.Resolver = (*Resolver)(nil)

// NewResolver returns a resolver over store. A nil store resolves nothing, a
// nil policy means DefaultPolicy and a nil logger means the default logger.
func NewResolver(store Store, policy Policy, logger *log.Logger) *Resolver {
	if policy == nil {
		policy = DefaultPolicy
	}
	if logger == nil {
		logger = log.Default().Module("idxmap")
	}
	return &Resolver{store: store, policy: policy, logger: logger}
}

// Resolve returns a copy of values with every surrogate found in the store
// replaced by its literal. Surrogates are looked up in one batch.
func (r *Resolver) Resolve(ctx context.Context, values []das.Felt) []das.Felt {
	out := make([]das.Felt, len(values))
	copy(out, values)

	var surrogates []das.Felt
	seen := make(map[das.Felt]struct{})
	literals := 0
	for _, v := range values {
		if r.policy.IsLiteral(v) {
			literals++
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			surrogates = append(surrogates, v)
		}
	}
	metrics.IdxLiterals.Add(float64(literals))
	if len(surrogates) == 0 {
		return out
	}

	var found map[das.Felt]das.Felt
	if r.store != nil {
		var err error
		found, err = r.store.GetMany(ctx, surrogates)
		if err != nil {
			metrics.IdxStoreErrors.Inc()
			r.logger.Warn("Index lookup failed, passing surrogates through", "keys", len(surrogates), "err", err)
			found = nil
		}
	}

	resolved, misses := 0, 0
	for i, v := range out {
		if r.policy.IsLiteral(v) {
			continue
		}
		if lit, ok := found[v]; ok {
			out[i] = lit
			resolved++
		} else {
			misses++
		}
	}
	metrics.IdxResolved.Add(float64(resolved))
	metrics.IdxMisses.Add(float64(misses))
	r.logger.Debug("Resolved surrogates", "unique", len(surrogates), "resolved", resolved, "missed", misses)
	return out
}
