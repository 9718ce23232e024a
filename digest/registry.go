package digest

import (
	"errors"
	"fmt"
	"maps"
)

var ErrUnknownAlg = errors.New("unknown digest algorithm")

// AlgorithmRegistry resolves algorithm names (as found in inventories and
// config files) to their [Algorithm] implementation. The zero value is an
// empty registry; use [DefaultRegistry] for one seeded with the built-ins.
type AlgorithmRegistry map[string]Algorithm

// DefaultRegistry returns a new registry with the built-in algorithms: sha512,
// sha256, sha1, md5, the blake2b variants, sha512/256, and size.
func DefaultRegistry() AlgorithmRegistry {
	return AlgorithmRegistry{}.Append(
		SHA512, SHA256, SHA1, MD5, BLAKE2B,
		BLAKE2B_160, BLAKE2B_256, BLAKE2B_384, SHA512_256, SIZE,
	)
}

// Append returns a new registry with algs added to r, leaving r unmodified.
func (r AlgorithmRegistry) Append(algs ...Algorithm) AlgorithmRegistry {
	next := make(AlgorithmRegistry, len(r)+len(algs))
	maps.Copy(next, r)
	for _, a := range algs {
		next[a.ID()] = a
	}
	return next
}

// All returns every algorithm registered in r, in no particular order.
func (r AlgorithmRegistry) All() []Algorithm {
	algs := make([]Algorithm, 0, len(r))
	for _, a := range r {
		algs = append(algs, a)
	}
	return algs
}

// IDs returns the ids of every algorithm registered in r, in no particular
// order.
func (r AlgorithmRegistry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of algorithms in r.
func (r AlgorithmRegistry) Len() int { return len(r) }

// Get returns the registered Algorithm for id.
func (r AlgorithmRegistry) Get(id string) (Algorithm, error) {
	alg, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlg, id)
	}
	return alg, nil
}

// MustGet is like Get, but panics if id isn't registered.
func (r AlgorithmRegistry) MustGet(id string) Algorithm {
	alg, err := r.Get(id)
	if err != nil {
		panic(err)
	}
	return alg
}

// GetAny returns the Algorithm for each id in ids that is registered. Unknown
// ids are silently skipped.
func (r AlgorithmRegistry) GetAny(ids ...string) []Algorithm {
	algs := make([]Algorithm, 0, len(ids))
	for _, id := range ids {
		if alg, ok := r[id]; ok {
			algs = append(algs, alg)
		}
	}
	return algs
}

// NewDigester returns a new Digester for the algorithm registered under id.
func (r AlgorithmRegistry) NewDigester(id string) (Digester, error) {
	alg, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return alg.Digester(), nil
}

// NewMultiDigester returns a new MultiDigester for the algorithms registered
// under algIDs. Unknown ids are silently skipped.
func (r AlgorithmRegistry) NewMultiDigester(algIDs ...string) *MultiDigester {
	return NewMultiDigester(r.GetAny(algIDs...)...)
}
