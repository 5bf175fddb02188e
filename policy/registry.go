package policy

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a Policy from its configuration.
type Factory func(cfg Config) (Policy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a policy constructor available under the given algorithm
// identifier. It panics on duplicate registration, which indicates a
// programming error at init time.
//
// Parameters:
//   - algorithm: Identifier used on the command line (e.g. "random")
//   - factory: Constructor for the policy
func Register(algorithm string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[algorithm]; exists {
		panic(fmt.Sprintf("policy: algorithm %q registered twice", algorithm))
	}
	registry[algorithm] = factory
}

// New constructs the policy registered under the given algorithm identifier.
//
// Parameters:
//   - algorithm: The registered identifier
//   - cfg: Configuration passed to the policy's constructor
//
// Returns:
//   - The constructed Policy
//   - An error naming the known algorithms if the identifier is unknown
func New(algorithm string, cfg Config) (Policy, error) {
	registryMu.RLock()
	factory, ok := registry[algorithm]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("policy: unknown algorithm %q (have %v)", algorithm, Algorithms())
	}
	return factory(cfg)
}

// Algorithms returns the registered algorithm identifiers in sorted order.
func Algorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
