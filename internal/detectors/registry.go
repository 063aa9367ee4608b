package detectors

import (
	"fmt"
)

// Entry pairs a detector with its base voting weight.
type Entry struct {
	Detector Detector
	Weight   float64
}

// Registry maps detector names to weighted detectors. Registration order is
// preserved: the engine iterates detectors in this order so evaluation is
// deterministic for a given configuration.
type Registry struct {
	order   []string
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds a detector under its own name. Duplicate names and negative
// weights are configuration errors.
func (r *Registry) Register(d Detector, weight float64) error {
	name := d.GetName()
	if name == "" {
		return fmt.Errorf("detector has empty name")
	}
	if weight < 0 {
		return fmt.Errorf("detector %q has negative weight %f", name, weight)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("detector %q registered twice", name)
	}
	r.order = append(r.order, name)
	r.entries[name] = Entry{Detector: d, Weight: weight}
	return nil
}

// Names returns the detector names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get looks a detector up by name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	return len(r.order)
}

// Subset builds a new registry holding only the named detectors, in the
// given order. Unknown names are configuration errors.
func (r *Registry) Subset(names []string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		entry, ok := r.entries[name]
		if !ok {
			return nil, fmt.Errorf("unknown detector %q", name)
		}
		if err := sub.Register(entry.Detector, entry.Weight); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// SetWeight overrides the weight of a registered detector.
func (r *Registry) SetWeight(name string, weight float64) error {
	entry, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("unknown detector %q", name)
	}
	if weight < 0 {
		return fmt.Errorf("detector %q has negative weight %f", name, weight)
	}
	entry.Weight = weight
	r.entries[name] = entry
	return nil
}

// DefaultWeight is the base vote weight assigned to every detector in the
// reference catalogue.
const DefaultWeight = 1.0

// DefaultRegistry builds the full reference catalogue with default
// parameters and uniform weights.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range Catalogue() {
		// Catalogue names are unique by construction.
		_ = r.Register(d, DefaultWeight)
	}
	return r
}

// Catalogue returns one instance of every detector in the reference
// catalogue, classical family first, then the smart-money family.
func Catalogue() []Detector {
	return []Detector{
		NewRSIMeanReversion(DefaultRSIMeanReversionConfig()),
		NewEMACrossover(DefaultEMACrossoverConfig()),
		NewBollingerBreakout(DefaultBollingerBreakoutConfig()),
		NewMACD(DefaultMACDConfig()),
		NewStochastic(DefaultStochasticConfig()),
		NewWilliamsR(DefaultWilliamsRConfig()),
		NewADX(DefaultADXConfig()),
		NewFibonacci(DefaultFibonacciConfig()),
		NewParabolicSAR(DefaultParabolicSARConfig()),
		NewVWAP(DefaultVWAPConfig()),
		NewCPR(DefaultCPRConfig()),
		NewMARibbon(DefaultMARibbonConfig()),
		NewMomentumCombo(DefaultMomentumComboConfig()),
		NewPivotPoint(DefaultPivotPointConfig()),
		NewBOS(DefaultBOSConfig()),
		NewCHoCH(DefaultCHoCHConfig()),
		NewOrderBlocks(DefaultOrderBlocksConfig()),
		NewFVG(),
		NewLiquiditySweep(DefaultLiquiditySweepConfig()),
	}
}

// KnownNames lists every detector name in the reference catalogue, used to
// validate session configuration before any bar is processed.
func KnownNames() []string {
	catalogue := Catalogue()
	names := make([]string, len(catalogue))
	for i, d := range catalogue {
		names[i] = d.GetName()
	}
	return names
}
