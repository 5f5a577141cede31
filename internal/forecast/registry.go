package forecast

import (
	"fmt"
	"sort"
)

var registry = map[string]func() Forecaster{
	"logistic": func() Forecaster { return NewLogistic(DefaultLogisticConfig()) },
	"majority": func() Forecaster { return Majority{} },
}

// New returns the forecaster registered under name
func New(name string) (Forecaster, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered models
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
