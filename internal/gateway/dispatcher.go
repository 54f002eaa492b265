package gateway

import (
	"fmt"
	"strings"
	"sync"
)

// Dispatcher maps payment method names to gateways with a default fallback.
type Dispatcher struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
	fallback Gateway
}

// NewDispatcher returns a dispatcher whose fallback is def.
func NewDispatcher(def Gateway) *Dispatcher {
	return &Dispatcher{
		gateways: map[string]Gateway{},
		fallback: def,
	}
}

// Register binds gw to each method name. Names are case-insensitive.
func (d *Dispatcher) Register(gw Gateway, methods ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range methods {
		d.gateways[strings.ToLower(m)] = gw
	}
}

// For returns the gateway for method, falling back to the default.
func (d *Dispatcher) For(method string) (Gateway, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if gw, ok := d.gateways[strings.ToLower(method)]; ok {
		return gw, nil
	}
	if d.fallback == nil {
		return nil, fmt.Errorf("no gateway registered for payment method %q", method)
	}
	return d.fallback, nil
}
