package workflow

import (
	"fmt"
)

// GuardFunc evaluates whether a forward move is enabled for the given state
type GuardFunc func(s State) bool

// RouteBuilder builds the table of forward moves between steps
type RouteBuilder interface {
	// Configure returns the route configuration for the given step
	Configure(step Step) RouteConfiguration

	// Build freezes the configured routes
	Build() *Routes
}

// RouteConfiguration configures forward moves out of one step
type RouteConfiguration interface {
	// Permit allows moving to the target step unconditionally
	Permit(target Step) RouteConfiguration

	// PermitIf allows moving to the target step when the guard passes
	PermitIf(target Step, guard GuardFunc) RouteConfiguration
}

// route is a forward move with an optional guard
type route struct {
	target Step
	guard  GuardFunc
}

// routeConfig implements RouteConfiguration
type routeConfig struct {
	from   Step
	routes []route
}

// routeBuilder implements RouteBuilder
type routeBuilder struct {
	configurations map[Step]*routeConfig
}

// Routes is an immutable route table
type Routes struct {
	configurations map[Step][]route
}

// NewRouteBuilder creates a new route builder
func NewRouteBuilder() RouteBuilder {
	return &routeBuilder{
		configurations: make(map[Step]*routeConfig),
	}
}

// Configure returns the route configuration for the given step
func (b *routeBuilder) Configure(step Step) RouteConfiguration {
	if !step.IsValid() {
		panic(fmt.Sprintf("invalid step: %s", step))
	}

	config, exists := b.configurations[step]
	if !exists {
		config = &routeConfig{from: step}
		b.configurations[step] = config
	}

	return config
}

// Build copies the configuration so later Configure calls do not leak in
func (b *routeBuilder) Build() *Routes {
	configs := make(map[Step][]route, len(b.configurations))
	for step, config := range b.configurations {
		configs[step] = append([]route{}, config.routes...)
	}

	return &Routes{configurations: configs}
}

// Permit allows moving to the target step unconditionally
func (c *routeConfig) Permit(target Step) RouteConfiguration {
	return c.PermitIf(target, nil)
}

// PermitIf allows moving to the target step when the guard passes
func (c *routeConfig) PermitIf(target Step, guard GuardFunc) RouteConfiguration {
	if !target.IsValid() {
		panic(fmt.Sprintf("invalid target step: %s", target))
	}

	c.routes = append(c.routes, route{target: target, guard: guard})
	return c
}

// Targets returns every configured destination from a step, guarded or not
func (r *Routes) Targets(from Step) []Step {
	routes := r.configurations[from]
	targets := make([]Step, 0, len(routes))
	for _, rt := range routes {
		targets = append(targets, rt.target)
	}
	return targets
}

// CanEnter reports whether the state may move forward to target
func (r *Routes) CanEnter(s State, target Step) bool {
	for _, rt := range r.configurations[s.Step] {
		if rt.target != target {
			continue
		}
		if rt.guard == nil || rt.guard(s) {
			return true
		}
	}
	return false
}

// Permitted returns the enabled destinations from the current step in
// configuration order
func (r *Routes) Permitted(s State) []Step {
	routes := r.configurations[s.Step]
	permitted := make([]Step, 0, len(routes))
	for _, rt := range routes {
		if rt.guard == nil || rt.guard(s) {
			permitted = append(permitted, rt.target)
		}
	}
	return permitted
}

// Check returns nil when the move is enabled, otherwise an error naming it
func (r *Routes) Check(s State, target Step) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStep, target)
	}
	if !r.CanEnter(s, target) {
		return fmt.Errorf("%w: %s -> %s", ErrRouteNotPermitted, s.Step, target)
	}
	return nil
}
