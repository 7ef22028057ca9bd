package hooks

import "fmt"

// Factory builds the hooks registered under a name, from a raw
// configuration string (the value following ":" in GATEWAY_HOOK_MODULE,
// or empty). Factories are registered at init() time by the package that
// implements a concrete hook, replacing the source's "module.path:factory"
// dynamic import with a compiled-in name lookup.
type Factory func(config string) ([]any, error)

var factories = make(map[string]Factory)

// Register associates name with factory. Intended to be called from an
// init() function in the package implementing a concrete hook set.
// Registering the same name twice panics, since it indicates a build-time
// configuration mistake rather than a runtime condition to recover from.
func Register(name string, factory Factory) {
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("hooks: factory %q already registered", name))
	}
	factories[name] = factory
}

// Build resolves name against the compiled-in factory registry and invokes
// it with config. Returns an error if no factory was registered under name.
func Build(name, config string) ([]any, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("hooks: no factory registered under %q", name)
	}
	return factory(config)
}

// Registered reports whether a factory exists under name, letting callers
// validate GATEWAY_HOOK_MODULE at startup before entering the serving loop.
func Registered(name string) bool {
	_, ok := factories[name]
	return ok
}
