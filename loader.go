// loader.go: in-process loading and execution of code extensions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HostServices is the host facade handed to a code extension during
// initialization.
type HostServices struct {
	Logger Logger
}

// CodeExtensionInstance is the contract every in-process extension
// implements. Instances live from a successful Initialize until Destroy;
// both hooks run exactly once per instance.
type CodeExtensionInstance interface {
	// Initialize prepares the instance. A returned error aborts the load
	// and the instance is discarded without a Destroy call.
	Initialize(ctx context.Context, host HostServices) error

	// Functions lists the functions this instance exposes. Called once
	// after a successful Initialize to enrich the discovery descriptor.
	Functions() []ExtensionFunction

	// Execute runs one function. Panics are recovered by the loader and
	// folded into an error result.
	Execute(ctx context.Context, function string, params map[string]any) ExtensionResult

	// Destroy releases the instance's resources.
	Destroy() error
}

// CodeExtensionFactory constructs a fresh extension instance.
type CodeExtensionFactory func() CodeExtensionInstance

var (
	factoriesMutex sync.RWMutex
	factories      = make(map[string]CodeExtensionFactory)
)

// RegisterCodeExtension makes a code extension implementation available
// under its fully-qualified class name, typically from an init function
// of the package providing it. Registering a nil factory or the same
// name twice panics.
func RegisterCodeExtension(className string, factory CodeExtensionFactory) {
	factoriesMutex.Lock()
	defer factoriesMutex.Unlock()

	if factory == nil {
		panic("goextensions: RegisterCodeExtension factory is nil")
	}
	if _, dup := factories[className]; dup {
		panic("goextensions: RegisterCodeExtension called twice for " + className)
	}
	factories[className] = factory
}

// RegisteredCodeExtensions returns the sorted class names with a
// registered factory.
func RegisteredCodeExtensions() []string {
	factoriesMutex.RLock()
	defer factoriesMutex.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func factoryFor(className string) CodeExtensionFactory {
	factoriesMutex.RLock()
	defer factoriesMutex.RUnlock()
	return factories[className]
}

// loadedExtension pairs a live instance with its enriched descriptor.
type loadedExtension struct {
	instance   CodeExtensionInstance
	descriptor *ExtensionDescriptor
}

// CodeExtensionLoader implements ArtifactLoader on top of the factory
// registry: descriptors discovered by filename convention are bound to
// in-process implementations by entry class name.
type CodeExtensionLoader struct {
	host   HostServices
	logger Logger

	mutex  sync.Mutex
	loaded map[string]*loadedExtension
}

// NewCodeExtensionLoader creates a loader. A nil logger falls back to
// the no-op logger.
func NewCodeExtensionLoader(logger Logger) *CodeExtensionLoader {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &CodeExtensionLoader{
		host:   HostServices{Logger: logger},
		logger: logger,
		loaded: make(map[string]*loadedExtension),
	}
}

// Load implements ArtifactLoader. An entry class with no registered
// factory yields (nil, nil); an already loaded id returns its existing
// enriched descriptor without re-initializing.
func (l *CodeExtensionLoader) Load(ctx context.Context, desc *ExtensionDescriptor) (*ExtensionDescriptor, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if existing, ok := l.loaded[desc.ID]; ok {
		return existing.descriptor.Clone(), nil
	}

	factory := factoryFor(desc.EntryClass)
	if factory == nil {
		l.logger.Debug("No implementation registered for code extension",
			"extension", desc.ID, "class", desc.EntryClass)
		return nil, nil
	}

	instance, err := l.initialize(ctx, desc, factory)
	if err != nil {
		return nil, err
	}

	enriched := desc.Clone()
	if functions := instance.Functions(); len(functions) > 0 {
		enriched.Functions = functions
	}

	l.loaded[desc.ID] = &loadedExtension{instance: instance, descriptor: enriched}
	l.logger.Info("Code extension loaded",
		"extension", desc.ID, "functions", len(enriched.Functions))
	return enriched.Clone(), nil
}

// initialize constructs the instance and runs its Initialize hook with
// panic containment.
func (l *CodeExtensionLoader) initialize(ctx context.Context, desc *ExtensionDescriptor, factory CodeExtensionFactory) (instance CodeExtensionInstance, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = NewInitializeFailedError(desc.ID, fmt.Errorf("panic during initialization: %v", r))
		}
	}()

	instance = factory()
	if instance == nil {
		return nil, NewLoaderError(desc.ID, "factory returned nil instance", nil)
	}
	if initErr := instance.Initialize(ctx, l.host); initErr != nil {
		return nil, NewInitializeFailedError(desc.ID, initErr)
	}
	return instance, nil
}

// IsLoaded implements ArtifactLoader.
func (l *CodeExtensionLoader) IsLoaded(id string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	_, ok := l.loaded[id]
	return ok
}

// LoadedCount returns the number of live instances.
func (l *CodeExtensionLoader) LoadedCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.loaded)
}

// Execute implements ArtifactLoader. The function runs on its own
// goroutine so an expired timeout returns promptly even if the extension
// does not honor context cancellation.
func (l *CodeExtensionLoader) Execute(ctx context.Context, desc *ExtensionDescriptor, function string, params map[string]any, timeout time.Duration) ExtensionResult {
	l.mutex.Lock()
	entry, ok := l.loaded[desc.ID]
	l.mutex.Unlock()
	if !ok {
		return Errorf(fmt.Sprintf("extension %s is not loaded", desc.ID))
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(chan ExtensionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("Code extension panicked",
					"extension", desc.ID, "function", function, "panic", r)
				results <- Errorf(fmt.Sprintf("extension %s panicked while executing %s: %v", desc.ID, function, r))
			}
		}()
		results <- entry.instance.Execute(ctx, function, params)
	}()

	select {
	case result := <-results:
		return result
	case <-ctx.Done():
		l.logger.Warn("Code extension execution timed out",
			"extension", desc.ID, "function", function, "timeout", timeout)
		return Errorf(fmt.Sprintf("execution of %s on %s timed out", function, desc.ID))
	}
}

// UnloadAll implements ArtifactLoader. Destroy runs exactly once per
// instance; a panicking or failing Destroy is logged and does not stop
// the teardown of the remaining instances.
func (l *CodeExtensionLoader) UnloadAll() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for id, entry := range l.loaded {
		l.destroy(id, entry.instance)
		delete(l.loaded, id)
	}
}

func (l *CodeExtensionLoader) destroy(id string, instance CodeExtensionInstance) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Code extension panicked during teardown",
				"extension", id, "panic", r)
		}
	}()

	if err := instance.Destroy(); err != nil {
		l.logger.Warn("Code extension teardown failed", "extension", id, "error", err)
	}
}
