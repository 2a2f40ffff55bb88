// registry.go: Bidirectional extension and function-name index
//
// This file implements the engine's registry: extension-id to descriptor,
// and function-name to owning extension-id. Every operation is serialized
// under one lock so a reader can never observe a partially updated index.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sync"
)

// ExtensionRegistry indexes registered extensions and their functions.
//
// Invariants:
//   - extension-id is unique; re-registering an id replaces the descriptor
//     and removes the previous version's function entries before indexing
//     the new ones, so stale entries can never leak
//   - a function name maps to at most one owning extension; when two
//     extensions declare the same name the most recently registered one
//     wins (documented last-write-wins behavior)
//
// The registry hands out descriptor clones: callers never share mutable
// state with the index.
type ExtensionRegistry struct {
	mutex      sync.RWMutex
	extensions map[string]*ExtensionDescriptor
	functions  map[string]string // function name -> owning extension id
	logger     Logger
}

// NewExtensionRegistry creates an empty registry.
func NewExtensionRegistry(logger Logger) *ExtensionRegistry {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &ExtensionRegistry{
		extensions: make(map[string]*ExtensionDescriptor),
		functions:  make(map[string]string),
		logger:     logger,
	}
}

// Register installs or replaces a descriptor. The previous version's
// function-name entries are removed first, even when the new descriptor
// declares zero functions.
func (r *ExtensionRegistry) Register(desc *ExtensionDescriptor) error {
	if desc == nil || desc.ID == "" {
		return NewInvalidDescriptorError("descriptor must have a non-empty id")
	}

	stored := desc.Clone()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if previous, exists := r.extensions[desc.ID]; exists {
		r.removeFunctionEntries(previous)
	}

	r.extensions[stored.ID] = stored
	for _, fn := range stored.Functions {
		r.functions[fn.Name] = stored.ID
	}

	r.logger.Debug("Extension registered",
		"extension_id", stored.ID,
		"type", stored.Type.String(),
		"version", stored.Version,
		"functions", len(stored.Functions))

	return nil
}

// Unregister removes the descriptor and its function entries atomically
// with respect to other registry operations.
func (r *ExtensionRegistry) Unregister(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	desc, exists := r.extensions[id]
	if !exists {
		return NewExtensionNotFoundError(id)
	}

	r.removeFunctionEntries(desc)
	delete(r.extensions, id)

	r.logger.Debug("Extension unregistered", "extension_id", id)
	return nil
}

// removeFunctionEntries drops the function-index entries owned by the given
// descriptor. Entries claimed since by a different extension are left alone.
// Caller must hold the write lock.
func (r *ExtensionRegistry) removeFunctionEntries(desc *ExtensionDescriptor) {
	for _, fn := range desc.Functions {
		if owner, ok := r.functions[fn.Name]; ok && owner == desc.ID {
			delete(r.functions, fn.Name)
		}
	}
}

// GetExtension returns a clone of the descriptor for the given id, or nil.
func (r *ExtensionRegistry) GetExtension(id string) *ExtensionDescriptor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.extensions[id].Clone()
}

// FindExtensionForFunction resolves the owning descriptor through the
// reverse index, or nil when no registered extension provides the function.
func (r *ExtensionRegistry) FindExtensionForFunction(name string) *ExtensionDescriptor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.functions[name]
	if !ok {
		return nil
	}
	return r.extensions[id].Clone()
}

// GetAll returns clones of every registered descriptor.
func (r *ExtensionRegistry) GetAll() []*ExtensionDescriptor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make([]*ExtensionDescriptor, 0, len(r.extensions))
	for _, desc := range r.extensions {
		all = append(all, desc.Clone())
	}
	return all
}

// GetFunctions returns the function declarations of the given extension.
func (r *ExtensionRegistry) GetFunctions(id string) []ExtensionFunction {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	desc, exists := r.extensions[id]
	if !exists {
		return nil
	}
	functions := make([]ExtensionFunction, len(desc.Functions))
	copy(functions, desc.Functions)
	return functions
}

// HasFunction reports whether any registered extension owns the function.
func (r *ExtensionRegistry) HasFunction(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.functions[name]
	return ok
}

// Size returns the number of registered extensions.
func (r *ExtensionRegistry) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.extensions)
}

// Clear drops every descriptor and function entry.
func (r *ExtensionRegistry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.extensions = make(map[string]*ExtensionDescriptor)
	r.functions = make(map[string]string)
}
