// schema.go: JSON-schema validation of declared function parameters
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateFunctionParams checks the call parameters against the
// function's declared input schema. Declarations are plain JSON-schema
// objects carried in the descriptor; they are compiled per call, which
// keeps a policy of no shared mutable compiler state between concurrent
// invocations.
func validateFunctionParams(fn *ExtensionFunction, params map[string]any) error {
	schemaJSON, err := json.Marshal(fn.InputSchema)
	if err != nil {
		return fmt.Errorf("unusable input schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	url := "inmemory://functions/" + fn.Name
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("unusable input schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("unusable input schema: %w", err)
	}

	// Round-trip through JSON so typed values (ints, structs) become the
	// plain decoded forms the validator expects.
	document, err := normalizeParams(params)
	if err != nil {
		return err
	}

	if err := schema.Validate(document); err != nil {
		return NewSchemaViolationError(fn.Name, err)
	}
	return nil
}

func normalizeParams(params map[string]any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("parameters are not JSON-encodable: %w", err)
	}
	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("parameters are not JSON-encodable: %w", err)
	}
	return document, nil
}
