// executor_grpc_test.go: invocation envelope codec and error mapping tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestInvocationEnvelope_RoundTrip(t *testing.T) {
	requestBytes, err := encodeInvocation("weather.today", "inv-1", map[string]any{
		"city": "Rome",
		"days": float64(3),
	})
	require.NoError(t, err)

	envelope := &structpb.Struct{}
	require.NoError(t, proto.Unmarshal(requestBytes, envelope))

	fields := envelope.AsMap()
	assert.Equal(t, "weather.today", fields["function"])
	assert.Equal(t, "inv-1", fields["invocation_id"])
	params, ok := fields["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Rome", params["city"])
}

func TestInvocationEnvelope_NilParams(t *testing.T) {
	requestBytes, err := encodeInvocation("fn", "inv-2", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, requestBytes)
}

func TestInvocationEnvelope_RejectsNonJSONValues(t *testing.T) {
	_, err := encodeInvocation("fn", "inv-3", map[string]any{
		"ch": make(chan int),
	})
	assert.Error(t, err)
}

func TestDecodeInvocationResult(t *testing.T) {
	encode := func(t *testing.T, fields map[string]any) []byte {
		t.Helper()
		envelope, err := structpb.NewStruct(fields)
		require.NoError(t, err)
		data, err := proto.Marshal(envelope)
		require.NoError(t, err)
		return data
	}

	t.Run("success_with_payload", func(t *testing.T) {
		result, err := decodeInvocationResult(encode(t, map[string]any{
			"kind":    "success",
			"payload": map[string]any{"temp": 21.5},
		}))
		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		payload, ok := result.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 21.5, payload["temp"])
	})

	t.Run("permission_denied", func(t *testing.T) {
		result, err := decodeInvocationResult(encode(t, map[string]any{
			"kind":    "permission_denied",
			"message": "missing contacts.read",
		}))
		require.NoError(t, err)
		assert.Equal(t, ResultPermissionDenied, result.Kind)
		assert.Equal(t, "missing contacts.read", result.Message)
	})

	t.Run("approval_required", func(t *testing.T) {
		result, err := decodeInvocationResult(encode(t, map[string]any{
			"kind":    "approval_required",
			"message": "ask the user",
		}))
		require.NoError(t, err)
		assert.Equal(t, ResultApprovalRequired, result.Kind)
	})

	t.Run("unknown_kind_is_malformed", func(t *testing.T) {
		_, err := decodeInvocationResult(encode(t, map[string]any{"kind": "bogus"}))
		assert.Error(t, err)
	})

	t.Run("garbage_bytes_are_malformed", func(t *testing.T) {
		_, err := decodeInvocationResult([]byte{0xff, 0x01, 0x02})
		assert.Error(t, err)
	})
}

func TestRawCodec(t *testing.T) {
	codec := rawCodec{}

	t.Run("bytes_pass_through", func(t *testing.T) {
		data, err := codec.Marshal([]byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, data)

		var out []byte
		require.NoError(t, codec.Unmarshal(data, &out))
		assert.Equal(t, []byte{1, 2, 3}, out)
	})

	t.Run("proto_messages_are_marshaled", func(t *testing.T) {
		envelope, err := structpb.NewStruct(map[string]any{"k": "v"})
		require.NoError(t, err)

		data, err := codec.Marshal(envelope)
		require.NoError(t, err)

		decoded := &structpb.Struct{}
		require.NoError(t, codec.Unmarshal(data, decoded))
		assert.Equal(t, "v", decoded.AsMap()["k"])
	})

	t.Run("unsupported_types_error", func(t *testing.T) {
		_, err := codec.Marshal(42)
		assert.Error(t, err)
		assert.Error(t, codec.Unmarshal(nil, 42))
	})
}

func TestGRPCExecutor_ResultFromInvokeError(t *testing.T) {
	executor := NewGRPCPackageExecutor(GRPCExecutorConfig{SocketDir: "/tmp"}, nil)
	desc := packageDescriptor("com.pkg")

	t.Run("deadline_exceeded_is_timeout_error", func(t *testing.T) {
		result := executor.resultFromInvokeError(desc, "fn", status.Error(codes.DeadlineExceeded, "deadline"))
		assert.Equal(t, ResultError, result.Kind)
		assert.Contains(t, result.Message, "timed out")
	})

	t.Run("permission_denied_keeps_its_meaning", func(t *testing.T) {
		result := executor.resultFromInvokeError(desc, "fn", status.Error(codes.PermissionDenied, "no grant"))
		assert.Equal(t, ResultPermissionDenied, result.Kind)
		assert.Equal(t, "no grant", result.Message)
	})

	t.Run("unavailable_is_error", func(t *testing.T) {
		result := executor.resultFromInvokeError(desc, "fn", status.Error(codes.Unavailable, "gone"))
		assert.Equal(t, ResultError, result.Kind)
		assert.Contains(t, result.Message, "unavailable")
	})

	t.Run("other_codes_are_plain_errors", func(t *testing.T) {
		result := executor.resultFromInvokeError(desc, "fn", status.Error(codes.Internal, "kaput"))
		assert.Equal(t, ResultError, result.Kind)
		assert.Contains(t, result.Message, "kaput")
	})
}

func TestGRPCExecutor_EndpointResolution(t *testing.T) {
	t.Run("default_unix_socket_per_package", func(t *testing.T) {
		executor := NewGRPCPackageExecutor(GRPCExecutorConfig{SocketDir: "/run/ext"}, nil)
		desc := packageDescriptor("com.pkg")
		assert.Equal(t, "unix:///run/ext/com.pkg.sock", executor.endpointFor(desc))
	})

	t.Run("custom_resolver_takes_precedence", func(t *testing.T) {
		executor := NewGRPCPackageExecutor(GRPCExecutorConfig{
			SocketDir: "/run/ext",
			EndpointFor: func(desc *ExtensionDescriptor) string {
				return "dns:///" + desc.Package + ":7070"
			},
		}, nil)
		desc := packageDescriptor("com.pkg")
		assert.Equal(t, "dns:///com.pkg:7070", executor.endpointFor(desc))
	})
}

func TestGRPCExecutor_UnbindAllIdempotent(t *testing.T) {
	executor := NewGRPCPackageExecutor(GRPCExecutorConfig{SocketDir: "/tmp"}, nil)
	executor.UnbindAll()
	executor.UnbindAll()
}
