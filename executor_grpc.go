// executor_grpc.go: out-of-process execution of package extensions over gRPC
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// packageExecuteMethod is the single service method every extension
// process exposes. Requests and responses travel as protobuf-encoded
// structpb.Struct envelopes.
const packageExecuteMethod = "/goextensions.ExtensionService/Execute"

// maxInvocationMsgSize bounds request and response payloads (4MB).
const maxInvocationMsgSize = 4 * 1024 * 1024

// GRPCExecutorConfig configures the gRPC package executor.
type GRPCExecutorConfig struct {
	// SocketDir is the directory holding one unix domain socket per
	// installed extension package, named <package>.sock.
	SocketDir string `json:"socket_dir" yaml:"socket_dir"`

	// EndpointFor overrides socket resolution. When set it takes
	// precedence over SocketDir.
	EndpointFor func(desc *ExtensionDescriptor) string `json:"-" yaml:"-"`
}

// GRPCPackageExecutor runs package extension functions in the extension's
// own process over gRPC. Connections are created lazily, cached per
// extension id, and torn down on UnbindAll. Every failure mode is folded
// into the returned result.
type GRPCPackageExecutor struct {
	config GRPCExecutorConfig
	logger Logger

	mutex       sync.Mutex
	connections map[string]*grpc.ClientConn
}

// NewGRPCPackageExecutor creates an executor. A nil logger falls back to
// the no-op logger.
func NewGRPCPackageExecutor(config GRPCExecutorConfig, logger Logger) *GRPCPackageExecutor {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &GRPCPackageExecutor{
		config:      config,
		logger:      logger,
		connections: make(map[string]*grpc.ClientConn),
	}
}

// Execute implements PackageExecutor.
func (e *GRPCPackageExecutor) Execute(ctx context.Context, desc *ExtensionDescriptor, function string, params map[string]any, timeout time.Duration) ExtensionResult {
	conn, err := e.connectionFor(desc)
	if err != nil {
		e.logger.Error("Failed to reach extension process",
			"extension", desc.ID, "error", err)
		return Errorf(fmt.Sprintf("extension %s is unreachable: %v", desc.ID, err))
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	invocationID := uuid.NewString()
	ctx = metadata.NewOutgoingContext(ctx, metadata.Pairs(
		"x-invocation-id", invocationID,
		"x-extension-id", desc.ID,
	))

	requestBytes, err := encodeInvocation(function, invocationID, params)
	if err != nil {
		return Errorf(fmt.Sprintf("invalid parameters for %s: %v", function, err))
	}

	e.logger.Debug("Invoking package extension function",
		"extension", desc.ID, "function", function, "invocation", invocationID)

	var responseBytes []byte
	err = conn.Invoke(ctx, packageExecuteMethod, requestBytes, &responseBytes, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		return e.resultFromInvokeError(desc, function, err)
	}

	result, err := decodeInvocationResult(responseBytes)
	if err != nil {
		e.logger.Error("Malformed response from extension process",
			"extension", desc.ID, "function", function, "error", err)
		return Errorf(fmt.Sprintf("malformed response from extension %s: %v", desc.ID, err))
	}
	return result
}

// UnbindAll implements PackageExecutor. In-flight invocations are not
// drained; their connections fail and fold into error results.
func (e *GRPCPackageExecutor) UnbindAll() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for id, conn := range e.connections {
		if err := conn.Close(); err != nil {
			e.logger.Warn("Failed to close extension connection",
				"extension", id, "error", err)
		}
		delete(e.connections, id)
	}
}

// connectionFor returns the cached connection for the extension,
// establishing it on first use.
func (e *GRPCPackageExecutor) connectionFor(desc *ExtensionDescriptor) (*grpc.ClientConn, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if conn, ok := e.connections[desc.ID]; ok {
		return conn, nil
	}

	endpoint := e.endpointFor(desc)
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxInvocationMsgSize),
			grpc.MaxCallSendMsgSize(maxInvocationMsgSize),
		),
	)
	if err != nil {
		return nil, NewTransportError("failed to create extension channel", err)
	}

	e.connections[desc.ID] = conn
	e.logger.Info("Extension channel established",
		"extension", desc.ID, "endpoint", endpoint)
	return conn, nil
}

func (e *GRPCPackageExecutor) endpointFor(desc *ExtensionDescriptor) string {
	if e.config.EndpointFor != nil {
		return e.config.EndpointFor(desc)
	}
	return "unix://" + filepath.Join(e.config.SocketDir, desc.Package+".sock")
}

// resultFromInvokeError maps a gRPC failure onto a result. Deadline
// expiry and permission refusals keep their meaning; everything else is
// a plain error result.
func (e *GRPCPackageExecutor) resultFromInvokeError(desc *ExtensionDescriptor, function string, err error) ExtensionResult {
	grpcStatus, ok := status.FromError(err)
	if !ok {
		return Errorf(fmt.Sprintf("transport failure invoking %s on %s: %v", function, desc.ID, err))
	}

	switch grpcStatus.Code() {
	case codes.DeadlineExceeded:
		return Errorf(fmt.Sprintf("execution of %s on %s timed out", function, desc.ID))
	case codes.PermissionDenied:
		return PermissionDenied(grpcStatus.Message())
	case codes.Unavailable:
		e.logger.Warn("Extension process unavailable", "extension", desc.ID)
		return Errorf(fmt.Sprintf("extension %s is unavailable: %s", desc.ID, grpcStatus.Message()))
	default:
		return Errorf(fmt.Sprintf("execution of %s on %s failed: %s", function, desc.ID, grpcStatus.Message()))
	}
}

// encodeInvocation builds the protobuf request envelope. Parameters must
// be JSON-compatible values; anything else fails encoding.
func encodeInvocation(function, invocationID string, params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	envelope, err := structpb.NewStruct(map[string]any{
		"function":      function,
		"invocation_id": invocationID,
		"params":        params,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(envelope)
}

// decodeInvocationResult decodes the protobuf response envelope into a
// result. Missing or unknown kinds are treated as malformed.
func decodeInvocationResult(data []byte) (ExtensionResult, error) {
	envelope := &structpb.Struct{}
	if err := proto.Unmarshal(data, envelope); err != nil {
		return ExtensionResult{}, err
	}

	fields := envelope.AsMap()
	kind, _ := fields["kind"].(string)
	message, _ := fields["message"].(string)

	switch ResultKind(kind) {
	case ResultSuccess:
		return Success(fields["payload"]), nil
	case ResultError:
		return Errorf(message), nil
	case ResultPermissionDenied:
		return PermissionDenied(message), nil
	case ResultApprovalRequired:
		return ApprovalRequired(message), nil
	default:
		return ExtensionResult{}, fmt.Errorf("unknown result kind %q", kind)
	}
}

// rawCodec passes pre-encoded bytes through the gRPC stack unchanged.
// proto.Message values are still accepted for callers that marshal at
// the call site.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch value := v.(type) {
	case []byte:
		return value, nil
	case proto.Message:
		return proto.Marshal(value)
	default:
		return nil, fmt.Errorf("rawCodec: unsupported message type %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	switch value := v.(type) {
	case *[]byte:
		*value = data
		return nil
	case proto.Message:
		return proto.Unmarshal(data, value)
	default:
		return fmt.Errorf("rawCodec: unsupported message type %T", v)
	}
}

func (rawCodec) Name() string { return "raw" }
