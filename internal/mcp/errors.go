// Package mcp implements the Model Context Protocol surface:
// tool registration, qmd:// resources, and the stdio/HTTP transports.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmd-dev/qmd/internal/qmderr"
)

// Custom qmd MCP error codes, chosen from the -32000..-32099 "server
// error" range the JSON-RPC spec reserves for application use.
const (
	ErrCodeUnknownIndex      = -32001
	ErrCodeUnknownDocument   = -32002
	ErrCodeModelUnavailable  = -32003
	ErrCodeSessionReleased   = -32004
	ErrCodeIntegrityFailure  = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a qmderr.Error (or any other error) into an MCPError,
// using Kind to pick a JSON-RPC-shaped code.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}

	var qe *qmderr.Error
	if errors.As(err, &qe) {
		return mapQMDError(qe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeInternalError, Message: "request timed out or was cancelled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapQMDError(e *qmderr.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s %s", message, e.Suggestion)
	}

	switch e.Kind {
	case qmderr.KindUsage:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case qmderr.KindState:
		return &MCPError{Code: ErrCodeIntegrityFailure, Message: message}
	case qmderr.KindCancelled:
		if e.Code == qmderr.CodeSessionReleased {
			return &MCPError{Code: ErrCodeSessionReleased, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case qmderr.KindExternal:
		if e.Code == qmderr.CodeModelLoad || e.Code == qmderr.CodeRemoteAPI {
			return &MCPError{Code: ErrCodeModelUnavailable, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	case qmderr.KindFatal:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError builds an MCPError for malformed tool input.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError builds an MCPError for an unresolvable
// qmd:// URI.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeUnknownDocument, Message: fmt.Sprintf("resource %q not found", uri)}
}
