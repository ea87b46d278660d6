// Package mcp exposes the search indexes of a family tree to chat
// assistants as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexUnavailable means the tree's index cannot be opened.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeEmbeddingFailed means the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout means the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an engine error into an MCPError. The message keeps
// the error code and suggestion so the assistant can relay them.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	if ie, ok := gerrors.As(err); ok {
		return mapIndexError(ie)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func mapIndexError(ie *gerrors.IndexError) *MCPError {
	message := ie.Error()
	if ie.Suggestion != "" {
		message += " " + ie.Suggestion
	}

	switch {
	case ie.Code == gerrors.ErrCodeEmbeddingFailed || ie.Code == gerrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case ie.Code == gerrors.ErrCodeIndexLocked || ie.Code == gerrors.ErrCodeInvalidIndexURI:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case ie.Category == gerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ie.Category == gerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}
