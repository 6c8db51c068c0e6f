// Package llm invokes a large language model with a prompt and decodes its JSON answer.
package llm

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the Disabled invoker.
var ErrDisabled = errors.New("llm invocation is disabled")

// Request is a prompt and the shape of the JSON expected in response.
type Request struct {
	// System is the system instruction, optional.
	System string
	Prompt string
	// Schema is the schema of the JSON response. Nil lets the model pick the shape.
	Schema *Schema
}

// Invoker invokes a model and returns its decoded JSON response.
type Invoker interface {
	InvokeJSON(ctx context.Context, req Request) (any, error)
}

// Disabled is the Invoker used when no model is configured.
type Disabled struct{}

func (Disabled) InvokeJSON(context.Context, Request) (any, error) { return nil, ErrDisabled }
