package agent

import "errors"

var (
	// ErrMaxIterations means a turn hit its iteration cap while the
	// model was still requesting tools.
	ErrMaxIterations = errors.New("maximum iterations reached")

	// ErrUnknownAgent means routing could not resolve an agent.
	ErrUnknownAgent = errors.New("unknown agent")
)
