package policy

import (
	"context"
	"encoding/json"

	"github.com/authplane/authplane/pkg/errdefs"
	"github.com/authplane/authplane/pkg/gateway"
)

// emptyObject is the default for simulation context fields left unset.
var emptyObject = json.RawMessage(`{}`)

// Simulator asks the evaluation engine what a policy would decide for a
// synthetic request. It performs no rule evaluation itself; condition
// semantics live entirely in the engine. Its job is local validation of
// the request and faithful propagation of the engine's answer.
type Simulator struct {
	gw gateway.Client
}

// NewSimulator creates a simulator over the given gateway.
func NewSimulator(gw gateway.Client) *Simulator {
	return &Simulator{gw: gw}
}

// Simulate validates the request locally, defaults the omitted context
// objects and forwards it. Missing action or resource_type is rejected
// before any network round trip. When a candidate policy is supplied it
// is validated like a draft; when omitted, the engine evaluates the
// tenant's active version.
func (s *Simulator) Simulate(ctx context.Context, tenantID string, req gateway.SimulationRequest) (*gateway.SimulationResult, error) {
	const op = "policy.Simulate"

	if req.Simulation.Action == "" {
		return nil, errdefs.New(op, errdefs.KindInvalidInput, "simulation action is required")
	}
	if req.Simulation.ResourceType == "" {
		return nil, errdefs.New(op, errdefs.KindInvalidInput, "simulation resource_type is required")
	}
	if req.Policy != nil {
		if err := validateDocument(op, req.Policy); err != nil {
			return nil, err
		}
	}

	if len(req.Simulation.Subject) == 0 {
		req.Simulation.Subject = emptyObject
	}
	if len(req.Simulation.Resource) == 0 {
		req.Simulation.Resource = emptyObject
	}
	if len(req.Simulation.Request) == 0 {
		req.Simulation.Request = emptyObject
	}
	if len(req.Simulation.Env) == 0 {
		req.Simulation.Env = emptyObject
	}

	res, err := s.gw.Simulate(ctx, tenantID, req)
	if err != nil {
		return nil, errdefs.WithOp(op, err)
	}
	return res, nil
}
