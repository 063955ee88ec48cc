package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/pkg/errdefs"
	"github.com/authplane/authplane/pkg/gateway"
)

// countingGateway records Simulate round trips and the request that was
// actually sent.
type countingGateway struct {
	*gateway.Memory
	simulateCalls int
	lastRequest   gateway.SimulationRequest
}

func (c *countingGateway) Simulate(ctx context.Context, tenantID string, req gateway.SimulationRequest) (*gateway.SimulationResult, error) {
	c.simulateCalls++
	c.lastRequest = req
	return c.Memory.Simulate(ctx, tenantID, req)
}

func TestSimulateRejectsLocallyWithoutGatewayContact(t *testing.T) {
	ctx := context.Background()
	gw := &countingGateway{Memory: gateway.NewMemory()}
	tenant := gw.AddTenant("acme")
	sim := NewSimulator(gw)

	_, err := sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Simulation: gateway.SimulationInput{ResourceType: "invoice"},
	})
	assert.True(t, errdefs.IsInvalidInput(err))

	_, err = sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Simulation: gateway.SimulationInput{Action: "read"},
	})
	assert.True(t, errdefs.IsInvalidInput(err))

	_, err = sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Policy:     &gateway.PolicyDocument{Rules: []gateway.Rule{}},
		Simulation: gateway.SimulationInput{Action: "read", ResourceType: "invoice"},
	})
	assert.True(t, errdefs.IsInvalidInput(err), "candidate policy is validated like a draft")

	assert.Zero(t, gw.simulateCalls, "local rejection must not reach the gateway")
}

func TestSimulateDefaultsContextObjects(t *testing.T) {
	ctx := context.Background()
	gw := &countingGateway{Memory: gateway.NewMemory()}
	tenant := gw.AddTenant("acme")
	sim := NewSimulator(gw)

	doc := &gateway.PolicyDocument{Rules: []gateway.Rule{{
		ID: "allow_read", Effect: gateway.EffectAllow, Actions: []string{"read"},
	}}}
	res, err := sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Policy:     doc,
		Simulation: gateway.SimulationInput{Action: "read", ResourceType: "invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", res.Decision)
	assert.Equal(t, []string{"allow_read"}, res.MatchedAllowRuleIDs)

	assert.Equal(t, 1, gw.simulateCalls)
	sent := gw.lastRequest.Simulation
	assert.JSONEq(t, `{}`, string(sent.Subject))
	assert.JSONEq(t, `{}`, string(sent.Resource))
	assert.JSONEq(t, `{}`, string(sent.Request))
	assert.JSONEq(t, `{}`, string(sent.Env))
}

func TestSimulatePreservesProvidedContext(t *testing.T) {
	ctx := context.Background()
	gw := &countingGateway{Memory: gateway.NewMemory()}
	tenant := gw.AddTenant("acme")
	sim := NewSimulator(gw)

	subject := json.RawMessage(`{"role":"admin"}`)
	doc := &gateway.PolicyDocument{Rules: []gateway.Rule{{
		ID: "deny_all", Effect: gateway.EffectDeny,
	}}}
	res, err := sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Policy: doc,
		Simulation: gateway.SimulationInput{
			Action: "read", ResourceType: "invoice", Subject: subject,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "deny", res.Decision)
	assert.Equal(t, []string{"deny_all"}, res.MatchedDenyRuleIDs)
	assert.Equal(t, subject, gw.lastRequest.Simulation.Subject)
}

func TestSimulateUsesActiveVersionWhenPolicyOmitted(t *testing.T) {
	ctx := context.Background()
	gw := &countingGateway{Memory: gateway.NewMemory()}
	tenant := gw.AddTenant("acme")
	svc := New(gw)
	sim := NewSimulator(gw)

	doc := &gateway.PolicyDocument{Rules: []gateway.Rule{{
		ID: "allow_read", Effect: gateway.EffectAllow, Actions: []string{"read"},
	}}}
	v, err := svc.CreateDraft(ctx, tenant.ID, doc, "")
	require.NoError(t, err)
	require.NoError(t, svc.Publish(ctx, tenant.ID, v.ID, gateway.ModeShadow))

	res, err := sim.Simulate(ctx, tenant.ID, gateway.SimulationRequest{
		Simulation: gateway.SimulationInput{Action: "read", ResourceType: "invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", res.Decision)
}
