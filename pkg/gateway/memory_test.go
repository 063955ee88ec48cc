package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/pkg/errdefs"
)

func TestMemoryRolesAndPermissions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	svc := m.AddService("billing")

	admin, err := m.CreateRole(ctx, svc.ID, RoleInput{Name: "admin"})
	require.NoError(t, err)
	viewer, err := m.CreateRole(ctx, svc.ID, RoleInput{Name: "viewer"})
	require.NoError(t, err)

	read, err := m.CreatePermission(ctx, svc.ID, PermissionInput{Code: "invoice:read", Name: "Read invoices"})
	require.NoError(t, err)

	_, err = m.CreatePermission(ctx, svc.ID, PermissionInput{Code: "invoice:read"})
	assert.True(t, errdefs.IsConflict(err), "duplicate code should conflict, got %v", err)

	require.NoError(t, m.AssignPermission(ctx, admin.ID, read.ID))
	// Assigning again is a no-op.
	require.NoError(t, m.AssignPermission(ctx, admin.ID, read.ID))

	perms, err := m.ListRolePermissions(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "invoice:read", perms[0].Code)

	got, err := m.GetRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, got.Permissions, 1)

	// Removing an absent edge is a no-op.
	require.NoError(t, m.RemovePermission(ctx, viewer.ID, read.ID))
	require.NoError(t, m.RemovePermission(ctx, admin.ID, read.ID))
	perms, err = m.ListRolePermissions(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	err = m.AssignPermission(ctx, "nope", read.ID)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestMemorySetRoleParentDoesNotValidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	svc := m.AddService("identity")

	a, err := m.CreateRole(ctx, svc.ID, RoleInput{Name: "a"})
	require.NoError(t, err)
	b, err := m.CreateRole(ctx, svc.ID, RoleInput{Name: "b"})
	require.NoError(t, err)

	// The store accepts a cycle; detecting it is the console's job.
	require.NoError(t, m.SetRoleParent(ctx, a.ID, &b.ID))
	require.NoError(t, m.SetRoleParent(ctx, b.ID, &a.ID))

	got, err := m.GetRole(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentRoleID)
	assert.Equal(t, a.ID, *got.ParentRoleID)

	require.NoError(t, m.SetRoleParent(ctx, b.ID, nil))
	got, err = m.GetRole(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentRoleID)
}

func TestMemoryPolicyLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")

	doc := PolicyDocument{Rules: []Rule{{ID: "r1", Effect: EffectAllow, Actions: []string{"read"}}}}

	v1, err := m.CreateDraft(ctx, tenant.ID, doc, "initial")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNo)
	assert.Equal(t, StatusDraft, v1.Status)

	// Drafts are editable; anything else is not.
	require.NoError(t, m.UpdateDraft(ctx, tenant.ID, v1.ID, doc, "tweak"))

	require.NoError(t, m.PublishVersion(ctx, tenant.ID, v1.ID, ModeShadow))
	got, err := m.GetPolicyVersion(ctx, tenant.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShadow, got.Status)

	err = m.UpdateDraft(ctx, tenant.ID, v1.ID, doc, "too late")
	assert.True(t, errdefs.IsNotEditable(err))

	// Re-activating the same version in the same mode conflicts.
	err = m.PublishVersion(ctx, tenant.ID, v1.ID, ModeShadow)
	assert.True(t, errdefs.IsConflict(err))
	// A mode change on the same version is a real transition.
	require.NoError(t, m.PublishVersion(ctx, tenant.ID, v1.ID, ModeEnforce))

	v2, err := m.CreateDraft(ctx, tenant.ID, doc, "second")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNo)

	require.NoError(t, m.PublishVersion(ctx, tenant.ID, v2.ID, ModeEnforce))

	got, err = m.GetPolicyVersion(ctx, tenant.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuperseded, got.Status)

	list, err := m.ListPolicyVersions(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, list.PolicySet.PublishedVersionID)
	assert.Equal(t, v2.ID, *list.PolicySet.PublishedVersionID)
	assert.Equal(t, ModeEnforce, list.PolicySet.Mode)
	require.Len(t, list.Versions, 2)
	// Newest first, documents omitted from summaries.
	assert.Equal(t, 2, list.Versions[0].VersionNo)
	assert.Nil(t, list.Versions[0].Policy)

	// The active version cannot be deleted.
	err = m.DeleteVersion(ctx, tenant.ID, v2.ID)
	assert.True(t, errdefs.IsConflict(err))
	require.NoError(t, m.DeleteVersion(ctx, tenant.ID, v1.ID))

	// Rollback is the same transition pointed at an older version.
	v3, err := m.CreateDraft(ctx, tenant.ID, doc, "third")
	require.NoError(t, err)
	assert.Equal(t, 3, v3.VersionNo, "version numbers are never reused")
	require.NoError(t, m.RollbackVersion(ctx, tenant.ID, v3.ID, ModeShadow))

	got, err = m.GetPolicyVersion(ctx, tenant.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuperseded, got.Status)
}

func TestMemoryPublishRejectsBadMode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")
	v, err := m.CreateDraft(ctx, tenant.ID, PolicyDocument{Rules: []Rule{{ID: "r"}}}, "")
	require.NoError(t, err)

	err = m.PublishVersion(ctx, tenant.ID, v.ID, ModeDisabled)
	assert.True(t, errdefs.IsInvalidInput(err))
	err = m.PublishVersion(ctx, tenant.ID, v.ID, Mode("loud"))
	assert.True(t, errdefs.IsInvalidInput(err))
}

func TestMemorySimulate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")

	doc := PolicyDocument{Rules: []Rule{
		{ID: "allow-read", Effect: EffectAllow, Actions: []string{"read"}, ResourceTypes: []string{"invoice"}, Priority: 1},
		{ID: "deny-export", Effect: EffectDeny, Actions: []string{"export"}, Priority: 10},
		{ID: "allow-any", Effect: EffectAllow, Actions: []string{"*"}, ResourceTypes: []string{"report"}},
	}}

	tests := []struct {
		name         string
		action       string
		resourceType string
		decision     string
		allowIDs     []string
		denyIDs      []string
	}{
		{"matching allow", "read", "invoice", "allow", []string{"allow-read"}, []string{}},
		{"case-insensitive match", "READ", "Invoice", "allow", []string{"allow-read"}, []string{}},
		{"deny overrides", "export", "invoice", "deny", []string{}, []string{"deny-export"}},
		{"wildcard action", "delete", "report", "allow", []string{"allow-any"}, []string{}},
		{"no rule matched with allow rules present", "write", "invoice", "deny", []string{}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := m.Simulate(ctx, tenant.ID, SimulationRequest{
				Policy:     &doc,
				Simulation: SimulationInput{Action: tc.action, ResourceType: tc.resourceType},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.decision, res.Decision)
			assert.Equal(t, tc.allowIDs, res.MatchedAllowRuleIDs)
			assert.Equal(t, tc.denyIDs, res.MatchedDenyRuleIDs)
		})
	}
}

func TestMemorySimulateDenyOnlyDocumentAllowsByDefault(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")

	doc := PolicyDocument{Rules: []Rule{
		{ID: "deny-delete", Effect: EffectDeny, Actions: []string{"delete"}},
	}}
	res, err := m.Simulate(ctx, tenant.ID, SimulationRequest{
		Policy:     &doc,
		Simulation: SimulationInput{Action: "read", ResourceType: "invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", res.Decision)
}

func TestMemorySimulateFallsBackToActiveVersion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")

	// Nothing active, nothing provided.
	_, err := m.Simulate(ctx, tenant.ID, SimulationRequest{
		Simulation: SimulationInput{Action: "read", ResourceType: "invoice"},
	})
	assert.True(t, errdefs.IsInvalidInput(err))

	doc := PolicyDocument{Rules: []Rule{
		{ID: "allow-read", Effect: EffectAllow, Actions: []string{"read"}},
	}}
	v, err := m.CreateDraft(ctx, tenant.ID, doc, "")
	require.NoError(t, err)
	require.NoError(t, m.PublishVersion(ctx, tenant.ID, v.ID, ModeShadow))

	res, err := m.Simulate(ctx, tenant.ID, SimulationRequest{
		Simulation: SimulationInput{Action: "read", ResourceType: "anything"},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", res.Decision)
	assert.Equal(t, []string{"allow-read"}, res.MatchedAllowRuleIDs)
}

func TestMemorySimulateRequiresActionAndResourceType(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tenant := m.AddTenant("acme")

	_, err := m.Simulate(ctx, tenant.ID, SimulationRequest{
		Simulation: SimulationInput{Action: "read"},
	})
	assert.True(t, errdefs.IsInvalidInput(err))
	_, err = m.Simulate(ctx, tenant.ID, SimulationRequest{
		Simulation: SimulationInput{ResourceType: "invoice"},
	})
	assert.True(t, errdefs.IsInvalidInput(err))
}
