package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/pkg/gateway"
	"github.com/authplane/authplane/pkg/httputil"
)

type fixture struct {
	mem    *gateway.Memory
	srv    *Server
	tenant gateway.Tenant
	svc    gateway.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := gateway.NewMemory()
	return &fixture{
		mem:    mem,
		srv:    NewServer(mem, nil),
		tenant: mem.AddTenant("acme"),
		svc:    mem.AddService("billing"),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestRoleEndpoints(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/services/" + f.svc.ID + "/roles"

	rec := f.do(t, http.MethodPost, base, gateway.RoleInput{Name: "admin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	admin := decode[gateway.Role](t, rec)

	rec = f.do(t, http.MethodPost, base, gateway.RoleInput{Name: "viewer", ParentRoleID: &admin.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	viewer := decode[gateway.Role](t, rec)

	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roles := decode[[]gateway.Role](t, rec)
	assert.Len(t, roles, 2)

	// Re-parenting admin under its descendant must fail with 400.
	rec = f.do(t, http.MethodPut, base+"/"+admin.ID+"/parent", map[string]*string{"parent_role_id": &viewer.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "hierarchy.SetParent", resp.Op)

	// Clearing a parent via explicit null succeeds.
	rec = f.do(t, http.MethodPut, base+"/"+viewer.ID+"/parent", map[string]*string{"parent_role_id": nil})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, base+"/"+viewer.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, base+"/"+viewer.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleRoutesRejectForeignService(t *testing.T) {
	f := newFixture(t)
	other := f.mem.AddService("payments")
	foreign, err := f.mem.CreateRole(context.Background(), other.ID, gateway.RoleInput{Name: "foreign"})
	require.NoError(t, err)

	base := "/api/v1/services/" + f.svc.ID + "/roles/" + foreign.ID

	rec := f.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPut, base, gateway.RoleUpdate{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, base+"/effective-permissions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Still intact under its own service.
	rec = f.do(t, http.MethodGet, "/api/v1/services/"+other.ID+"/roles/"+foreign.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEffectivePermissionsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.mem.CreateRole(ctx, f.svc.ID, gateway.RoleInput{Name: "parent"})
	require.NoError(t, err)
	child, err := f.mem.CreateRole(ctx, f.svc.ID, gateway.RoleInput{Name: "child", ParentRoleID: &parent.ID})
	require.NoError(t, err)
	perm, err := f.mem.CreatePermission(ctx, f.svc.ID, gateway.PermissionInput{Code: "invoice:read", Name: "Read"})
	require.NoError(t, err)
	require.NoError(t, f.mem.AssignPermission(ctx, parent.ID, perm.ID))

	rec := f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/services/%s/roles/%s/effective-permissions", f.svc.ID, child.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var set struct {
		Permissions []gateway.Permission `json:"permissions"`
		Cyclic      bool                 `json:"cyclic"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Permissions, 1)
	assert.Equal(t, "invoice:read", set.Permissions[0].Code)
	assert.False(t, set.Cyclic)
}

func TestAnomaliesEndpoint(t *testing.T) {
	f := newFixture(t)
	ghost := "gone"
	f.mem.PutRole(gateway.Role{ID: "o1", ServiceID: f.svc.ID, Name: "orphan", ParentRoleID: &ghost})

	rec := f.do(t, http.MethodGet, "/api/v1/services/"+f.svc.ID+"/roles/anomalies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var anomalies struct {
		Orphaned []gateway.Role `json:"orphaned"`
		Cyclic   []gateway.Role `json:"cyclic"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anomalies))
	require.Len(t, anomalies.Orphaned, 1)
	assert.Empty(t, anomalies.Cyclic)
}

func TestPermissionEndpoints(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/services/" + f.svc.ID + "/permissions"

	rec := f.do(t, http.MethodPost, base, gateway.PermissionInput{Code: "invoice:read", Name: "Read"})
	require.Equal(t, http.StatusCreated, rec.Code)
	perm := decode[gateway.Permission](t, rec)

	// Duplicate code is a client error, not a conflict.
	rec = f.do(t, http.MethodPost, base, gateway.PermissionInput{Code: "invoice:read", Name: "Again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	role, err := f.mem.CreateRole(context.Background(), f.svc.ID, gateway.RoleInput{Name: "admin"})
	require.NoError(t, err)

	bindPath := fmt.Sprintf("/api/v1/roles/%s/permissions/%s", role.ID, perm.ID)
	rec = f.do(t, http.MethodPost, bindPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	// Idempotent re-bind.
	rec = f.do(t, http.MethodPost, bindPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/roles/"+role.ID+"/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms := decode[[]gateway.Permission](t, rec)
	assert.Len(t, perms, 1)

	rec = f.do(t, http.MethodDelete, bindPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, bindPath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPolicyEndpoints(t *testing.T) {
	f := newFixture(t)
	base := "/api/v1/tenants/" + f.tenant.ID + "/abac/policies"

	doc := &gateway.PolicyDocument{Rules: []gateway.Rule{{
		ID: "allow_read", Effect: gateway.EffectAllow, Actions: []string{"read"},
	}}}

	// Empty rules rejected.
	rec := f.do(t, http.MethodPost, base, map[string]interface{}{
		"policy": map[string]interface{}{"rules": []interface{}{}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base, map[string]interface{}{"policy": doc, "change_note": "initial"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v1 := decode[gateway.PolicyVersion](t, rec)
	assert.Equal(t, 1, v1.VersionNo)

	// No active version yet.
	rec = f.do(t, http.MethodGet, base+"/active", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/"+v1.ID+"/publish", map[string]string{"mode": "shadow"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, base+"/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[gateway.ActiveVersion](t, rec)
	assert.Equal(t, v1.ID, active.Version.ID)
	assert.Equal(t, gateway.ModeShadow, active.Mode)

	// Editing a published version is locked.
	rec = f.do(t, http.MethodPut, base+"/"+v1.ID, map[string]interface{}{"policy": doc})
	assert.Equal(t, http.StatusLocked, rec.Code)

	// Deleting the active version conflicts.
	rec = f.do(t, http.MethodDelete, base+"/"+v1.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Listing returns the set and the history.
	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[gateway.PolicyList](t, rec)
	require.NotNil(t, list.PolicySet.PublishedVersionID)
	assert.Equal(t, v1.ID, *list.PolicySet.PublishedVersionID)
	require.Len(t, list.Versions, 1)

	// Rollback endpoint drives the same transition.
	rec = f.do(t, http.MethodPost, base+"/"+v1.ID+"/rollback", map[string]string{"mode": "enforce"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, base+"/active", nil)
	active = decode[gateway.ActiveVersion](t, rec)
	assert.Equal(t, gateway.ModeEnforce, active.Mode)
}

func TestSimulateEndpoint(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/tenants/" + f.tenant.ID + "/abac/simulate"

	// Missing action is rejected locally.
	rec := f.do(t, http.MethodPost, path, map[string]interface{}{
		"simulation": map[string]string{"resource_type": "invoice"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, path, map[string]interface{}{
		"policy": map[string]interface{}{
			"rules": []map[string]interface{}{{
				"id": "deny_all", "effect": "deny", "actions": []string{"*"},
				"resource_types": []string{}, "priority": 1,
			}},
		},
		"simulation": map[string]string{"action": "read", "resource_type": "invoice"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[gateway.SimulationResult](t, rec)
	assert.Equal(t, "deny", res.Decision)
	assert.Equal(t, []string{"deny_all"}, res.MatchedDenyRuleIDs)
}

func TestDirectoryEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tenants := decode[[]gateway.Tenant](t, rec)
	require.Len(t, tenants, 1)
	assert.Equal(t, "acme", tenants[0].Name)

	rec = f.do(t, http.MethodGet, "/api/v1/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[[]gateway.Service](t, rec)
	require.Len(t, services, 1)
}
