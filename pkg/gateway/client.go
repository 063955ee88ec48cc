package gateway

import "context"

// Client is the full administration surface of the remote identity API.
// All mutating calls are single synchronous round trips; implementations
// must never hang indefinitely and must report failures through the errdefs
// taxonomy with the operation name attached.
type Client interface {
	// Tenants and services (read-only picker data for the console).
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListServices(ctx context.Context) ([]Service, error)

	// Roles.
	ListRoles(ctx context.Context, serviceID string) ([]Role, error)
	GetRole(ctx context.Context, roleID string) (*Role, error)
	CreateRole(ctx context.Context, serviceID string, in RoleInput) (*Role, error)
	UpdateRole(ctx context.Context, roleID string, in RoleUpdate) (*Role, error)
	// SetRoleParent re-parents a role; a nil parentID makes it a root.
	SetRoleParent(ctx context.Context, roleID string, parentID *string) error
	DeleteRole(ctx context.Context, roleID string) error

	// Permissions.
	ListPermissions(ctx context.Context, serviceID string) ([]Permission, error)
	CreatePermission(ctx context.Context, serviceID string, in PermissionInput) (*Permission, error)
	DeletePermission(ctx context.Context, permissionID string) error

	// Role-permission edges.
	AssignPermission(ctx context.Context, roleID, permissionID string) error
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error)

	// Policy versions.
	ListPolicyVersions(ctx context.Context, tenantID string) (*PolicyList, error)
	GetPolicyVersion(ctx context.Context, tenantID, versionID string) (*PolicyVersion, error)
	CreateDraft(ctx context.Context, tenantID string, doc PolicyDocument, changeNote string) (*PolicyVersion, error)
	UpdateDraft(ctx context.Context, tenantID, versionID string, doc PolicyDocument, changeNote string) error
	PublishVersion(ctx context.Context, tenantID, versionID string, mode Mode) error
	// RollbackVersion re-activates an existing version. The transition is
	// mechanically identical to PublishVersion; only the endpoint and the
	// operator's intent differ.
	RollbackVersion(ctx context.Context, tenantID, versionID string, mode Mode) error
	DeleteVersion(ctx context.Context, tenantID, versionID string) error

	// Simulation.
	Simulate(ctx context.Context, tenantID string, req SimulationRequest) (*SimulationResult, error)
}
