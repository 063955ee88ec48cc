package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authplane/authplane/pkg/errdefs"
)

// DefaultTimeout bounds every gateway round trip when no explicit timeout
// is configured.
const DefaultTimeout = 10 * time.Second

// HTTPConfig configures the production gateway client.
type HTTPConfig struct {
	// BaseURL is the root of the identity API, e.g. "https://id.internal".
	BaseURL string
	// Token is sent as a bearer credential on every request.
	Token string
	// Timeout bounds each round trip. Zero means DefaultTimeout.
	Timeout time.Duration
	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
	// Observe, when set, is called once per round trip with the operation
	// name, elapsed time and terminal error. Wired to the metrics
	// collector so gateway counters and histograms advance in production.
	Observe func(operation string, duration time.Duration, err error)
}

// HTTP talks JSON to the remote identity-administration API.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
	observe func(operation string, duration time.Duration, err error)
}

// NewHTTP creates the production gateway client. The transport is wrapped
// for trace propagation so gateway round trips show up as child spans.
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTP{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		observe: cfg.Observe,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

// errorBody is the gateway's error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// do performs one round trip and reports it to the observer. in is
// marshalled as the request body when non-nil; out is unmarshalled from
// the response body when non-nil.
func (h *HTTP) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	start := time.Now()
	err := h.roundTrip(ctx, op, method, path, in, out)
	if h.observe != nil {
		h.observe(op, time.Since(start), err)
	}
	return err
}

func (h *HTTP) roundTrip(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errdefs.Wrap(op, errdefs.KindInvalidInput, err)
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return errdefs.Wrap(op, errdefs.KindUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errdefs.Wrap(op, transportKind(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		msg := eb.Error
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		return errdefs.New(op, statusKind(resp.StatusCode), msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errdefs.Wrap(op, errdefs.KindUnavailable,
				fmt.Errorf("decoding gateway response: %w", err))
		}
	}
	return nil
}

// transportKind distinguishes a request that timed out from one that never
// reached the gateway.
func transportKind(err error) errdefs.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return errdefs.KindTimeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return errdefs.KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return errdefs.KindTimeout
	}
	return errdefs.KindUnavailable
}

// statusKind maps a gateway HTTP status onto the error taxonomy.
func statusKind(status int) errdefs.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errdefs.KindInvalidInput
	case http.StatusNotFound:
		return errdefs.KindNotFound
	case http.StatusConflict:
		return errdefs.KindConflict
	case http.StatusLocked:
		return errdefs.KindNotEditable
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errdefs.KindTimeout
	default:
		return errdefs.KindUnavailable
	}
}

// ListTenants fetches all tenants visible to the console credential.
func (h *HTTP) ListTenants(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	if err := h.do(ctx, "gateway.ListTenants", http.MethodGet, "/api/v1/tenants", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListServices fetches all registered services.
func (h *HTTP) ListServices(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := h.do(ctx, "gateway.ListServices", http.MethodGet, "/api/v1/services", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRoles fetches the roles of one service.
func (h *HTTP) ListRoles(ctx context.Context, serviceID string) ([]Role, error) {
	var out []Role
	path := fmt.Sprintf("/api/v1/services/%s/roles", url.PathEscape(serviceID))
	if err := h.do(ctx, "gateway.ListRoles", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRole fetches one role with its directly bound permissions nested.
func (h *HTTP) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var out Role
	path := fmt.Sprintf("/api/v1/roles/%s", url.PathEscape(roleID))
	if err := h.do(ctx, "gateway.GetRole", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRole creates a role in the given service.
func (h *HTTP) CreateRole(ctx context.Context, serviceID string, in RoleInput) (*Role, error) {
	var out Role
	path := fmt.Sprintf("/api/v1/services/%s/roles", url.PathEscape(serviceID))
	if err := h.do(ctx, "gateway.CreateRole", http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRole renames or re-describes a role.
func (h *HTTP) UpdateRole(ctx context.Context, roleID string, in RoleUpdate) (*Role, error) {
	var out Role
	path := fmt.Sprintf("/api/v1/roles/%s", url.PathEscape(roleID))
	if err := h.do(ctx, "gateway.UpdateRole", http.MethodPut, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRoleParent re-parents a role. The payload always carries the
// parent_role_id key so the gateway can distinguish "clear" from "leave".
func (h *HTTP) SetRoleParent(ctx context.Context, roleID string, parentID *string) error {
	path := fmt.Sprintf("/api/v1/roles/%s/parent", url.PathEscape(roleID))
	in := map[string]*string{"parent_role_id": parentID}
	return h.do(ctx, "gateway.SetRoleParent", http.MethodPut, path, in, nil)
}

// DeleteRole removes a role.
func (h *HTTP) DeleteRole(ctx context.Context, roleID string) error {
	path := fmt.Sprintf("/api/v1/roles/%s", url.PathEscape(roleID))
	return h.do(ctx, "gateway.DeleteRole", http.MethodDelete, path, nil, nil)
}

// ListPermissions fetches the permission catalog of one service.
func (h *HTTP) ListPermissions(ctx context.Context, serviceID string) ([]Permission, error) {
	var out []Permission
	path := fmt.Sprintf("/api/v1/services/%s/permissions", url.PathEscape(serviceID))
	if err := h.do(ctx, "gateway.ListPermissions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePermission adds a permission to a service's catalog.
func (h *HTTP) CreatePermission(ctx context.Context, serviceID string, in PermissionInput) (*Permission, error) {
	var out Permission
	path := fmt.Sprintf("/api/v1/services/%s/permissions", url.PathEscape(serviceID))
	if err := h.do(ctx, "gateway.CreatePermission", http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePermission removes a permission. Bindings referencing it become
// inert; they are not cleaned up here.
func (h *HTTP) DeletePermission(ctx context.Context, permissionID string) error {
	path := fmt.Sprintf("/api/v1/permissions/%s", url.PathEscape(permissionID))
	return h.do(ctx, "gateway.DeletePermission", http.MethodDelete, path, nil, nil)
}

// AssignPermission adds a (role, permission) edge.
func (h *HTTP) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	path := fmt.Sprintf("/api/v1/roles/%s/permissions/%s",
		url.PathEscape(roleID), url.PathEscape(permissionID))
	return h.do(ctx, "gateway.AssignPermission", http.MethodPost, path, nil, nil)
}

// RemovePermission removes a (role, permission) edge.
func (h *HTTP) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	path := fmt.Sprintf("/api/v1/roles/%s/permissions/%s",
		url.PathEscape(roleID), url.PathEscape(permissionID))
	return h.do(ctx, "gateway.RemovePermission", http.MethodDelete, path, nil, nil)
}

// ListRolePermissions fetches the permissions directly bound to a role.
func (h *HTTP) ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	var out []Permission
	path := fmt.Sprintf("/api/v1/roles/%s/permissions", url.PathEscape(roleID))
	if err := h.do(ctx, "gateway.ListRolePermissions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPolicyVersions fetches a tenant's policy set and version history.
func (h *HTTP) ListPolicyVersions(ctx context.Context, tenantID string) (*PolicyList, error) {
	var out PolicyList
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies", url.PathEscape(tenantID))
	if err := h.do(ctx, "gateway.ListPolicyVersions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPolicyVersion fetches one version including its document.
func (h *HTTP) GetPolicyVersion(ctx context.Context, tenantID, versionID string) (*PolicyVersion, error) {
	var out PolicyVersion
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies/%s",
		url.PathEscape(tenantID), url.PathEscape(versionID))
	if err := h.do(ctx, "gateway.GetPolicyVersion", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type draftPayload struct {
	Policy     PolicyDocument `json:"policy"`
	ChangeNote string         `json:"change_note,omitempty"`
}

// CreateDraft appends a new draft version to the tenant's history.
func (h *HTTP) CreateDraft(ctx context.Context, tenantID string, doc PolicyDocument, changeNote string) (*PolicyVersion, error) {
	var out PolicyVersion
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies", url.PathEscape(tenantID))
	in := draftPayload{Policy: doc, ChangeNote: changeNote}
	if err := h.do(ctx, "gateway.CreateDraft", http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDraft replaces the document of a version still in draft.
func (h *HTTP) UpdateDraft(ctx context.Context, tenantID, versionID string, doc PolicyDocument, changeNote string) error {
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies/%s",
		url.PathEscape(tenantID), url.PathEscape(versionID))
	in := draftPayload{Policy: doc, ChangeNote: changeNote}
	return h.do(ctx, "gateway.UpdateDraft", http.MethodPut, path, in, nil)
}

type publishPayload struct {
	Mode Mode `json:"mode"`
}

// PublishVersion makes the version the tenant's active policy in the given
// mode, superseding the previously active version.
func (h *HTTP) PublishVersion(ctx context.Context, tenantID, versionID string, mode Mode) error {
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies/%s/publish",
		url.PathEscape(tenantID), url.PathEscape(versionID))
	return h.do(ctx, "gateway.PublishVersion", http.MethodPost, path, publishPayload{Mode: mode}, nil)
}

// RollbackVersion re-activates an existing version via the rollback
// endpoint. Same transition as PublishVersion.
func (h *HTTP) RollbackVersion(ctx context.Context, tenantID, versionID string, mode Mode) error {
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies/%s/rollback",
		url.PathEscape(tenantID), url.PathEscape(versionID))
	return h.do(ctx, "gateway.RollbackVersion", http.MethodPost, path, publishPayload{Mode: mode}, nil)
}

// DeleteVersion removes a version from the history. Rare administrative
// action; the publish/rollback flow never deletes.
func (h *HTTP) DeleteVersion(ctx context.Context, tenantID, versionID string) error {
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/policies/%s",
		url.PathEscape(tenantID), url.PathEscape(versionID))
	return h.do(ctx, "gateway.DeleteVersion", http.MethodDelete, path, nil, nil)
}

// Simulate asks the evaluation engine what the policy would decide.
func (h *HTTP) Simulate(ctx context.Context, tenantID string, req SimulationRequest) (*SimulationResult, error) {
	var out SimulationResult
	path := fmt.Sprintf("/api/v1/tenants/%s/abac/simulate", url.PathEscape(tenantID))
	if err := h.do(ctx, "gateway.Simulate", http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ Client = (*HTTP)(nil)
