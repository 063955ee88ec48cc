package gateway

import (
	"encoding/json"
	"time"
)

// Tenant is an isolated customer space on the identity platform.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is a registered application whose roles and permissions are
// administered through the console.
type Service struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is a grantable capability within one service. Code is unique
// per service, conventionally "resource:action".
type Permission struct {
	ID          string `json:"id"`
	ServiceID   string `json:"service_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role is a named permission holder within one service. ParentRoleID, when
// set, references another role in the same service; the child inherits
// everything the parent grants.
type Role struct {
	ID           string  `json:"id"`
	ServiceID    string  `json:"service_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	ParentRoleID *string `json:"parent_role_id,omitempty"`

	// Permissions is populated on single-role reads only.
	Permissions []Permission `json:"permissions,omitempty"`
}

// RoleInput is the payload for creating a role.
type RoleInput struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	ParentRoleID *string `json:"parent_role_id,omitempty"`
}

// RoleUpdate is the payload for renaming or re-describing a role. Parent
// changes go through SetRoleParent, which carries an explicit null.
type RoleUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PermissionInput is the payload for creating a permission.
type PermissionInput struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Mode records whether the active policy version's decisions are enforced
// or only logged.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
)

// Valid reports whether m is a mode an operator may publish with.
func (m Mode) Valid() bool {
	return m == ModeEnforce || m == ModeShadow
}

// Status is the lifecycle state of a policy version.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusShadow     Status = "shadow"
	StatusSuperseded Status = "superseded"
)

// Active reports whether a version in this status is the tenant's current
// policy. At most one version per tenant may be active at a time.
func (s Status) Active() bool {
	return s == StatusPublished || s == StatusShadow
}

// Effect is what a policy rule does when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule is one entry in a policy document. Condition is an opaque boolean
// expression tree evaluated by the backend engine; the console validates
// it as JSON and never interprets it.
type Rule struct {
	ID            string          `json:"id"`
	Effect        Effect          `json:"effect"`
	Actions       []string        `json:"actions"`
	ResourceTypes []string        `json:"resource_types"`
	Priority      int             `json:"priority"`
	Condition     json.RawMessage `json:"condition,omitempty"`
}

// PolicyDocument is one revision of a tenant's ABAC policy.
type PolicyDocument struct {
	Rules []Rule `json:"rules"`
}

// PolicyVersion wraps one document in the per-tenant version history.
// VersionNo is assigned by the store on creation, strictly increasing per
// tenant and never reused.
type PolicyVersion struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	VersionNo  int       `json:"version_no"`
	Status     Status    `json:"status"`
	ChangeNote string    `json:"change_note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Policy is populated on single-version reads and on draft creation.
	Policy *PolicyDocument `json:"policy,omitempty"`
}

// PolicySet is the per-tenant aggregate: the current mode and a pointer to
// the active version, if any.
type PolicySet struct {
	Mode               Mode    `json:"mode"`
	PublishedVersionID *string `json:"published_version_id,omitempty"`
}

// PolicyList is the gateway's listing shape: the policy set plus the full
// version history, newest first.
type PolicyList struct {
	PolicySet PolicySet       `json:"policy_set"`
	Versions  []PolicyVersion `json:"versions"`
}

// SimulationInput is the synthetic request evaluated against a policy.
// Subject, Resource, Request and Env default to empty objects when absent.
type SimulationInput struct {
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	Subject      json.RawMessage `json:"subject"`
	Resource     json.RawMessage `json:"resource"`
	Request      json.RawMessage `json:"request"`
	Env          json.RawMessage `json:"env"`
}

// SimulationRequest asks what a policy would decide. When Policy is nil the
// tenant's currently active version is used.
type SimulationRequest struct {
	Policy     *PolicyDocument `json:"policy,omitempty"`
	Simulation SimulationInput `json:"simulation"`
}

// SimulationResult is the engine's answer, surfaced verbatim.
type SimulationResult struct {
	Decision            string   `json:"decision"`
	MatchedAllowRuleIDs []string `json:"matched_allow_rule_ids"`
	MatchedDenyRuleIDs  []string `json:"matched_deny_rule_ids"`
}

// ActiveVersion pairs the active version with the mode it runs in.
type ActiveVersion struct {
	Version PolicyVersion `json:"version"`
	Mode    Mode          `json:"mode"`
}
