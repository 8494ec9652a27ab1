package authz

import (
	id "taxgate/pkg/domain"
)

// Action is the closed, per-resource-extensible set of operations a principal
// can request.
type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionList       Action = "list"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionVerify     Action = "verify"
	ActionBulkCreate Action = "bulk_create"
	ActionReadStats  Action = "read_stats"
	ActionReadByTIN  Action = "read_by_tin"
	ActionDeactivate Action = "deactivate"
)

// ResourceType names the kind of entity an action targets.
type ResourceType string

const (
	ResourceTaxpayer     ResourceType = "taxpayer"
	ResourceOrganization ResourceType = "organization"
	ResourceUser         ResourceType = "user"
	ResourceAuditLog     ResourceType = "audit_log"
)

// Resource describes the target of an action. It is constructed by the
// caller per request; this package never loads entities itself.
type Resource struct {
	Type ResourceType
	// ID is the target entity ID in string form. Empty for collection-level
	// actions (list, create, stats). SelfOnly rules compare it against the
	// principal's user ID.
	ID string
	// OrgID is the organization owning the target, nil when the target is
	// unscoped (e.g. creation into the principal's own organization is
	// described by setting OrgID to that organization).
	OrgID id.OrgID
}

// TaxpayerResource describes a single taxpayer owned by an employer org.
func TaxpayerResource(taxpayerID id.TaxpayerID, orgID id.OrgID) Resource {
	return Resource{Type: ResourceTaxpayer, ID: taxpayerID.String(), OrgID: orgID}
}

// TaxpayerCollection describes taxpayer collection-level actions scoped to an org.
func TaxpayerCollection(orgID id.OrgID) Resource {
	return Resource{Type: ResourceTaxpayer, OrgID: orgID}
}

// OrganizationResource describes a single organization.
func OrganizationResource(orgID id.OrgID) Resource {
	return Resource{Type: ResourceOrganization, ID: orgID.String(), OrgID: orgID}
}

// UserResource describes a single user account belonging to an org.
func UserResource(userID id.UserID, orgID id.OrgID) Resource {
	return Resource{Type: ResourceUser, ID: userID.String(), OrgID: orgID}
}

// UserCollection describes user collection-level actions. No rule row grants
// them, so account creation is reachable only via the admin short-circuit.
func UserCollection() Resource {
	return Resource{Type: ResourceUser}
}

// AuditLogCollection describes the audit ledger read surface.
func AuditLogCollection() Resource {
	return Resource{Type: ResourceAuditLog}
}
