package authz

// Scope is the predicate a rule applies to the (principal, resource) pair.
type Scope string

const (
	// ScopeUnrestricted allows the action regardless of organization.
	ScopeUnrestricted Scope = "unrestricted"
	// ScopeSameOrganization allows the action only when the principal and the
	// resource belong to the same (non-nil) organization.
	ScopeSameOrganization Scope = "same_organization"
	// ScopeSelf allows the action only on the principal's own record.
	ScopeSelf Scope = "self"
	// ScopeDenied forbids the action for the role outright.
	ScopeDenied Scope = "denied"
)

// Deny reasons. These are stable strings: they appear in audit records and
// API error descriptions.
const (
	ReasonNoRule        = "no rule / default-closed"
	ReasonCrossOrg      = "cross-organization access"
	ReasonNotSelf       = "not self"
	ReasonRoleForbidden = "role forbidden"
)

// Rule maps (role, resource type, action) to a scope predicate. Rules are
// static: defined once at process start, never mutated at runtime.
type Rule struct {
	Role     Role
	Resource ResourceType
	Action   Action
	Scope    Scope
}

// Decision is the policy engine's verdict.
type Decision struct {
	Allowed bool
	Reason  string // set when denied
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

type ruleKey struct {
	role     Role
	resource ResourceType
	action   Action
}

// Engine is the pure policy decision function. The rule table is immutable
// after construction, so Decide is safe for concurrent use without locking
// and the same inputs always produce the same decision.
type Engine struct {
	rules map[ruleKey]Scope
}

// NewEngine builds an engine from a rule list. Later duplicates win, which
// lets deployments layer overrides onto DefaultRules. Every triple not listed
// is denied (fail-closed).
func NewEngine(rules []Rule) *Engine {
	table := make(map[ruleKey]Scope, len(rules))
	for _, r := range rules {
		table[ruleKey{r.Role, r.Resource, r.Action}] = r.Scope
	}
	return &Engine{rules: table}
}

// Decide evaluates whether the principal may perform action on the resource.
// Admin short-circuits to Allow before any table lookup.
func (e *Engine) Decide(p Principal, action Action, res Resource) Decision {
	if p.Role == RoleAdmin {
		return allow()
	}

	scope, ok := e.rules[ruleKey{p.Role, res.Type, action}]
	if !ok {
		return deny(ReasonNoRule)
	}

	switch scope {
	case ScopeUnrestricted:
		return allow()
	case ScopeSameOrganization:
		// Fail closed on missing scope: a nil org on either side never matches.
		if p.OrgID.IsNil() || res.OrgID.IsNil() || p.OrgID != res.OrgID {
			return deny(ReasonCrossOrg)
		}
		return allow()
	case ScopeSelf:
		if res.ID == "" || res.ID != p.UserID.String() {
			return deny(ReasonNotSelf)
		}
		return allow()
	default:
		return deny(ReasonRoleForbidden)
	}
}

// DefaultRules is the static policy matrix for the tax-compliance domain.
// Admin is absent on purpose: the role short-circuits in Decide.
func DefaultRules() []Rule {
	return []Rule{
		// Taxpayer profiles: accountants and employers manage their own
		// organization's taxpayers; verification and bulk import stay with
		// accountants.
		{RoleAccountant, ResourceTaxpayer, ActionCreate, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionRead, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionList, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionUpdate, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionDelete, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionVerify, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionBulkCreate, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionReadStats, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionReadByTIN, ScopeSameOrganization},

		{RoleEmployer, ResourceTaxpayer, ActionCreate, ScopeSameOrganization},
		{RoleEmployer, ResourceTaxpayer, ActionRead, ScopeSameOrganization},
		{RoleEmployer, ResourceTaxpayer, ActionList, ScopeSameOrganization},
		{RoleEmployer, ResourceTaxpayer, ActionUpdate, ScopeSameOrganization},
		{RoleEmployer, ResourceTaxpayer, ActionReadStats, ScopeSameOrganization},
		{RoleEmployer, ResourceTaxpayer, ActionReadByTIN, ScopeSameOrganization},

		{RoleOrganization, ResourceTaxpayer, ActionRead, ScopeSameOrganization},
		{RoleOrganization, ResourceTaxpayer, ActionList, ScopeSameOrganization},

		// Organizations: members may read their own organization.
		{RoleAccountant, ResourceOrganization, ActionRead, ScopeSameOrganization},
		{RoleEmployer, ResourceOrganization, ActionRead, ScopeSameOrganization},
		{RoleOrganization, ResourceOrganization, ActionRead, ScopeSameOrganization},

		// Users: everyone may read and update their own account.
		{RoleAccountant, ResourceUser, ActionRead, ScopeSelf},
		{RoleAccountant, ResourceUser, ActionUpdate, ScopeSelf},
		{RoleEmployer, ResourceUser, ActionRead, ScopeSelf},
		{RoleEmployer, ResourceUser, ActionUpdate, ScopeSelf},
		{RoleOrganization, ResourceUser, ActionRead, ScopeSelf},
		{RoleOrganization, ResourceUser, ActionUpdate, ScopeSelf},

		// Audit ledger: admin only, which the short-circuit already covers;
		// no rule rows means every other role is default-denied.
	}
}
