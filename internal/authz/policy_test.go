package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "taxgate/pkg/domain"
)

var (
	orgA = id.OrgID(uuid.New())
	orgB = id.OrgID(uuid.New())
)

func accountant(org id.OrgID) Principal {
	return Principal{UserID: id.UserID(uuid.New()), Role: RoleAccountant, OrgID: org, Active: true, Verified: true}
}

func TestEngine_FailClosedByDefault(t *testing.T) {
	engine := NewEngine(nil)

	roles := []Role{RoleAccountant, RoleEmployer, RoleOrganization}
	resources := []ResourceType{ResourceTaxpayer, ResourceOrganization, ResourceUser, ResourceAuditLog}
	actions := []Action{ActionCreate, ActionRead, ActionList, ActionUpdate, ActionDelete, ActionVerify, ActionBulkCreate, ActionReadStats, ActionReadByTIN, ActionDeactivate}

	for _, role := range roles {
		for _, resource := range resources {
			for _, action := range actions {
				p := Principal{UserID: id.UserID(uuid.New()), Role: role, OrgID: orgA}
				decision := engine.Decide(p, action, Resource{Type: resource, OrgID: orgA})
				require.False(t, decision.Allowed, "%s %s %s must be denied with no rule", role, action, resource)
				assert.Equal(t, ReasonNoRule, decision.Reason)
			}
		}
	}
}

func TestEngine_AdminAlwaysAllowed(t *testing.T) {
	// Empty rule table on purpose: admin must not depend on any rule row.
	engine := NewEngine(nil)
	admin := Principal{UserID: id.UserID(uuid.New()), Role: RoleAdmin}

	resources := []ResourceType{ResourceTaxpayer, ResourceOrganization, ResourceUser, ResourceAuditLog}
	actions := []Action{ActionCreate, ActionRead, ActionList, ActionUpdate, ActionDelete, ActionVerify, ActionBulkCreate, ActionReadStats, ActionReadByTIN, ActionDeactivate}

	for _, resource := range resources {
		for _, action := range actions {
			decision := engine.Decide(admin, action, Resource{Type: resource, OrgID: orgB})
			assert.True(t, decision.Allowed, "admin must be allowed %s on %s", action, resource)
		}
	}
}

func TestEngine_SameOrganizationScope(t *testing.T) {
	engine := NewEngine([]Rule{
		{RoleAccountant, ResourceTaxpayer, ActionRead, ScopeSameOrganization},
	})

	t.Run("same org allows", func(t *testing.T) {
		decision := engine.Decide(accountant(orgA), ActionRead, Resource{Type: ResourceTaxpayer, OrgID: orgA})
		assert.True(t, decision.Allowed)
		assert.Empty(t, decision.Reason)
	})

	t.Run("different org denies", func(t *testing.T) {
		decision := engine.Decide(accountant(orgA), ActionRead, Resource{Type: ResourceTaxpayer, OrgID: orgB})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonCrossOrg, decision.Reason)
	})

	t.Run("principal without org denies", func(t *testing.T) {
		decision := engine.Decide(accountant(id.OrgID{}), ActionRead, Resource{Type: ResourceTaxpayer, OrgID: orgA})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonCrossOrg, decision.Reason)
	})

	t.Run("resource without org denies", func(t *testing.T) {
		decision := engine.Decide(accountant(orgA), ActionRead, Resource{Type: ResourceTaxpayer})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonCrossOrg, decision.Reason)
	})

	t.Run("both without org denies", func(t *testing.T) {
		decision := engine.Decide(accountant(id.OrgID{}), ActionRead, Resource{Type: ResourceTaxpayer})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonCrossOrg, decision.Reason)
	})
}

func TestEngine_SelfScope(t *testing.T) {
	engine := NewEngine([]Rule{
		{RoleEmployer, ResourceUser, ActionUpdate, ScopeSelf},
	})
	self := Principal{UserID: id.UserID(uuid.New()), Role: RoleEmployer, OrgID: orgA}

	t.Run("own record allows", func(t *testing.T) {
		decision := engine.Decide(self, ActionUpdate, Resource{Type: ResourceUser, ID: self.UserID.String(), OrgID: orgA})
		assert.True(t, decision.Allowed)
	})

	t.Run("another user's record denies", func(t *testing.T) {
		decision := engine.Decide(self, ActionUpdate, Resource{Type: ResourceUser, ID: uuid.NewString(), OrgID: orgA})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonNotSelf, decision.Reason)
	})

	t.Run("missing resource id denies", func(t *testing.T) {
		decision := engine.Decide(self, ActionUpdate, Resource{Type: ResourceUser, OrgID: orgA})
		require.False(t, decision.Allowed)
		assert.Equal(t, ReasonNotSelf, decision.Reason)
	})
}

func TestEngine_DeniedScope(t *testing.T) {
	engine := NewEngine([]Rule{
		{RoleOrganization, ResourceTaxpayer, ActionDelete, ScopeDenied},
	})
	p := Principal{UserID: id.UserID(uuid.New()), Role: RoleOrganization, OrgID: orgA}

	decision := engine.Decide(p, ActionDelete, Resource{Type: ResourceTaxpayer, OrgID: orgA})
	require.False(t, decision.Allowed)
	assert.Equal(t, ReasonRoleForbidden, decision.Reason)
}

func TestEngine_LaterDuplicateWins(t *testing.T) {
	engine := NewEngine([]Rule{
		{RoleAccountant, ResourceTaxpayer, ActionRead, ScopeSameOrganization},
		{RoleAccountant, ResourceTaxpayer, ActionRead, ScopeUnrestricted},
	})

	decision := engine.Decide(accountant(orgA), ActionRead, Resource{Type: ResourceTaxpayer, OrgID: orgB})
	assert.True(t, decision.Allowed, "later override must replace the earlier rule")
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewEngine(DefaultRules())
	p := accountant(orgA)
	res := Resource{Type: ResourceTaxpayer, OrgID: orgB}

	first := engine.Decide(p, ActionRead, res)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, engine.Decide(p, ActionRead, res))
	}
}

func TestDefaultRules_Matrix(t *testing.T) {
	engine := NewEngine(DefaultRules())

	cases := []struct {
		name    string
		role    Role
		action  Action
		res     Resource
		allowed bool
		reason  string
	}{
		{"accountant verifies same-org taxpayer", RoleAccountant, ActionVerify, Resource{Type: ResourceTaxpayer, ID: uuid.NewString(), OrgID: orgA}, true, ""},
		{"accountant bulk-creates into own org", RoleAccountant, ActionBulkCreate, Resource{Type: ResourceTaxpayer, OrgID: orgA}, true, ""},
		{"employer cannot verify", RoleEmployer, ActionVerify, Resource{Type: ResourceTaxpayer, ID: uuid.NewString(), OrgID: orgA}, false, ReasonNoRule},
		{"employer cannot delete", RoleEmployer, ActionDelete, Resource{Type: ResourceTaxpayer, ID: uuid.NewString(), OrgID: orgA}, false, ReasonNoRule},
		{"employer reads own-org stats", RoleEmployer, ActionReadStats, Resource{Type: ResourceTaxpayer, OrgID: orgA}, true, ""},
		{"organization cannot create taxpayers", RoleOrganization, ActionCreate, Resource{Type: ResourceTaxpayer, OrgID: orgA}, false, ReasonNoRule},
		{"organization lists own-org taxpayers", RoleOrganization, ActionList, Resource{Type: ResourceTaxpayer, OrgID: orgA}, true, ""},
		{"accountant reads own organization", RoleAccountant, ActionRead, Resource{Type: ResourceOrganization, ID: orgA.String(), OrgID: orgA}, true, ""},
		{"accountant cannot read other organization", RoleAccountant, ActionRead, Resource{Type: ResourceOrganization, ID: orgB.String(), OrgID: orgB}, false, ReasonCrossOrg},
		{"accountant cannot read audit ledger", RoleAccountant, ActionList, Resource{Type: ResourceAuditLog}, false, ReasonNoRule},
		{"employer cannot read audit ledger", RoleEmployer, ActionList, Resource{Type: ResourceAuditLog}, false, ReasonNoRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Principal{UserID: id.UserID(uuid.New()), Role: tc.role, OrgID: orgA, Active: true, Verified: true}
			decision := engine.Decide(p, tc.action, tc.res)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if !tc.allowed {
				assert.Equal(t, tc.reason, decision.Reason)
			}
		})
	}
}
