package accesscontrol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/services"
)

func memberCaller(projectID uuid.UUID, perms ...GrantedPermission) *CallerContext {
	uid := uuid.New()
	if len(perms) == 0 {
		perms = []GrantedPermission{{Permission: models.PermissionProjectMember}}
	}
	return &CallerContext{
		UserID:    &uid,
		Kind:      CallerUser,
		ProjectID: &projectID,
		ProjectGrants: map[uuid.UUID]*PermissionGrant{
			projectID: {Permissions: perms},
		},
	}
}

func newBillingTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := newTestRegistry(t)
	r.MustRegister(&EntityDescriptor{
		Table:        "status_pages",
		TenantColumn: "project_id",
		Columns: map[string]Column{
			"project_id":    {Kind: ColumnEntity, RelatedTable: "projects"},
			"name":          {Kind: ColumnScalar},
			"custom_domain": {Kind: ColumnScalar},
			"is_public":     {Kind: ColumnScalar},
		},
		ModelPermissions: map[Operation][]models.Permission{
			OperationCreate: {models.PermissionProjectOwner, models.PermissionProjectAdmin},
			OperationRead:   {models.PermissionPublic, models.PermissionProjectMember, models.PermissionProjectAdmin, models.PermissionProjectOwner, models.PermissionProjectViewer},
			OperationUpdate: {models.PermissionProjectOwner, models.PermissionProjectAdmin},
			OperationDelete: {models.PermissionProjectOwner},
		},
		ModelBilling: map[Operation]models.PlanType{
			OperationCreate: models.PlanGrowth,
		},
		ColumnBilling: map[string]BillingAccessControl{
			"custom_domain": {Create: models.PlanScale, Update: models.PlanScale},
		},
	})
	return r
}

func TestCheckModelLevelPermission(t *testing.T) {
	r := newBillingTestRegistry(t)
	e := NewEvaluator(r, false, zap.NewNop())
	incidents, _ := r.Get("incidents")
	statusPages, _ := r.Get("status_pages")
	projectID := uuid.New()

	t.Run("root bypasses everything", func(t *testing.T) {
		err := e.CheckModelLevelPermission(incidents, NewRootContext(), OperationDelete)
		assert.NoError(t, err)
	})

	t.Run("anonymous caller on non-public model is not authenticated", func(t *testing.T) {
		caller := &CallerContext{Kind: CallerAnonymous}
		err := e.CheckModelLevelPermission(incidents, caller, OperationRead)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthenticatedError(err))
	})

	t.Run("anonymous caller on public-readable model passes login check", func(t *testing.T) {
		caller := &CallerContext{Kind: CallerAnonymous}
		err := e.CheckModelLevelPermission(statusPages, caller, OperationRead)
		assert.NoError(t, err)
	})

	t.Run("anonymous caller cannot write public-readable model", func(t *testing.T) {
		caller := &CallerContext{Kind: CallerAnonymous}
		err := e.CheckModelLevelPermission(statusPages, caller, OperationUpdate)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthenticatedError(err))
	})

	t.Run("member without delete permission is not authorized", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckModelLevelPermission(incidents, caller, OperationDelete)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
		assert.Contains(t, err.Error(), "ProjectAdmin")
	})

	t.Run("member with matching permission passes", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckModelLevelPermission(incidents, caller, OperationCreate)
		assert.NoError(t, err)
	})

	t.Run("api caller bypasses login but not permission check", func(t *testing.T) {
		caller := &CallerContext{
			Kind:      CallerAPI,
			ProjectID: &projectID,
			ProjectGrants: map[uuid.UUID]*PermissionGrant{
				projectID: {Permissions: []GrantedPermission{{Permission: models.PermissionProjectViewer}}},
			},
		}
		assert.NoError(t, e.CheckModelLevelPermission(incidents, caller, OperationRead))
		err := e.CheckModelLevelPermission(incidents, caller, OperationCreate)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
	})
}

func TestModelBillingGates(t *testing.T) {
	r := newBillingTestRegistry(t)
	statusPages, _ := r.Get("status_pages")
	projectID := uuid.New()

	ownerOn := func(plan models.PlanType, unpaid bool) *CallerContext {
		c := memberCaller(projectID, GrantedPermission{Permission: models.PermissionProjectOwner})
		c.Plan = &plan
		c.SubscriptionUnpaid = unpaid
		return c
	}

	t.Run("gated operation below required plan is payment required", func(t *testing.T) {
		e := NewEvaluator(r, true, zap.NewNop())
		err := e.CheckModelLevelPermission(statusPages, ownerOn(models.PlanFree, false), OperationCreate)
		require.Error(t, err)
		assert.True(t, services.IsPaymentRequiredError(err))
	})

	t.Run("gated operation at required plan passes", func(t *testing.T) {
		e := NewEvaluator(r, true, zap.NewNop())
		err := e.CheckModelLevelPermission(statusPages, ownerOn(models.PlanGrowth, false), OperationCreate)
		assert.NoError(t, err)
	})

	t.Run("unpaid subscription blocks non-exempt models", func(t *testing.T) {
		e := NewEvaluator(r, true, zap.NewNop())
		err := e.CheckModelLevelPermission(statusPages, ownerOn(models.PlanScale, true), OperationCreate)
		require.Error(t, err)
		assert.True(t, services.IsPaymentRequiredError(err))
	})

	t.Run("billing disabled skips all gates", func(t *testing.T) {
		e := NewEvaluator(r, false, zap.NewNop())
		err := e.CheckModelLevelPermission(statusPages, ownerOn(models.PlanFree, true), OperationCreate)
		assert.NoError(t, err)
	})

	t.Run("column billing gate on create payload", func(t *testing.T) {
		e := NewEvaluator(r, true, zap.NewNop())
		data := map[string]interface{}{"name": "status", "custom_domain": "status.example.com"}
		err := e.CheckDataColumnPermissions(statusPages, data, ownerOn(models.PlanGrowth, false), OperationCreate)
		require.Error(t, err)
		assert.True(t, services.IsPaymentRequiredError(err))

		err = e.CheckDataColumnPermissions(statusPages, data, ownerOn(models.PlanScale, false), OperationCreate)
		assert.NoError(t, err)
	})
}

func TestCheckDataColumnPermissions(t *testing.T) {
	r := newTestRegistry(t)
	e := NewEvaluator(r, false, zap.NewNop())
	projectID := uuid.New()

	restricted, _ := r.Get("incidents")
	restricted.ColumnPermissions = map[string]AccessControl{
		"severity": {Update: []models.Permission{models.PermissionProjectOwner, models.PermissionProjectAdmin}},
	}

	t.Run("unknown column in payload is invalid column", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckDataColumnPermissions(restricted, map[string]interface{}{"ghost": 1}, caller, OperationCreate)
		require.Error(t, err)
		assert.True(t, services.IsInvalidColumnError(err))
	})

	t.Run("column without explicit access control follows model level", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckDataColumnPermissions(restricted, map[string]interface{}{"title": "x"}, caller, OperationUpdate)
		assert.NoError(t, err)
	})

	t.Run("column with explicit access control blocks member", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckDataColumnPermissions(restricted, map[string]interface{}{"severity": "high"}, caller, OperationUpdate)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
		assert.Contains(t, err.Error(), "severity")
	})

	t.Run("admin passes column access control", func(t *testing.T) {
		caller := memberCaller(projectID, GrantedPermission{Permission: models.PermissionProjectAdmin})
		err := e.CheckDataColumnPermissions(restricted, map[string]interface{}{"severity": "high"}, caller, OperationUpdate)
		assert.NoError(t, err)
	})

	t.Run("system columns and nil values are skipped", func(t *testing.T) {
		caller := memberCaller(projectID)
		err := e.CheckDataColumnPermissions(restricted, map[string]interface{}{
			"id":       uuid.New(),
			"severity": nil,
		}, caller, OperationUpdate)
		assert.NoError(t, err)
	})
}

func TestCheckReadPermission(t *testing.T) {
	r := newTestRegistry(t)
	e := NewEvaluator(r, false, zap.NewNop())
	incidents, _ := r.Get("incidents")
	projectID := uuid.New()

	t.Run("tenant scope is injected", func(t *testing.T) {
		caller := memberCaller(projectID)
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{"title": "x"}, nil, caller)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		assert.Equal(t, Equal(projectID), safe[0]["project_id"])
	})

	t.Run("injected tenant value wins over caller-supplied", func(t *testing.T) {
		caller := memberCaller(projectID)
		other := uuid.New()
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{"project_id": other}, nil, caller)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		assert.Equal(t, Equal(projectID), safe[0]["project_id"])
	})

	t.Run("invalid column beats authorization failure", func(t *testing.T) {
		caller := &CallerContext{Kind: CallerAnonymous}
		_, _, _, err := e.CheckReadPermission(incidents, RawQuery{"ghost": 1}, nil, caller)
		require.Error(t, err)
		assert.True(t, services.IsInvalidColumnError(err))
		assert.False(t, services.IsNotAuthenticatedError(err))
	})

	t.Run("anonymous caller is rejected after sanitization", func(t *testing.T) {
		caller := &CallerContext{Kind: CallerAnonymous}
		_, _, _, err := e.CheckReadPermission(incidents, RawQuery{"title": "x"}, nil, caller)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthenticatedError(err))
	})

	t.Run("input query is never mutated", func(t *testing.T) {
		caller := memberCaller(projectID)
		raw := RawQuery{"title": "x"}
		_, _, _, err := e.CheckReadPermission(incidents, raw, nil, caller)
		require.NoError(t, err)
		assert.Len(t, raw, 1)
		_, injected := raw["project_id"]
		assert.False(t, injected)
	})

	t.Run("root with pinned project still gets tenant scope", func(t *testing.T) {
		root := NewRootContext()
		root.ProjectID = &projectID
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, root)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		assert.Equal(t, Equal(projectID), safe[0]["project_id"])
	})

	t.Run("root without project gets unscoped query", func(t *testing.T) {
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{"title": "x"}, nil, NewRootContext())
		require.NoError(t, err)
		require.Len(t, safe, 1)
		_, scoped := safe[0]["project_id"]
		assert.False(t, scoped)
	})
}

func TestLabelScoping(t *testing.T) {
	r := newTestRegistry(t)
	e := NewEvaluator(r, false, zap.NewNop())
	incidents, _ := r.Get("incidents")
	projectID := uuid.New()
	labelA, labelB := uuid.New(), uuid.New()

	t.Run("label-scoped grant restricts rows by label overlap", func(t *testing.T) {
		caller := memberCaller(projectID, GrantedPermission{
			Permission: models.PermissionProjectMember,
			LabelIDs:   []uuid.UUID{labelA, labelB},
		})
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, caller)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		pred := safe[0]["labels"]
		assert.Equal(t, OpContainsAny, pred.Op)
		assert.ElementsMatch(t, []uuid.UUID{labelA, labelB}, pred.Value)
	})

	t.Run("any unscoped matching grant lifts the restriction", func(t *testing.T) {
		caller := memberCaller(projectID,
			GrantedPermission{Permission: models.PermissionProjectMember, LabelIDs: []uuid.UUID{labelA}},
			GrantedPermission{Permission: models.PermissionProjectViewer},
		)
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, caller)
		require.NoError(t, err)
		_, restricted := safe[0]["labels"]
		assert.False(t, restricted)
	})

	t.Run("non-matching grants do not contribute label scope", func(t *testing.T) {
		caller := memberCaller(projectID,
			GrantedPermission{Permission: models.PermissionProjectMember, LabelIDs: []uuid.UUID{labelA}},
			GrantedPermission{Permission: models.PermissionManageBilling},
		)
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, caller)
		require.NoError(t, err)
		pred := safe[0]["labels"]
		assert.Equal(t, OpContainsAny, pred.Op)
		assert.ElementsMatch(t, []uuid.UUID{labelA}, pred.Value)
	})

	t.Run("update scoping carries label restriction", func(t *testing.T) {
		caller := memberCaller(projectID, GrantedPermission{
			Permission: models.PermissionProjectMember,
			LabelIDs:   []uuid.UUID{labelA},
		})
		safe, err := e.CheckUpdatePermissions(incidents, RawQuery{"severity": "low"}, map[string]interface{}{"title": "t"}, caller)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		assert.Equal(t, OpContainsAny, safe[0]["labels"].Op)
		assert.Equal(t, Equal(projectID), safe[0]["project_id"])
	})
}

func TestReadDelegation(t *testing.T) {
	r := newTestRegistry(t)
	incidents, _ := r.Get("incidents")
	incidents.CanAccessIfCanReadOn = &ReadDelegation{Table: "monitors", RelationColumn: "monitor_id"}
	e := NewEvaluator(r, false, zap.NewNop())
	projectID := uuid.New()
	labelA := uuid.New()

	t.Run("label-restricted related read folds into a subquery", func(t *testing.T) {
		caller := memberCaller(projectID, GrantedPermission{
			Permission: models.PermissionProjectMember,
			LabelIDs:   []uuid.UUID{labelA},
		})
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, caller)
		require.NoError(t, err)
		pred := safe[0]["monitor_id"]
		assert.Equal(t, OpSubQuery, pred.Op)
		require.NotNil(t, pred.Sub)
		assert.Equal(t, "monitors", pred.Sub.Table)
		assert.Equal(t, OpContainsAny, pred.Sub.Where["labels"].Op)
	})

	t.Run("unrestricted related read adds no subquery", func(t *testing.T) {
		caller := memberCaller(projectID)
		safe, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, nil, caller)
		require.NoError(t, err)
		_, ok := safe[0]["monitor_id"]
		assert.False(t, ok)
	})
}

func TestCheckSelectPermission(t *testing.T) {
	r := newTestRegistry(t)
	incidents, _ := r.Get("incidents")
	incidents.ColumnPermissions = map[string]AccessControl{
		"severity": {Read: []models.Permission{models.PermissionProjectOwner}},
	}
	e := NewEvaluator(r, false, zap.NewNop())
	projectID := uuid.New()

	t.Run("selecting a read-restricted column is not authorized", func(t *testing.T) {
		caller := memberCaller(projectID)
		_, _, _, err := e.CheckReadPermission(incidents, RawQuery{}, RawSelect{"severity": true}, caller)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
		assert.Contains(t, err.Error(), "severity")
	})

	t.Run("relation-readable columns pass through nested selects", func(t *testing.T) {
		caller := memberCaller(projectID)
		_, sel, rel, err := e.CheckReadPermission(incidents, RawQuery{},
			RawSelect{"title": true, "monitor": map[string]interface{}{"name": true}}, caller)
		require.NoError(t, err)
		assert.True(t, sel["title"])
		assert.True(t, rel["monitor"]["name"])
	})

	t.Run("querying a read-restricted column is not authorized", func(t *testing.T) {
		caller := memberCaller(projectID)
		_, _, _, err := e.CheckReadPermission(incidents, RawQuery{"severity": "high"}, nil, caller)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
	})
}

func TestCheckDeletePermission(t *testing.T) {
	r := newTestRegistry(t)
	e := NewEvaluator(r, false, zap.NewNop())
	incidents, _ := r.Get("incidents")
	projectID := uuid.New()

	t.Run("member cannot delete", func(t *testing.T) {
		caller := memberCaller(projectID)
		_, err := e.CheckDeletePermission(incidents, RawQuery{"id": uuid.New().String()}, caller)
		require.Error(t, err)
		assert.True(t, services.IsNotAuthorizedError(err))
	})

	t.Run("admin delete is tenant scoped", func(t *testing.T) {
		caller := memberCaller(projectID, GrantedPermission{Permission: models.PermissionProjectAdmin})
		safe, err := e.CheckDeletePermission(incidents, RawQuery{"id": uuid.New().String()}, caller)
		require.NoError(t, err)
		require.Len(t, safe, 1)
		assert.Equal(t, Equal(projectID), safe[0]["project_id"])
	})
}
