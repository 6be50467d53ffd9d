package accesscontrol

import (
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/services"
)

// ResolveAcrossTenants answers a tenant-less read against a tenant-scoped
// model by evaluating the read independently for every project in the
// caller's global grant and unioning the scoped queries that succeed.
//
// A project where the caller lacks read permission is skipped, not fatal;
// the caller simply sees no rows from it. Only when every project fails is
// an error returned, preferring the last per-project failure so the caller
// learns why nothing was visible.
func (e *Evaluator) ResolveAcrossTenants(d *EntityDescriptor, rawQuery RawQuery, rawSelect RawSelect, caller *CallerContext) (SafeQuery, error) {
	if caller.GlobalGrant == nil || len(caller.GlobalGrant.ProjectIDs) == 0 {
		return nil, services.NewNotAuthorizedError(
			"you do not have access to any project that can read " + d.Table)
	}

	var (
		union   SafeQuery
		lastErr error
	)

	for _, projectID := range caller.GlobalGrant.ProjectIDs {
		scoped := caller.WithProject(projectID)
		perTenant, _, _, err := e.CheckReadPermission(d, rawQuery, rawSelect, scoped)
		if err != nil {
			// Structural errors are the same for every tenant; fail fast so
			// a bad column is never masked as an authorization problem.
			if services.IsInvalidColumnError(err) || services.IsBadDataError(err) {
				return nil, err
			}
			if e.logger != nil {
				e.logger.Debug("skipping tenant in multi-tenant read",
					zap.String("table", d.Table),
					zap.String("project_id", projectID.String()),
					zap.Error(err))
			}
			lastErr = err
			continue
		}
		union = append(union, perTenant...)
	}

	if len(union) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, services.NewNotAuthorizedError(
			"you do not have access to any project that can read " + d.Table)
	}
	return union, nil
}
