package session

import (
	"context"

	"checkin/internal/admin"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/registry"
	"checkin/internal/eligibility"
	"checkin/internal/identify"
	id "checkin/pkg/domain"
	audit "checkin/pkg/platform/audit"
)

// Resolver identifies scanned codes and typed fragments.
type Resolver interface {
	ParseCode(raw string) (id.TokenCode, bool)
	ResolveByTokenCode(ctx context.Context, raw string) (*identify.TokenResolution, error)
	ResolveByIdentityFragment(fragment string, snapshot []*models.Registrant) []identify.Candidate
}

// Registry is the token registry surface the controller calls.
type Registry interface {
	Bind(ctx context.Context, req registry.BindRequest) (*models.BindResult, error)
	Registrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
	Registrants(ctx context.Context) ([]*models.Registrant, error)
}

type Validator interface {
	Validate(r *models.Registrant) eligibility.Result
}

// Overrider performs administrative forced binds.
type Overrider interface {
	ForceBind(ctx context.Context, req admin.ForceBindRequest) (*models.BindResult, error)
}

type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// HealthReporter receives the outcome of live binds so connectivity can
// degrade before the next probe.
type HealthReporter interface {
	ReportFailure()
	ReportSuccess()
}
