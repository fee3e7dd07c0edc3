// Package moderation owns the dashboard working sets and the mutations
// managers, admins and owners apply to them.
//
// Approve and reject read the pending list fresh, then drop the decided item
// from it as soon as the backend accepts the patch, without another fetch.
// Visibility toggles flip locally first and reconcile on the next fetch.
// Deletes are destructive and only applied locally after the backend
// confirms them.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/listview"
	"github.com/diewo77/microloan/internal/models"
	"go.uber.org/zap"
)

// Dashboard views backed by a working set.
const (
	ViewManageLoans     = "manage-loans"
	ViewAllLoans        = "all-loans"
	ViewPending         = "pending-applications"
	ViewApproved        = "approved-applications"
	ViewAllApplications = "all-applications"
	ViewMyLoans         = "my-loans"
)

// Backend is the slice of the REST API moderation needs.
type Backend interface {
	ListLoans(ctx context.Context) ([]models.LoanProduct, error)
	CreateLoan(ctx context.Context, in models.LoanInput) (string, error)
	UpdateLoan(ctx context.Context, id string, patch models.LoanPatch) error
	DeleteLoan(ctx context.Context, id string) error
	ListApplications(ctx context.Context) ([]models.LoanApplication, error)
	ListUserApplications(ctx context.Context, email string) ([]models.LoanApplication, error)
	UpdateApplication(ctx context.Context, id string, patch models.ApplicationPatch) error
	DeleteApplication(ctx context.Context, id string) error
}

// Service is safe for concurrent use.
type Service struct {
	backend Backend
	loans   *listview.WorkingSets[models.LoanProduct]
	apps    *listview.WorkingSets[models.LoanApplication]
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service whose working sets tolerate staleness for
// the given window before refetching.
func NewService(backend Backend, staleness time.Duration, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		loans:   listview.NewWorkingSets[models.LoanProduct](staleness),
		apps:    listview.NewWorkingSets[models.LoanApplication](staleness),
		logger:  logger,
		now:     time.Now,
	}
}

func loanByID(id string) func(models.LoanProduct) bool {
	return func(l models.LoanProduct) bool { return l.ID == id }
}

func appByID(id string) func(models.LoanApplication) bool {
	return func(a models.LoanApplication) bool { return a.ID == id }
}

// Loans returns the loan products of a dashboard view for one session.
func (s *Service) Loans(ctx context.Context, session, view string, force bool) ([]models.LoanProduct, error) {
	return s.loans.Load(ctx, listview.Key(session, view), s.backend.ListLoans, force)
}

// Applications returns the applications of a moderation view. Pending and
// approved views hold only applications in that status.
func (s *Service) Applications(ctx context.Context, session, view string, force bool) ([]models.LoanApplication, error) {
	fetch := s.backend.ListApplications
	switch view {
	case ViewPending:
		fetch = s.withStatus(models.StatusPending)
	case ViewApproved:
		fetch = s.withStatus(models.StatusApproved)
	}
	return s.apps.Load(ctx, listview.Key(session, view), fetch, force)
}

func (s *Service) withStatus(status models.ApplicationStatus) listview.Fetch[models.LoanApplication] {
	return func(ctx context.Context) ([]models.LoanApplication, error) {
		all, err := s.backend.ListApplications(ctx)
		if err != nil {
			return nil, err
		}
		out := all[:0:0]
		for _, a := range all {
			if a.CurrentStatus() == status {
				out = append(out, a)
			}
		}
		return out, nil
	}
}

// MyApplications returns the applications submitted by email.
func (s *Service) MyApplications(ctx context.Context, session, email string, force bool) ([]models.LoanApplication, error) {
	fetch := func(ctx context.Context) ([]models.LoanApplication, error) {
		return s.backend.ListUserApplications(ctx, email)
	}
	return s.apps.Load(ctx, listview.Key(session, ViewMyLoans), fetch, force)
}

// Invalidate forces the next load of view to refetch.
func (s *Service) Invalidate(session string, views ...string) {
	for _, v := range views {
		key := listview.Key(session, v)
		s.loans.Invalidate(key)
		s.apps.Invalidate(key)
	}
}

// Prune drops working sets unused for longer than idle.
func (s *Service) Prune(idle time.Duration) int {
	return s.loans.Prune(idle) + s.apps.Prune(idle)
}

// Application returns one application of a moderation view.
func (s *Service) Application(ctx context.Context, session, view, id string) (models.LoanApplication, error) {
	key := listview.Key(session, view)
	if app, ok := s.apps.Find(key, appByID(id)); ok {
		return app, nil
	}
	if _, err := s.Applications(ctx, session, view, false); err != nil {
		return models.LoanApplication{}, err
	}
	if app, ok := s.apps.Find(key, appByID(id)); ok {
		return app, nil
	}
	return models.LoanApplication{}, fmt.Errorf("application %s: %w", id, api.ErrNotFound)
}

// pendingApplication refetches the pending view and returns id from it, so a
// decision is never built from a held copy that another session, or an
// earlier decision, already moved on.
func (s *Service) pendingApplication(ctx context.Context, session, id string) (models.LoanApplication, error) {
	apps, err := s.Applications(ctx, session, ViewPending, true)
	if err != nil {
		return models.LoanApplication{}, err
	}
	for _, a := range apps {
		if a.ID == id {
			return a, nil
		}
	}
	return models.LoanApplication{}, fmt.Errorf("application %s: %w", id, api.ErrNotFound)
}

// Approve decides a pending application. Decided applications are refused
// with models.ErrTerminalStatus before any backend call.
func (s *Service) Approve(ctx context.Context, session, id, actor string) (models.LoanApplication, error) {
	app, err := s.pendingApplication(ctx, session, id)
	if err != nil {
		return app, err
	}
	patch, err := app.Approve(actor, s.now().UTC())
	if err != nil {
		return app, err
	}
	return s.decide(ctx, session, app, patch)
}

// Reject decides a pending application with an optional reason.
func (s *Service) Reject(ctx context.Context, session, id, reason string) (models.LoanApplication, error) {
	app, err := s.pendingApplication(ctx, session, id)
	if err != nil {
		return app, err
	}
	patch, err := app.Reject(reason, s.now().UTC())
	if err != nil {
		return app, err
	}
	return s.decide(ctx, session, app, patch)
}

func (s *Service) decide(ctx context.Context, session string, app models.LoanApplication, patch models.ApplicationPatch) (models.LoanApplication, error) {
	if err := s.backend.UpdateApplication(ctx, app.ID, patch); err != nil {
		return app, fmt.Errorf("update application %s: %w", app.ID, err)
	}
	s.apps.Remove(listview.Key(session, ViewPending), appByID(app.ID))
	s.Invalidate(session, ViewApproved, ViewAllApplications)
	s.logger.Info("application decided",
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)))
	return app, nil
}

// ToggleVisibility flips showOnHome for a loan in view and returns the new
// value. The local copy changes first; on failure the set is marked stale
// so the next load reconciles with the backend.
func (s *Service) ToggleVisibility(ctx context.Context, session, view, id string) (bool, error) {
	key := listview.Key(session, view)
	if _, ok := s.loans.Find(key, loanByID(id)); !ok {
		if _, err := s.Loans(ctx, session, view, false); err != nil {
			return false, err
		}
	}
	var next bool
	if !s.loans.Update(key, loanByID(id), func(l *models.LoanProduct) {
		l.ShowOnHome = !l.ShowOnHome
		next = l.ShowOnHome
	}) {
		return false, fmt.Errorf("loan %s: %w", id, api.ErrNotFound)
	}
	if err := s.backend.UpdateLoan(ctx, id, models.LoanPatch{ShowOnHome: &next}); err != nil {
		s.loans.Invalidate(key)
		return !next, fmt.Errorf("toggle visibility of loan %s: %w", id, err)
	}
	return next, nil
}

// CreateLoan publishes a new product.
func (s *Service) CreateLoan(ctx context.Context, session string, in models.LoanInput) (string, error) {
	id, err := s.backend.CreateLoan(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create loan: %w", err)
	}
	s.Invalidate(session, ViewManageLoans, ViewAllLoans)
	return id, nil
}

// UpdateLoan replaces the editable fields of a product.
func (s *Service) UpdateLoan(ctx context.Context, session, id string, in models.LoanInput) error {
	show := in.ShowOnHome
	if err := s.backend.UpdateLoan(ctx, id, models.LoanPatch{ShowOnHome: &show, LoanInput: &in}); err != nil {
		return fmt.Errorf("update loan %s: %w", id, err)
	}
	s.Invalidate(session, ViewManageLoans, ViewAllLoans)
	return nil
}

// DeleteLoan removes a product. The local copy is only touched once the
// backend confirmed the delete.
func (s *Service) DeleteLoan(ctx context.Context, session, view, id string) error {
	if err := s.backend.DeleteLoan(ctx, id); err != nil {
		return fmt.Errorf("delete loan %s: %w", id, err)
	}
	s.loans.Remove(listview.Key(session, view), loanByID(id))
	s.logger.Info("loan deleted", zap.String("loan_id", id))
	return nil
}

// MyApplication returns one application submitted by email. Applications
// of other users are reported as not found.
func (s *Service) MyApplication(ctx context.Context, session, email, id string) (models.LoanApplication, error) {
	key := listview.Key(session, ViewMyLoans)
	if app, ok := s.apps.Find(key, appByID(id)); ok {
		return app, nil
	}
	if _, err := s.MyApplications(ctx, session, email, false); err != nil {
		return models.LoanApplication{}, err
	}
	if app, ok := s.apps.Find(key, appByID(id)); ok {
		return app, nil
	}
	return models.LoanApplication{}, fmt.Errorf("application %s: %w", id, api.ErrNotFound)
}

// CancelApplication lets an owner withdraw a pending application. Anything
// else is refused with models.ErrNotDeletable without calling the backend.
func (s *Service) CancelApplication(ctx context.Context, session, email, id string) error {
	app, err := s.MyApplication(ctx, session, email, id)
	if err != nil {
		return err
	}
	if !app.CanDelete() {
		return models.ErrNotDeletable
	}
	if err := s.backend.DeleteApplication(ctx, id); err != nil {
		return fmt.Errorf("delete application %s: %w", id, err)
	}
	s.apps.Remove(listview.Key(session, ViewMyLoans), appByID(id))
	return nil
}

// MarkPaid records a confirmed payment in the owner's list.
func (s *Service) MarkPaid(session string, rec models.PaymentRecord) {
	key := listview.Key(session, ViewMyLoans)
	if !s.apps.Update(key, appByID(rec.ApplicationID), func(a *models.LoanApplication) { a.MarkPaid(rec) }) {
		s.apps.Invalidate(key)
	}
}
