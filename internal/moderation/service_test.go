package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockBackend struct{ mock.Mock }

func (m *MockBackend) ListLoans(ctx context.Context) ([]models.LoanProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanProduct), args.Error(1)
}
func (m *MockBackend) CreateLoan(ctx context.Context, in models.LoanInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}
func (m *MockBackend) UpdateLoan(ctx context.Context, id string, patch models.LoanPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
func (m *MockBackend) DeleteLoan(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockBackend) ListApplications(ctx context.Context) ([]models.LoanApplication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanApplication), args.Error(1)
}
func (m *MockBackend) ListUserApplications(ctx context.Context, email string) ([]models.LoanApplication, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LoanApplication), args.Error(1)
}
func (m *MockBackend) UpdateApplication(ctx context.Context, id string, patch models.ApplicationPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
func (m *MockBackend) DeleteApplication(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newService(b Backend) *Service {
	s := NewService(b, time.Minute, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func applications() []models.LoanApplication {
	return []models.LoanApplication{
		{ID: "a1", Status: models.StatusPending, ApplicantEmail: "ana@example.com"},
		{ID: "a2", Status: models.StatusApproved, ApplicantEmail: "bo@example.com"},
		{ID: "a3", Status: "", ApplicantEmail: "cy@example.com"},
	}
}

func TestApplications_PendingViewHoldsOnlyPending(t *testing.T) {
	ctx := context.Background()
	b := new(MockBackend)
	b.On("ListApplications", ctx).Return(applications(), nil).Once()

	got, err := newService(b).Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a3", got[1].ID)
	b.AssertExpectations(t)
}

func TestApprove_RemovesFromPendingWithoutRefetch(t *testing.T) {
	ctx := context.Background()
	decided := applications()
	decided[0].Status = models.StatusApproved

	b := new(MockBackend)
	// The list view, then the fresh read Approve decides from.
	b.On("ListApplications", ctx).Return(applications(), nil).Twice()
	b.On("ListApplications", ctx).Return(decided, nil).Once()
	b.On("UpdateApplication", ctx, "a1", mock.MatchedBy(func(p models.ApplicationPatch) bool {
		return p.Status != nil && *p.Status == models.StatusApproved &&
			p.ApprovedBy == "mgr@example.com" && p.ApprovedAt.Equal(fixedNow)
	})).Return(nil).Once()

	s := newService(b)
	_, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)

	app, err := s.Approve(ctx, "s1", "a1", "mgr@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)

	pending, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a3", pending[0].ID)

	// A second approval of the same id never reaches the backend.
	_, err = s.Approve(ctx, "s1", "a1", "mgr@example.com")
	assert.ErrorIs(t, err, api.ErrNotFound)
	b.AssertNumberOfCalls(t, "UpdateApplication", 1)
	b.AssertExpectations(t)
}

func TestReject_FailedPatchKeepsItemPending(t *testing.T) {
	ctx := context.Background()
	b := new(MockBackend)
	b.On("ListApplications", ctx).Return(applications(), nil).Once()
	b.On("UpdateApplication", ctx, "a1", mock.Anything).Return(errors.New("boom")).Once()

	s := newService(b)
	_, err := s.Reject(ctx, "s1", "a1", "incomplete documents")
	require.Error(t, err)

	pending, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, models.StatusPending, pending[0].Status)
	b.AssertExpectations(t)
}

func TestReject_SendsReason(t *testing.T) {
	ctx := context.Background()
	b := new(MockBackend)
	b.On("ListApplications", ctx).Return(applications(), nil).Once()
	b.On("UpdateApplication", ctx, "a3", mock.MatchedBy(func(p models.ApplicationPatch) bool {
		return *p.Status == models.StatusRejected && p.RejectionReason == "income too low"
	})).Return(nil).Once()

	app, err := newService(b).Reject(ctx, "s1", "a3", " income too low ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, app.Status)
	b.AssertExpectations(t)
}

func TestToggleVisibility(t *testing.T) {
	ctx := context.Background()
	loans := []models.LoanProduct{{ID: "l1", ShowOnHome: false}, {ID: "l2", ShowOnHome: true}}
	show := true

	b := new(MockBackend)
	b.On("ListLoans", ctx).Return(loans, nil).Once()
	b.On("UpdateLoan", ctx, "l1", models.LoanPatch{ShowOnHome: &show}).Return(nil).Once()

	s := newService(b)
	next, err := s.ToggleVisibility(ctx, "s1", ViewAllLoans, "l1")
	require.NoError(t, err)
	assert.True(t, next)

	held, err := s.Loans(ctx, "s1", ViewAllLoans, false)
	require.NoError(t, err)
	assert.True(t, held[0].ShowOnHome)
	b.AssertExpectations(t)
}

func TestToggleVisibility_FailureReconcilesOnNextLoad(t *testing.T) {
	ctx := context.Background()
	loans := []models.LoanProduct{{ID: "l1", ShowOnHome: false}}

	b := new(MockBackend)
	b.On("ListLoans", ctx).Return(loans, nil).Twice()
	b.On("UpdateLoan", ctx, "l1", mock.Anything).Return(errors.New("timeout")).Once()

	s := newService(b)
	_, err := s.ToggleVisibility(ctx, "s1", ViewAllLoans, "l1")
	require.Error(t, err)

	held, err := s.Loans(ctx, "s1", ViewAllLoans, false)
	require.NoError(t, err)
	assert.False(t, held[0].ShowOnHome)
	b.AssertExpectations(t)
}

func TestDeleteLoan_NeverRemovedLocallyOnFailure(t *testing.T) {
	ctx := context.Background()
	loans := []models.LoanProduct{{ID: "l1"}, {ID: "l2"}}

	b := new(MockBackend)
	b.On("ListLoans", ctx).Return(loans, nil).Once()
	b.On("DeleteLoan", ctx, "l1").Return(&api.Error{Status: 500, Endpoint: "DELETE /all-loans/:id", Message: "internal server error"}).Once()
	b.On("DeleteLoan", ctx, "l2").Return(nil).Once()

	s := newService(b)
	_, err := s.Loans(ctx, "s1", ViewManageLoans, false)
	require.NoError(t, err)

	require.Error(t, s.DeleteLoan(ctx, "s1", ViewManageLoans, "l1"))
	held, _ := s.Loans(ctx, "s1", ViewManageLoans, false)
	assert.Len(t, held, 2)

	require.NoError(t, s.DeleteLoan(ctx, "s1", ViewManageLoans, "l2"))
	held, _ = s.Loans(ctx, "s1", ViewManageLoans, false)
	require.Len(t, held, 1)
	assert.Equal(t, "l1", held[0].ID)
	b.AssertExpectations(t)
}

func TestCancelApplication_ApprovedNeverCallsBackend(t *testing.T) {
	ctx := context.Background()
	mine := []models.LoanApplication{
		{ID: "a1", Status: models.StatusApproved},
		{ID: "a2", Status: models.StatusPending},
	}
	b := new(MockBackend)
	b.On("ListUserApplications", ctx, "ana@example.com").Return(mine, nil).Once()
	b.On("DeleteApplication", ctx, "a2").Return(nil).Once()

	s := newService(b)
	err := s.CancelApplication(ctx, "s1", "ana@example.com", "a1")
	assert.ErrorIs(t, err, models.ErrNotDeletable)
	b.AssertNotCalled(t, "DeleteApplication", ctx, "a1")

	require.NoError(t, s.CancelApplication(ctx, "s1", "ana@example.com", "a2"))
	held, err := s.MyApplications(ctx, "s1", "ana@example.com", false)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "a1", held[0].ID)
	b.AssertExpectations(t)
}

func TestCancelApplication_UnknownID(t *testing.T) {
	ctx := context.Background()
	b := new(MockBackend)
	b.On("ListUserApplications", ctx, "ana@example.com").Return([]models.LoanApplication{}, nil).Once()

	err := newService(b).CancelApplication(ctx, "s1", "ana@example.com", "zz")
	assert.True(t, api.IsNotFound(err))
	b.AssertExpectations(t)
}

func TestCreateLoan_InvalidatesManageView(t *testing.T) {
	ctx := context.Background()
	in := models.LoanInput{Title: "Green Energy"}
	b := new(MockBackend)
	b.On("ListLoans", ctx).Return([]models.LoanProduct{{ID: "l1"}}, nil).Once()
	b.On("CreateLoan", ctx, in).Return("l9", nil).Once()
	b.On("ListLoans", ctx).Return([]models.LoanProduct{{ID: "l1"}, {ID: "l9"}}, nil).Once()

	s := newService(b)
	_, err := s.Loans(ctx, "s1", ViewManageLoans, false)
	require.NoError(t, err)

	id, err := s.CreateLoan(ctx, "s1", in)
	require.NoError(t, err)
	assert.Equal(t, "l9", id)

	held, err := s.Loans(ctx, "s1", ViewManageLoans, false)
	require.NoError(t, err)
	assert.Len(t, held, 2)
	b.AssertExpectations(t)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	b := new(MockBackend)
	b.On("ListUserApplications", ctx, "ana@example.com").
		Return([]models.LoanApplication{{ID: "a1", PaymentStatus: models.PaymentUnpaid}}, nil).Once()

	s := newService(b)
	_, err := s.MyApplications(ctx, "s1", "ana@example.com", false)
	require.NoError(t, err)

	s.MarkPaid("s1", models.PaymentRecord{ApplicationID: "a1", TransactionID: "tx_9"})
	held, err := s.MyApplications(ctx, "s1", "ana@example.com", false)
	require.NoError(t, err)
	assert.True(t, held[0].IsPaid())
	assert.Equal(t, "tx_9", held[0].TransactionID)
	b.AssertExpectations(t)
}

// applicationStore is a backend that keeps application statuses and can
// hold one list call open until released.
type applicationStore struct {
	MockBackend

	mu      sync.Mutex
	apps    []models.LoanApplication
	patches []models.ApplicationStatus
	hold    chan struct{}
	held    chan struct{}
}

func (b *applicationStore) ListApplications(context.Context) ([]models.LoanApplication, error) {
	b.mu.Lock()
	snapshot := append([]models.LoanApplication(nil), b.apps...)
	hold, held := b.hold, b.held
	b.hold = nil
	b.mu.Unlock()
	if hold != nil {
		held <- struct{}{}
		<-hold
	}
	return snapshot, nil
}

func (b *applicationStore) UpdateApplication(_ context.Context, id string, patch models.ApplicationPatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.apps {
		if b.apps[i].ID != id {
			continue
		}
		if b.apps[i].Status.Terminal() {
			return fmt.Errorf("application %s already %s", id, b.apps[i].Status)
		}
		b.apps[i].Status = *patch.Status
		b.patches = append(b.patches, *patch.Status)
		return nil
	}
	return api.ErrNotFound
}

// holdNextList makes the next list call wait until release runs. held
// receives once that call has read the store.
func (b *applicationStore) holdNextList() (release func(), held <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = make(chan struct{})
	b.held = make(chan struct{})
	hold := b.hold
	return func() { close(hold) }, b.held
}

func TestApprove_RefreshInFlightCannotRestoreDecided(t *testing.T) {
	ctx := context.Background()
	b := &applicationStore{apps: applications()}
	s := newService(b)
	_, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)

	release, held := b.holdNextList()
	refreshed := make(chan []models.LoanApplication)
	go func() {
		apps, err := s.Applications(ctx, "s1", ViewPending, true)
		assert.NoError(t, err)
		refreshed <- apps
	}()
	<-held

	_, err = s.Approve(ctx, "s1", "a1", "mgr@example.com")
	require.NoError(t, err)
	release()

	for _, a := range <-refreshed {
		assert.NotEqual(t, "a1", a.ID, "refresh started before the approval")
	}
	pending, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a3", pending[0].ID)

	_, err = s.Reject(ctx, "s1", "a1", "changed my mind")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, []models.ApplicationStatus{models.StatusApproved}, b.patches)
	assert.Equal(t, models.StatusApproved, b.apps[0].Status)
}

func TestApprove_ConcurrentWithListing(t *testing.T) {
	ctx := context.Background()
	var apps []models.LoanApplication
	for i := 0; i < 20; i++ {
		apps = append(apps, models.LoanApplication{ID: fmt.Sprintf("a%d", i), Status: models.StatusPending})
	}
	b := &applicationStore{apps: apps}
	s := newService(b)

	var wg sync.WaitGroup
	for i := range apps {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			_, err := s.Approve(ctx, "s1", id, "mgr@example.com")
			assert.NoError(t, err)
		}(apps[i].ID)
		go func(force bool) {
			defer wg.Done()
			_, err := s.Applications(ctx, "s1", ViewPending, force)
			assert.NoError(t, err)
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Len(t, b.patches, len(apps))
	pending, err := s.Applications(ctx, "s1", ViewPending, false)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
