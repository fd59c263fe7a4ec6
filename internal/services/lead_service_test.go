package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pipecrm/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) UpdateStage(ctx context.Context, tenantID, id uuid.UUID, stage string, position int) error {
	args := m.Called(ctx, tenantID, id, stage, position)
	return args.Error(0)
}

func (m *MockLeadRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockLeadRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Lead, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Lead), args.Error(1)
}

func (m *MockLeadRepository) ListByStage(ctx context.Context, tenantID uuid.UUID, stage string) ([]*models.Lead, error) {
	args := m.Called(ctx, tenantID, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Lead), args.Error(1)
}

func (m *MockLeadRepository) StageSummaries(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StageSummary), args.Error(1)
}

type MockQuotaService struct {
	mock.Mock
}

func (m *MockQuotaService) Get(ctx context.Context, tenantID uuid.UUID) (*models.QuotaRecord, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuotaRecord), args.Error(1)
}

func (m *MockQuotaService) Consume(ctx context.Context, tenantID uuid.UUID, cost int) (*ConsumeResult, error) {
	args := m.Called(ctx, tenantID, cost)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConsumeResult), args.Error(1)
}

func (m *MockQuotaService) Restore(ctx context.Context, tenantID uuid.UUID, amount int) error {
	args := m.Called(ctx, tenantID, amount)
	return args.Error(0)
}

// fakeCache is a minimal in-memory CacheService; the lead service treats
// cache failures as soft so no-op semantics are enough here.
type fakeCache struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*models.Lead
}

func newFakeCache() *fakeCache {
	return &fakeCache{leads: make(map[uuid.UUID]*models.Lead)}
}

func (f *fakeCache) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leads[leadID], nil
}

func (f *fakeCache) SetLead(ctx context.Context, tenantID uuid.UUID, lead *models.Lead, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
	return nil
}

func (f *fakeCache) DeleteLead(ctx context.Context, tenantID, leadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.leads, leadID)
	return nil
}

func (f *fakeCache) GetPipelineSummary(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	return nil, nil
}

func (f *fakeCache) SetPipelineSummary(ctx context.Context, tenantID uuid.UUID, summaries []*models.StageSummary, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) DeletePipelineSummary(ctx context.Context, tenantID uuid.UUID) error {
	return nil
}

func (f *fakeCache) InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error {
	return nil
}

func (f *fakeCache) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) GetString(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	return nil
}

type LeadServiceTestSuite struct {
	suite.Suite
	mockRepo  *MockLeadRepository
	mockQuota *MockQuotaService
	cache     *fakeCache
	service   LeadService
	tenantID  uuid.UUID
	ownerID   uuid.UUID
	ctx       context.Context
}

func (suite *LeadServiceTestSuite) SetupTest() {
	suite.mockRepo = &MockLeadRepository{}
	suite.mockQuota = &MockQuotaService{}
	suite.cache = newFakeCache()
	suite.service = NewLeadService(suite.mockRepo, suite.mockQuota, suite.cache)
	suite.tenantID = uuid.New()
	suite.ownerID = uuid.New()
	suite.ctx = context.Background()

	suite.mockRepo.Test(suite.T())
	suite.mockQuota.Test(suite.T())
}

func (suite *LeadServiceTestSuite) TearDownTest() {
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockQuota.AssertExpectations(suite.T())
}

func TestLeadServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LeadServiceTestSuite))
}

func (suite *LeadServiceTestSuite) TestCreate_Success() {
	req := &CreateLeadRequest{Name: "  Alice Martin ", Value: 1200}

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil)
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Run(func(args mock.Arguments) {
		lead := args.Get(1).(*models.Lead)
		assert.Equal(suite.T(), "Alice Martin", lead.Name)
		assert.Equal(suite.T(), models.StageNew, lead.Stage)
		assert.Equal(suite.T(), suite.tenantID, lead.TenantID)
		assert.Equal(suite.T(), suite.ownerID, lead.OwnerID)
		assert.NotEqual(suite.T(), uuid.Nil, lead.ID)
	})

	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, req)
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), lead)
	assert.Equal(suite.T(), 1200.0, lead.Value)

	suite.mockQuota.AssertNotCalled(suite.T(), "Restore", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *LeadServiceTestSuite) TestCreate_EmptyName() {
	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "   "})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)
	assert.Contains(suite.T(), err.Error(), "name is required")
}

func (suite *LeadServiceTestSuite) TestCreate_InvalidStage() {
	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Bob", Stage: "archived"})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)
	assert.Contains(suite.T(), err.Error(), "invalid stage")
}

func (suite *LeadServiceTestSuite) TestCreate_QuotaExhausted() {
	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{
			Success:         false,
			TokensRemaining: 0,
			Error:           "Quota mensuel atteint : 100/100 fiches utilisées ce mois-ci. Réinitialisation le mois prochain.",
		}, nil)

	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Claire"})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)

	var qe *QuotaError
	assert.ErrorAs(suite.T(), err, &qe)
	assert.Equal(suite.T(), QuotaExceeded, qe.Kind)
	assert.Contains(suite.T(), qe.Message, "Quota mensuel atteint")

	// No lead must be persisted and no compensation attempted.
	suite.mockRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
	suite.mockQuota.AssertNotCalled(suite.T(), "Restore", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *LeadServiceTestSuite) TestCreate_QuotaStoreDown() {
	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return((*ConsumeResult)(nil), newQuotaError(QuotaStoreUnavailable, "consume quota: backing store unavailable", errors.New("connection refused")))

	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Denis"})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)
	assert.Equal(suite.T(), QuotaStoreUnavailable, QuotaErrKind(err))
	suite.mockRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *LeadServiceTestSuite) TestCreate_PersistFailureRestoresCredit() {
	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil)
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).
		Return(errors.New("insert failed"))
	suite.mockQuota.On("Restore", suite.ctx, suite.tenantID, 0).Return(nil).Once()

	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Émile"})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)
	assert.Contains(suite.T(), err.Error(), "persist lead")
	assert.Contains(suite.T(), err.Error(), "insert failed")
}

func (suite *LeadServiceTestSuite) TestCreate_PersistFailureWithFailedRestore() {
	// A failed compensation is logged and swallowed; the caller still gets
	// the original persistence error.
	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil)
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).
		Return(errors.New("insert failed"))
	suite.mockQuota.On("Restore", suite.ctx, suite.tenantID, 0).
		Return(newQuotaError(QuotaStoreUnavailable, "restore quota: backing store unavailable", errors.New("still down"))).Once()

	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Fanny"})
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), lead)
	assert.Contains(suite.T(), err.Error(), "persist lead")
}

func (suite *LeadServiceTestSuite) TestCreate_DoubleSubmitRejected() {
	started := make(chan struct{})
	release := make(chan struct{})

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).Once()
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Gaston"})
		assert.NoError(suite.T(), err)
	}()

	<-started

	// Second submit for the same tenant while the first holds the slot.
	lead, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Gaston"})
	assert.ErrorIs(suite.T(), err, ErrSubmissionInFlight)
	assert.Nil(suite.T(), lead)

	close(release)
	wg.Wait()
}

func (suite *LeadServiceTestSuite) TestCreate_OtherTenantNotBlocked() {
	otherTenant := uuid.New()
	started := make(chan struct{})
	release := make(chan struct{})

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).Once()
	suite.mockQuota.On("Consume", suite.ctx, otherTenant, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 99}, nil).Once()
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Twice()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := suite.service.Create(suite.ctx, suite.tenantID, suite.ownerID, &CreateLeadRequest{Name: "Hugo"})
		assert.NoError(suite.T(), err)
	}()

	<-started

	lead, err := suite.service.Create(suite.ctx, otherTenant, suite.ownerID, &CreateLeadRequest{Name: "Inès"})
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), lead)

	close(release)
	wg.Wait()
}

func (suite *LeadServiceTestSuite) TestGet_CachesAfterMiss() {
	leadID := uuid.New()
	stored := &models.Lead{ID: leadID, TenantID: suite.tenantID, Name: "Cached Lead", Stage: models.StageNew}

	suite.mockRepo.On("GetByID", suite.ctx, suite.tenantID, leadID).Return(stored, nil).Once()

	first, err := suite.service.Get(suite.ctx, suite.tenantID, leadID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Cached Lead", first.Name)

	// Second read comes from the cache, no further repository call.
	second, err := suite.service.Get(suite.ctx, suite.tenantID, leadID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.ID, second.ID)
	suite.mockRepo.AssertNumberOfCalls(suite.T(), "GetByID", 1)
}

func (suite *LeadServiceTestSuite) TestMoveStage_InvalidStage() {
	err := suite.service.MoveStage(suite.ctx, suite.tenantID, uuid.New(), "parked", 0)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "invalid stage")
}

func (suite *LeadServiceTestSuite) TestMoveStage_Success() {
	leadID := uuid.New()
	suite.mockRepo.On("UpdateStage", suite.ctx, suite.tenantID, leadID, models.StageWon, 2).Return(nil)

	err := suite.service.MoveStage(suite.ctx, suite.tenantID, leadID, models.StageWon, 2)
	assert.NoError(suite.T(), err)
}

func (suite *LeadServiceTestSuite) TestUpdate_TenantMismatch() {
	lead := &models.Lead{ID: uuid.New(), TenantID: uuid.New(), Name: "Other", Stage: models.StageNew}

	err := suite.service.Update(suite.ctx, suite.tenantID, lead)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "does not belong")
}

func (suite *LeadServiceTestSuite) TestImportCSV_Success() {
	csvData := strings.Join([]string{
		"name,company,email,phone,value,source",
		"Alice Martin,Acme,alice@acme.fr,0601020304,1500,salon",
		"Bruno Petit,Globex,bruno@globex.fr,,800,",
	}, "\n")

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 50}, nil).Twice()
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Twice()

	result, err := suite.service.ImportCSV(suite.ctx, suite.tenantID, suite.ownerID, strings.NewReader(csvData))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, result.Imported)
	assert.Empty(suite.T(), result.Errors)
}

func (suite *LeadServiceTestSuite) TestImportCSV_StopsOnExhaustion() {
	csvData := strings.Join([]string{
		"name,company,email,phone,value,source",
		"Alice Martin,Acme,,,,",
		"Bruno Petit,Globex,,,,",
		"Chloé Durand,Initech,,,,",
	}, "\n")

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 0}, nil).Once()
	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{
			Success: false,
			Error:   "Quota mensuel atteint : 100/100 fiches utilisées ce mois-ci. Réinitialisation le mois prochain.",
		}, nil).Once()
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Once()

	result, err := suite.service.ImportCSV(suite.ctx, suite.tenantID, suite.ownerID, strings.NewReader(csvData))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, result.Imported)
	assert.Len(suite.T(), result.Errors, 1)
	assert.Contains(suite.T(), result.Errors[0].Error, "Quota mensuel atteint")
	// The third row is never attempted once the quota is gone.
	suite.mockQuota.AssertNumberOfCalls(suite.T(), "Consume", 2)
}

func (suite *LeadServiceTestSuite) TestImportCSV_BadRowsAreSkipped() {
	csvData := strings.Join([]string{
		"name,company,email,phone,value,source",
		",missing-name,,,,",
		"Bruno Petit,Globex,,,,",
	}, "\n")

	suite.mockQuota.On("Consume", suite.ctx, suite.tenantID, 0).
		Return(&ConsumeResult{Success: true, TokensRemaining: 10}, nil).Once()
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Lead")).Return(nil).Once()

	result, err := suite.service.ImportCSV(suite.ctx, suite.tenantID, suite.ownerID, strings.NewReader(csvData))
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, result.Imported)
	assert.Len(suite.T(), result.Errors, 1)
	assert.Contains(suite.T(), result.Errors[0].Error, "name is required")
}

func (suite *LeadServiceTestSuite) TestBoard_GroupsByStage() {
	for _, stage := range []string{models.StageNew, models.StageContacted, models.StageQualified, models.StageProposal, models.StageWon, models.StageLost} {
		suite.mockRepo.On("ListByStage", suite.ctx, suite.tenantID, stage).
			Return([]*models.Lead{{ID: uuid.New(), TenantID: suite.tenantID, Stage: stage}}, nil).Once()
	}

	board, err := suite.service.Board(suite.ctx, suite.tenantID)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), board, 6)
	assert.Len(suite.T(), board[models.StageWon], 1)
}
