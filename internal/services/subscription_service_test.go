package services

import (
	"context"
	"errors"
	"testing"

	"pipecrm/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, subscription *models.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByCheckoutSessionID(ctx context.Context, tenantID uuid.UUID, sessionID string) (*models.Subscription, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, subscription *models.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateCheckout(ctx context.Context, planID string, tenantID uuid.UUID, customerEmail string) (*CheckoutSession, error) {
	args := m.Called(ctx, planID, tenantID, customerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

func (m *MockPaymentService) GetCheckoutStatus(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

type SubscriptionServiceTestSuite struct {
	suite.Suite
	mockRepo    *MockSubscriptionRepository
	mockPayment *MockPaymentService
	service     SubscriptionService
	tenantID    uuid.UUID
	ctx         context.Context
}

func (suite *SubscriptionServiceTestSuite) SetupTest() {
	suite.mockRepo = &MockSubscriptionRepository{}
	suite.mockPayment = &MockPaymentService{}
	suite.service = NewSubscriptionService(suite.mockRepo, suite.mockPayment)
	suite.tenantID = uuid.New()
	suite.ctx = context.Background()

	suite.mockRepo.Test(suite.T())
	suite.mockPayment.Test(suite.T())
}

func (suite *SubscriptionServiceTestSuite) TearDownTest() {
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockPayment.AssertExpectations(suite.T())
}

func TestSubscriptionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceTestSuite))
}

func (suite *SubscriptionServiceTestSuite) TestCreate_Success() {
	session := &CheckoutSession{
		ID:          "cs_123",
		Status:      "pending",
		CheckoutURL: "https://pay.example.com/cs_123",
		PlanID:      "starter",
	}

	suite.mockPayment.On("CreateCheckout", suite.ctx, "starter", suite.tenantID, "owner@acme.fr").
		Return(session, nil)
	suite.mockRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil).Run(func(args mock.Arguments) {
		sub := args.Get(1).(*models.Subscription)
		assert.Equal(suite.T(), "Starter", sub.PlanName)
		assert.Equal(suite.T(), 29.0, sub.Amount)
		assert.Equal(suite.T(), "EUR", sub.Currency)
		assert.Equal(suite.T(), "pending", sub.Status)
		assert.Equal(suite.T(), "cs_123", *sub.CheckoutSessionID)
	})

	subscription, checkout, err := suite.service.Create(suite.ctx, suite.tenantID, "starter", "owner@acme.fr")
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), subscription)
	assert.Equal(suite.T(), "https://pay.example.com/cs_123", checkout.CheckoutURL)
}

func (suite *SubscriptionServiceTestSuite) TestCreate_InvalidPlan() {
	subscription, checkout, err := suite.service.Create(suite.ctx, suite.tenantID, "enterprise", "owner@acme.fr")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), subscription)
	assert.Nil(suite.T(), checkout)
	assert.Contains(suite.T(), err.Error(), "invalid plan")
}

func (suite *SubscriptionServiceTestSuite) TestCreate_CheckoutFailure() {
	suite.mockPayment.On("CreateCheckout", suite.ctx, "pro", suite.tenantID, "owner@acme.fr").
		Return((*CheckoutSession)(nil), errors.New("provider returned 500"))

	subscription, checkout, err := suite.service.Create(suite.ctx, suite.tenantID, "pro", "owner@acme.fr")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), subscription)
	assert.Nil(suite.T(), checkout)
	assert.Contains(suite.T(), err.Error(), "failed to open checkout")
	suite.mockRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *SubscriptionServiceTestSuite) TestSyncStatus_UpdatesOnChange() {
	subscriptionID := uuid.New()
	sessionID := "cs_456"
	stored := &models.Subscription{
		ID:                subscriptionID,
		TenantID:          suite.tenantID,
		CheckoutSessionID: &sessionID,
		PlanName:          "Pro",
		Status:            "pending",
	}

	suite.mockRepo.On("GetByID", suite.ctx, suite.tenantID, subscriptionID).Return(stored, nil)
	suite.mockPayment.On("GetCheckoutStatus", suite.ctx, sessionID).
		Return(&CheckoutSession{ID: sessionID, Status: "active"}, nil)
	suite.mockRepo.On("Update", suite.ctx, mock.AnythingOfType("*models.Subscription")).Return(nil)

	subscription, err := suite.service.SyncStatus(suite.ctx, suite.tenantID, subscriptionID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "active", subscription.Status)
}

func (suite *SubscriptionServiceTestSuite) TestSyncStatus_NoChangeSkipsUpdate() {
	subscriptionID := uuid.New()
	sessionID := "cs_789"
	stored := &models.Subscription{
		ID:                subscriptionID,
		TenantID:          suite.tenantID,
		CheckoutSessionID: &sessionID,
		Status:            "active",
	}

	suite.mockRepo.On("GetByID", suite.ctx, suite.tenantID, subscriptionID).Return(stored, nil)
	suite.mockPayment.On("GetCheckoutStatus", suite.ctx, sessionID).
		Return(&CheckoutSession{ID: sessionID, Status: "active"}, nil)

	subscription, err := suite.service.SyncStatus(suite.ctx, suite.tenantID, subscriptionID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "active", subscription.Status)
	suite.mockRepo.AssertNotCalled(suite.T(), "Update", mock.Anything, mock.Anything)
}

func (suite *SubscriptionServiceTestSuite) TestSyncStatus_NoSessionIsNoop() {
	subscriptionID := uuid.New()
	stored := &models.Subscription{
		ID:       subscriptionID,
		TenantID: suite.tenantID,
		Status:   "pending",
	}

	suite.mockRepo.On("GetByID", suite.ctx, suite.tenantID, subscriptionID).Return(stored, nil)

	subscription, err := suite.service.SyncStatus(suite.ctx, suite.tenantID, subscriptionID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "pending", subscription.Status)
	suite.mockPayment.AssertNotCalled(suite.T(), "GetCheckoutStatus", mock.Anything, mock.Anything)
}

func (suite *SubscriptionServiceTestSuite) TestGetAvailablePlans() {
	plans := suite.service.GetAvailablePlans()
	assert.Contains(suite.T(), plans, "starter")
	assert.Contains(suite.T(), plans, "pro")
	assert.Equal(suite.T(), "EUR", plans["starter"].Currency)
}
