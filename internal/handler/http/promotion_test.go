package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/event"
	"github.com/vendora/promotion/internal/repository"
	"github.com/vendora/promotion/internal/service"
	apperrors "github.com/vendora/promotion/pkg/errors"
	pkgkafka "github.com/vendora/promotion/pkg/kafka"
)

// ============================================================================
// Mock repositories
// ============================================================================

type mockPromotionRepository struct {
	mock.Mock
}

func (m *mockPromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPromotionRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Promotion, error) {
	args := m.Called(ctx, id, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Promotion), args.Int(1), args.Error(2)
}

func (m *mockPromotionRepository) ListEvaluable(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) ListAutoApply(ctx context.Context, categoryID string, now time.Time) ([]domain.Promotion, error) {
	args := m.Called(ctx, categoryID, now)
	return args.Get(0).([]domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPromotionRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockPromotionRepository) AppendTargetProduct(ctx context.Context, id, productID string) error {
	args := m.Called(ctx, id, productID)
	return args.Error(0)
}

func (m *mockPromotionRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPromotionRepository) HardDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPromotionRepository) DeactivateFinished(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockUsageRepository struct {
	mock.Mock
}

func (m *mockUsageRepository) GetStats(ctx context.Context, promotionID string) (*domain.UsageStats, error) {
	args := m.Called(ctx, promotionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageStats), args.Error(1)
}

func (m *mockUsageRepository) ListByPromotion(ctx context.Context, promotionID string, limit int) ([]domain.UsageRecord, error) {
	args := m.Called(ctx, promotionID, limit)
	return args.Get(0).([]domain.UsageRecord), args.Error(1)
}

type mockTemplateRepository struct {
	mock.Mock
}

func (m *mockTemplateRepository) Create(ctx context.Context, tmpl *domain.PromotionTemplate) error {
	args := m.Called(ctx, tmpl)
	return args.Error(0)
}

func (m *mockTemplateRepository) GetByID(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromotionTemplate), args.Error(1)
}

func (m *mockTemplateRepository) List(ctx context.Context, ownerID string) ([]domain.PromotionTemplate, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.PromotionTemplate), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetEvaluable(ctx context.Context) ([]domain.Promotion, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.Promotion), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetEvaluable(ctx context.Context, promotions []domain.Promotion) error {
	args := m.Called(ctx, promotions)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func testPromotionService(repo *mockPromotionRepository, usage *mockUsageRepository, cache *mockCache) *service.PromotionService {
	return service.NewPromotionService(repo, usage, cache, testEventProducer(), testLogger())
}

func testPromotionHandler(repo *mockPromotionRepository, usage *mockUsageRepository, cache *mockCache) *PromotionHandler {
	return NewPromotionHandler(testPromotionService(repo, usage, cache), testLogger())
}

// setupPromotionRouter creates a chi router matching production route layout.
func setupPromotionRouter(handler *PromotionHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Post("/", handler.CreatePromotion)
		r.Get("/", handler.ListPromotions)
		r.Get("/{id}", handler.GetPromotion)
		r.Put("/{id}", handler.UpdatePromotion)
		r.Delete("/{id}", handler.DeletePromotion)
		r.Post("/{id}/activate", handler.ActivatePromotion)
		r.Post("/{id}/deactivate", handler.DeactivatePromotion)
		r.Get("/{id}/stats", handler.GetPromotionStats)
	})
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func decodeListResponse(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

// samplePromotion returns a currently active storewide promotion.
func samplePromotion() *domain.Promotion {
	now := time.Now().UTC()
	return &domain.Promotion{
		ID:               "550e8400-e29b-41d4-a716-446655440001",
		Name:             "Summer Sale",
		Description:      "20% off everything",
		Type:             domain.TypePercentage,
		Value:            2000,
		IsActive:         true,
		StartsAt:         now.Add(-24 * time.Hour),
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
		TargetProducts:   []string{},
		TargetCategories: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func validCreatePromotionJSON() []byte {
	now := time.Now().UTC()
	req := CreatePromotionRequest{
		Name:      "Summer Sale",
		Type:      "percentage",
		Value:     2000,
		IsActive:  true,
		StartsAt:  now.Add(24 * time.Hour).Format(time.RFC3339),
		ExpiresAt: now.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
	b, _ := json.Marshal(req)
	return b
}

// ============================================================================
// POST /api/v1/promotions - CreatePromotion
// ============================================================================

func TestCreatePromotion_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Promotion")).Return(nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", bytes.NewReader(validCreatePromotionJSON()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestCreatePromotion_InvalidJSON(t *testing.T) {
	handler := testPromotionHandler(new(mockPromotionRepository), new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", bytes.NewReader([]byte(`{invalid json`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid request body")
}

func TestCreatePromotion_ValidationError_MissingName(t *testing.T) {
	handler := testPromotionHandler(new(mockPromotionRepository), new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	now := time.Now().UTC()
	reqBody := CreatePromotionRequest{
		// Name intentionally omitted
		Type:      "percentage",
		Value:     2000,
		StartsAt:  now.Add(24 * time.Hour).Format(time.RFC3339),
		ExpiresAt: now.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreatePromotion_InvalidDateFormat(t *testing.T) {
	handler := testPromotionHandler(new(mockPromotionRepository), new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	reqBody := CreatePromotionRequest{
		Name:      "Summer Sale",
		Type:      "percentage",
		Value:     2000,
		StartsAt:  "2025-06-01", // Not RFC3339
		ExpiresAt: "2025-06-30", // Not RFC3339
	}
	b, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "starts_at must be in RFC3339 format")
}

func TestCreatePromotion_ServiceError_AlreadyExists(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Promotion")).
		Return(apperrors.ErrAlreadyExists)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions", bytes.NewReader(validCreatePromotionJSON()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
	repo.AssertExpectations(t)
}

// ============================================================================
// GET /api/v1/promotions - ListPromotions
// ============================================================================

func TestListPromotions_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	promotions := []domain.Promotion{*samplePromotion()}
	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.PromotionFilter) bool {
		return f.Page == 1 && f.PerPage == 20 && !f.Now.IsZero()
	})).Return(promotions, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	listResp := decodeListResponse(t, rec)
	assert.Equal(t, 1, listResp.TotalCount)
	assert.Equal(t, 1, listResp.Page)
	assert.Equal(t, 20, listResp.PerPage)
	assert.Equal(t, 1, listResp.TotalPages)
	repo.AssertExpectations(t)
}

func TestListPromotions_WithPagination(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	promotions := []domain.Promotion{*samplePromotion()}
	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.PromotionFilter) bool {
		return f.Page == 2 && f.PerPage == 10
	})).Return(promotions, 25, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions?page=2&per_page=10", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	listResp := decodeListResponse(t, rec)
	assert.Equal(t, 25, listResp.TotalCount)
	assert.Equal(t, 2, listResp.Page)
	assert.Equal(t, 10, listResp.PerPage)
	assert.Equal(t, 3, listResp.TotalPages)
	repo.AssertExpectations(t)
}

func TestListPromotions_FilterByStatus(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	promotions := []domain.Promotion{*samplePromotion()}
	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.PromotionFilter) bool {
		return f.Status != nil && *f.Status == "active"
	})).Return(promotions, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions?status=active", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

// ============================================================================
// GET /api/v1/promotions/{id} - GetPromotion
// ============================================================================

func TestGetPromotion_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions/"+promo.ID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestGetPromotion_NotFound(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	id := "550e8400-e29b-41d4-a716-446655440099"
	repo.On("GetByID", mock.Anything, id, false).Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions/"+id, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	repo.AssertExpectations(t)
}

// ============================================================================
// PUT /api/v1/promotions/{id} - UpdatePromotion
// ============================================================================

func TestUpdatePromotion_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Promotion")).Return(nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	newName := "Renamed Sale"
	b, _ := json.Marshal(UpdatePromotionRequest{Name: &newName})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/promotions/"+promo.ID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestUpdatePromotion_InvalidJSON(t *testing.T) {
	handler := testPromotionHandler(new(mockPromotionRepository), new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	id := "550e8400-e29b-41d4-a716-446655440001"

	req := httptest.NewRequest(http.MethodPut, "/api/v1/promotions/"+id, bytes.NewReader([]byte(`{bad json`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestUpdatePromotion_ShrinkUsageLimitBelowUsedCount(t *testing.T) {
	repo := new(mockPromotionRepository)
	handler := testPromotionHandler(repo, new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	promo.UsageLimit = 100
	promo.UsedCount = 40
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)

	limit := int64(10)
	b, _ := json.Marshal(UpdatePromotionRequest{UsageLimit: &limit})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/promotions/"+promo.ID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONSTRAINT_VIOLATION", resp.Error.Code)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdatePromotion_InvalidDateFormat(t *testing.T) {
	handler := testPromotionHandler(new(mockPromotionRepository), new(mockUsageRepository), new(mockCache))
	router := setupPromotionRouter(handler)

	id := "550e8400-e29b-41d4-a716-446655440001"
	badDate := "2025-06-01"
	b, _ := json.Marshal(UpdatePromotionRequest{ExpiresAt: &badDate})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/promotions/"+id, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "expires_at must be in RFC3339 format")
}

// ============================================================================
// POST /api/v1/promotions/{id}/activate + /deactivate
// ============================================================================

func TestActivatePromotion_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	repo.On("SetActive", mock.Anything, promo.ID, true).Return(nil)
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions/"+promo.ID+"/activate", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestDeactivatePromotion_NotFound(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	id := "550e8400-e29b-41d4-a716-446655440099"
	repo.On("SetActive", mock.Anything, id, false).Return(apperrors.NotFound("promotion", id))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions/"+id+"/deactivate", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	repo.AssertExpectations(t)
}

// ============================================================================
// DELETE /api/v1/promotions/{id} - DeletePromotion
// ============================================================================

func TestDeletePromotion_NeverRedeemed(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)
	repo.On("HardDelete", mock.Anything, promo.ID).Return(nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/promotions/"+promo.ID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeletePromotion_WithRedemptions(t *testing.T) {
	repo := new(mockPromotionRepository)
	cache := new(mockCache)
	handler := testPromotionHandler(repo, new(mockUsageRepository), cache)
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	promo.UsedCount = 7
	repo.On("GetByID", mock.Anything, promo.ID, false).Return(promo, nil)
	repo.On("SoftDelete", mock.Anything, promo.ID).Return(nil)
	cache.On("Invalidate", mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/promotions/"+promo.ID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
}

// ============================================================================
// GET /api/v1/promotions/{id}/stats - GetPromotionStats
// ============================================================================

func TestGetPromotionStats_Success(t *testing.T) {
	repo := new(mockPromotionRepository)
	usage := new(mockUsageRepository)
	handler := testPromotionHandler(repo, usage, new(mockCache))
	router := setupPromotionRouter(handler)

	promo := samplePromotion()
	repo.On("GetByID", mock.Anything, promo.ID, true).Return(promo, nil)
	usage.On("GetStats", mock.Anything, promo.ID).Return(&domain.UsageStats{
		PromotionID:     promo.ID,
		RedemptionCount: 12,
		UniqueCustomers: 9,
		TotalDiscounted: 48000,
		RevenueTouched:  960000,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions/"+promo.ID+"/stats", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
	usage.AssertExpectations(t)
}

func TestGetPromotionStats_NotFound(t *testing.T) {
	repo := new(mockPromotionRepository)
	usage := new(mockUsageRepository)
	handler := testPromotionHandler(repo, usage, new(mockCache))
	router := setupPromotionRouter(handler)

	id := "550e8400-e29b-41d4-a716-446655440099"
	repo.On("GetByID", mock.Anything, id, true).Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions/"+id+"/stats", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	usage.AssertNotCalled(t, "GetStats", mock.Anything, mock.Anything)
}
