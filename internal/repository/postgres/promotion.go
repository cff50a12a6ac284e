package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/repository"
	"github.com/vendora/promotion/pkg/database"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// statusCase derives the lifecycle status in SQL. The placeholder is the
// evaluation instant, substituted by the caller.
const statusCase = `CASE
		WHEN %[1]s < starts_at THEN 'draft'
		WHEN %[1]s > expires_at THEN 'expired'
		WHEN is_active THEN 'active'
		ELSE 'paused'
	END`

const promotionColumns = `id, name, description, type, value, min_order_amount,
		   max_discount_amount, buy_quantity, get_quantity, usage_limit,
		   usage_limit_per_user, used_count, allocated_budget, spent_budget,
		   is_active, auto_apply_new_products, starts_at, expires_at,
		   target_products, target_categories, deleted_at, created_at, updated_at`

// PromotionRepository implements repository.PromotionRepository using PostgreSQL.
type PromotionRepository struct {
	db database.DBTX
}

// NewPromotionRepository creates a PostgreSQL-backed promotion repository.
func NewPromotionRepository(db database.DBTX) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// Create inserts a new promotion with its targeting sets.
func (r *PromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	productsJSON, categoriesJSON, err := marshalTargets(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO promotions (
			id, name, description, type, value, min_order_amount,
			max_discount_amount, buy_quantity, get_quantity, usage_limit,
			usage_limit_per_user, used_count, allocated_budget, spent_budget,
			is_active, auto_apply_new_products, starts_at, expires_at,
			target_products, target_categories, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)`

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Type,
		p.Value,
		p.MinOrderAmount,
		p.MaxDiscountAmount,
		p.BuyQuantity,
		p.GetQuantity,
		p.UsageLimit,
		p.UsageLimitPerUser,
		p.UsedCount,
		p.AllocatedBudget,
		p.SpentBudget,
		p.IsActive,
		p.AutoApplyNewProducts,
		p.StartsAt,
		p.ExpiresAt,
		productsJSON,
		categoriesJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion", "id", p.ID)
		}
		return fmt.Errorf("insert promotion: %w", err)
	}

	return nil
}

// GetByID retrieves a promotion by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Promotion, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM promotions
		WHERE id = $1`, promotionColumns)
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	return r.scanPromotion(ctx, query, id)
}

// List returns promotions matching the filter with the total count.
func (r *PromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	if filter.Status != nil {
		conditions = append(conditions,
			fmt.Sprintf(statusCase, fmt.Sprintf("$%d", argIndex))+fmt.Sprintf(" = $%d", argIndex+1))
		args = append(args, now, *filter.Status)
		argIndex += 2
	}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, *filter.Type)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM promotions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		promotionColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var (
		promotions []domain.Promotion
		totalCount int
	)

	for rows.Next() {
		var (
			p             domain.Promotion
			productsJSON  []byte
			categoryJSON  []byte
		)

		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Type,
			&p.Value,
			&p.MinOrderAmount,
			&p.MaxDiscountAmount,
			&p.BuyQuantity,
			&p.GetQuantity,
			&p.UsageLimit,
			&p.UsageLimitPerUser,
			&p.UsedCount,
			&p.AllocatedBudget,
			&p.SpentBudget,
			&p.IsActive,
			&p.AutoApplyNewProducts,
			&p.StartsAt,
			&p.ExpiresAt,
			&productsJSON,
			&categoryJSON,
			&p.DeletedAt,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan promotion row: %w", err)
		}

		if err := unmarshalTargets(&p, productsJSON, categoryJSON); err != nil {
			return nil, 0, err
		}

		promotions = append(promotions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rows: %w", err)
	}

	if promotions == nil {
		promotions = []domain.Promotion{}
	}

	return promotions, totalCount, nil
}

// ListEvaluable returns non-deleted promotions active at the given instant.
func (r *PromotionRepository) ListEvaluable(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM promotions
		WHERE deleted_at IS NULL
		  AND is_active
		  AND starts_at <= $1
		  AND expires_at >= $1
		ORDER BY created_at`, promotionColumns)

	return r.scanPromotions(ctx, query, now)
}

// ListAutoApply returns evaluable auto-apply promotions targeting the category.
func (r *PromotionRepository) ListAutoApply(ctx context.Context, categoryID string, now time.Time) ([]domain.Promotion, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM promotions
		WHERE deleted_at IS NULL
		  AND is_active
		  AND auto_apply_new_products
		  AND starts_at <= $1
		  AND expires_at >= $1
		  AND target_categories @> jsonb_build_array($2::text)
		ORDER BY created_at`, promotionColumns)

	return r.scanPromotions(ctx, query, now, categoryID)
}

// Update rewrites the definition fields of a promotion. Counters are owned by
// the redemption transaction and are never touched here.
func (r *PromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	productsJSON, categoriesJSON, err := marshalTargets(p)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promotions
		SET name = $1, description = $2, type = $3, value = $4,
		    min_order_amount = $5, max_discount_amount = $6, buy_quantity = $7,
		    get_quantity = $8, usage_limit = $9, usage_limit_per_user = $10,
		    allocated_budget = $11, is_active = $12, auto_apply_new_products = $13,
		    starts_at = $14, expires_at = $15, target_products = $16,
		    target_categories = $17, updated_at = $18
		WHERE id = $19 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Type,
		p.Value,
		p.MinOrderAmount,
		p.MaxDiscountAmount,
		p.BuyQuantity,
		p.GetQuantity,
		p.UsageLimit,
		p.UsageLimitPerUser,
		p.AllocatedBudget,
		p.IsActive,
		p.AutoApplyNewProducts,
		p.StartsAt,
		p.ExpiresAt,
		productsJSON,
		categoriesJSON,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", p.ID)
	}

	return nil
}

// SetActive flips the manual is_active flag.
func (r *PromotionRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE promotions
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set promotion active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}

	return nil
}

// AppendTargetProduct adds a product to the explicit product-target set if it
// is not already present.
func (r *PromotionRepository) AppendTargetProduct(ctx context.Context, id, productID string) error {
	query := `
		UPDATE promotions
		SET target_products = target_products || jsonb_build_array($2::text),
		    updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND NOT target_products @> jsonb_build_array($2::text)`

	if _, err := r.db.Exec(ctx, query, id, productID); err != nil {
		return fmt.Errorf("append target product: %w", err)
	}

	return nil
}

// SoftDelete marks the promotion deleted and inactive, hiding it from
// listings while preserving usage history.
func (r *PromotionRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE promotions
		SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft delete promotion: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}

	return nil
}

// HardDelete removes the promotion row entirely.
func (r *PromotionRepository) HardDelete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", id)
	}

	return nil
}

// DeactivateFinished clears is_active for promotions whose schedule window
// does not contain now, so a later manual activate cannot resurrect them.
func (r *PromotionRepository) DeactivateFinished(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE promotions
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active
		  AND deleted_at IS NULL
		  AND (expires_at < $1 OR starts_at > $1)`

	ct, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate finished promotions: %w", err)
	}

	return ct.RowsAffected(), nil
}

func (r *PromotionRepository) scanPromotion(ctx context.Context, query string, args ...any) (*domain.Promotion, error) {
	var (
		p            domain.Promotion
		productsJSON []byte
		categoryJSON []byte
	)

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Type,
		&p.Value,
		&p.MinOrderAmount,
		&p.MaxDiscountAmount,
		&p.BuyQuantity,
		&p.GetQuantity,
		&p.UsageLimit,
		&p.UsageLimitPerUser,
		&p.UsedCount,
		&p.AllocatedBudget,
		&p.SpentBudget,
		&p.IsActive,
		&p.AutoApplyNewProducts,
		&p.StartsAt,
		&p.ExpiresAt,
		&productsJSON,
		&categoryJSON,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan promotion: %w", err)
	}

	if err := unmarshalTargets(&p, productsJSON, categoryJSON); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PromotionRepository) scanPromotions(ctx context.Context, query string, args ...any) ([]domain.Promotion, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var promotions []domain.Promotion
	for rows.Next() {
		var (
			p            domain.Promotion
			productsJSON []byte
			categoryJSON []byte
		)

		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Type,
			&p.Value,
			&p.MinOrderAmount,
			&p.MaxDiscountAmount,
			&p.BuyQuantity,
			&p.GetQuantity,
			&p.UsageLimit,
			&p.UsageLimitPerUser,
			&p.UsedCount,
			&p.AllocatedBudget,
			&p.SpentBudget,
			&p.IsActive,
			&p.AutoApplyNewProducts,
			&p.StartsAt,
			&p.ExpiresAt,
			&productsJSON,
			&categoryJSON,
			&p.DeletedAt,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan promotion row: %w", err)
		}

		if err := unmarshalTargets(&p, productsJSON, categoryJSON); err != nil {
			return nil, err
		}

		promotions = append(promotions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promotion rows: %w", err)
	}

	if promotions == nil {
		promotions = []domain.Promotion{}
	}

	return promotions, nil
}

func marshalTargets(p *domain.Promotion) (products, categories []byte, err error) {
	if p.TargetProducts == nil {
		p.TargetProducts = []string{}
	}
	if p.TargetCategories == nil {
		p.TargetCategories = []string{}
	}
	products, err = json.Marshal(p.TargetProducts)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal target_products: %w", err)
	}
	categories, err = json.Marshal(p.TargetCategories)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal target_categories: %w", err)
	}
	return products, categories, nil
}

func unmarshalTargets(p *domain.Promotion, productsJSON, categoriesJSON []byte) error {
	if productsJSON != nil {
		if err := json.Unmarshal(productsJSON, &p.TargetProducts); err != nil {
			return fmt.Errorf("unmarshal target_products: %w", err)
		}
	}
	if p.TargetProducts == nil {
		p.TargetProducts = []string{}
	}

	if categoriesJSON != nil {
		if err := json.Unmarshal(categoriesJSON, &p.TargetCategories); err != nil {
			return fmt.Errorf("unmarshal target_categories: %w", err)
		}
	}
	if p.TargetCategories == nil {
		p.TargetCategories = []string{}
	}

	return nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
