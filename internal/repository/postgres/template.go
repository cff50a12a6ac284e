package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/pkg/database"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

const templateColumns = `id, name, owner_id, is_public, type, value,
		   min_order_amount, max_discount_amount, buy_quantity, get_quantity,
		   auto_apply_new_products, created_at`

// TemplateRepository implements repository.TemplateRepository using PostgreSQL.
type TemplateRepository struct {
	db database.DBTX
}

// NewTemplateRepository creates a PostgreSQL-backed template repository.
func NewTemplateRepository(db database.DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new template. Templates have no update path.
func (r *TemplateRepository) Create(ctx context.Context, t *domain.PromotionTemplate) error {
	query := `
		INSERT INTO promotion_templates (
			id, name, owner_id, is_public, type, value, min_order_amount,
			max_discount_amount, buy_quantity, get_quantity,
			auto_apply_new_products, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.Name,
		t.OwnerID,
		t.IsPublic,
		t.Type,
		t.Value,
		t.MinOrderAmount,
		t.MaxDiscountAmount,
		t.BuyQuantity,
		t.GetQuantity,
		t.AutoApplyNewProducts,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("template", "id", t.ID)
		}
		return fmt.Errorf("insert template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by id.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM promotion_templates
		WHERE id = $1`, templateColumns)

	var t domain.PromotionTemplate
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.OwnerID,
		&t.IsPublic,
		&t.Type,
		&t.Value,
		&t.MinOrderAmount,
		&t.MaxDiscountAmount,
		&t.BuyQuantity,
		&t.GetQuantity,
		&t.AutoApplyNewProducts,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}

	return &t, nil
}

// List returns templates owned by ownerID plus public ones.
func (r *TemplateRepository) List(ctx context.Context, ownerID string) ([]domain.PromotionTemplate, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM promotion_templates
		WHERE owner_id = $1 OR is_public
		ORDER BY created_at DESC`, templateColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.PromotionTemplate
	for rows.Next() {
		var t domain.PromotionTemplate
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.OwnerID,
			&t.IsPublic,
			&t.Type,
			&t.Value,
			&t.MinOrderAmount,
			&t.MaxDiscountAmount,
			&t.BuyQuantity,
			&t.GetQuantity,
			&t.AutoApplyNewProducts,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template rows: %w", err)
	}

	if templates == nil {
		templates = []domain.PromotionTemplate{}
	}

	return templates, nil
}
