package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shiptrace/internal/models"
)

// pq error code for unique_violation
const uniqueViolation = "23505"

// GormStore keeps shipments in Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, sh *models.Shipment) error {
	if err := s.db.WithContext(ctx).Create(sh).Error; err != nil {
		return translate(err, "insert shipment")
	}
	return nil
}

// find resolves l inside tx, locking the row when lock is set.
func (s *GormStore) find(tx *gorm.DB, l Lookup, lock bool) (models.Shipment, error) {
	if l.Ref == "" {
		return models.Shipment{}, ErrNotFound
	}
	q := func() *gorm.DB {
		if lock {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return tx
	}

	var sh models.Shipment
	err := q().Where("tracking_id = ?", l.Ref).Take(&sh).Error
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return sh, err
	}
	if id, ok := l.id(); ok {
		err = q().Where("id = ?", id).Take(&sh).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return sh, err
		}
	}
	if l.CaseInsensitive {
		err = q().Where("LOWER(tracking_id) = LOWER(?)", l.Ref).Order("id").Take(&sh).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return sh, err
		}
	}
	return models.Shipment{}, ErrNotFound
}

func (s *GormStore) FindOne(ctx context.Context, l Lookup) (models.Shipment, error) {
	sh, err := s.find(s.db.WithContext(ctx), l, false)
	if err != nil {
		return models.Shipment{}, translate(err, "find shipment")
	}
	return sh, nil
}

func (s *GormStore) FindOneAndUpdate(ctx context.Context, l Lookup, fn UpdateFunc) (models.Shipment, error) {
	var out models.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sh, err := s.find(tx, l, true)
		if err != nil {
			return err
		}
		next := sh.Clone()
		if err := fn(&next); err != nil {
			out = sh
			return err
		}
		next.ID, next.CreatedAt = sh.ID, sh.CreatedAt
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return out, translate(err, "update shipment")
	}
	return out, nil
}

func (s *GormStore) FindOneAndDelete(ctx context.Context, l Lookup) (models.Shipment, error) {
	var out models.Shipment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sh, err := s.find(tx, l, true)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Shipment{}, sh.ID).Error; err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return models.Shipment{}, translate(err, "delete shipment")
	}
	return out, nil
}

func (s *GormStore) List(ctx context.Context, page, limit int) ([]models.Shipment, error) {
	var out []models.Shipment
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	if out == nil {
		out = []models.Shipment{}
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Shipment{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count shipments: %w", err)
	}
	return n, nil
}

// translate maps driver errors onto the store's sentinel errors.
func translate(err error, op string) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicateTrackingID
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
