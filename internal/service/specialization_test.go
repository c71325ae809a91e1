package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"medbook/internal/domain"
)

type fakeSpecializationRepo struct {
	items    map[int64]*domain.Specialization
	next     int64
	lastList domain.SpecializationFilter
}

func (r *fakeSpecializationRepo) Create(_ context.Context, dto domain.CreateSpecializationDTO) (int64, error) {
	for _, s := range r.items {
		if s.Name == dto.Name {
			return 0, fmt.Errorf("специализация %q: %w", dto.Name, domain.ErrConflict)
		}
	}
	r.next++
	r.items[r.next] = &domain.Specialization{ID: r.next, Name: dto.Name, IsActive: true}
	return r.next, nil
}

func (r *fakeSpecializationRepo) GetByID(_ context.Context, id int64) (*domain.Specialization, error) {
	s, ok := r.items[id]
	if !ok {
		return nil, notFoundErr("специализация", id)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSpecializationRepo) Update(_ context.Context, id int64, dto domain.UpdateSpecializationDTO) error {
	s, ok := r.items[id]
	if !ok {
		return notFoundErr("специализация", id)
	}
	if dto.Name != nil {
		s.Name = *dto.Name
	}
	return nil
}

func (r *fakeSpecializationRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return notFoundErr("специализация", id)
	}
	delete(r.items, id)
	return nil
}

func (r *fakeSpecializationRepo) List(_ context.Context, filter domain.SpecializationFilter) ([]domain.Specialization, int, error) {
	r.lastList = filter
	result := []domain.Specialization{}
	for _, s := range r.items {
		result = append(result, *s)
	}
	return result, len(result), nil
}

func TestSpecializationService(t *testing.T) {
	repo := &fakeSpecializationRepo{items: make(map[int64]*domain.Specialization)}
	svc := NewSpecializationService(repo, zap.NewNop())
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.CreateSpecializationDTO{Name: "  Кардиолог "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if repo.items[id].Name != "Кардиолог" {
		t.Errorf("name = %q", repo.items[id].Name)
	}

	if _, err := svc.Create(ctx, domain.CreateSpecializationDTO{Name: "Кардиолог"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate: expected conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateSpecializationDTO{Name: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank: expected validation error, got %v", err)
	}

	blank := " "
	if err := svc.Update(ctx, id, domain.UpdateSpecializationDTO{Name: &blank}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank update: expected validation error, got %v", err)
	}

	if _, _, err := svc.List(ctx, domain.SpecializationFilter{Limit: 1000, Offset: -5}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.Limit != maxLimit || repo.lastList.Offset != 0 {
		t.Errorf("page not normalized: %+v", repo.lastList)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
