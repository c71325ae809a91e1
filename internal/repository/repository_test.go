package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"medbook/internal/domain"
)

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	if w.sql() != "" {
		t.Fatalf("пустой фильтр должен давать пустую строку, получено %q", w.sql())
	}

	w.add("doctor_id = $%d", int64(7))
	w.add("date >= $%d::date", "2024-03-18")

	want := " WHERE doctor_id = $1 AND date >= $2::date"
	if got := w.sql(); got != want {
		t.Errorf("sql() = %q, ожидалось %q", got, want)
	}

	page, args := w.page(20, 40)
	if page != " LIMIT $3 OFFSET $4" {
		t.Errorf("page() = %q", page)
	}
	if len(args) != 4 || args[2] != 20 || args[3] != 40 {
		t.Errorf("неверные аргументы страницы: %v", args)
	}
	if len(w.args) != 2 {
		t.Errorf("page() не должен менять исходные аргументы: %v", w.args)
	}

	page, args = w.page(0, 0)
	if page != "" || len(args) != 2 {
		t.Errorf("без лимита ожидалась пустая страница, получено %q %v", page, args)
	}
}

func TestSetBuilder(t *testing.T) {
	s := newSetBuilder(5)
	if !s.empty() {
		t.Fatal("новый setBuilder должен быть пустым")
	}

	s.set("bio", "терапевт")
	s.set("experience_years", 10)

	want := "UPDATE doctors SET bio = $2, experience_years = $3, updated_at = NOW() WHERE id = $1"
	if got := s.sql("doctors"); got != want {
		t.Errorf("sql() = %q, ожидалось %q", got, want)
	}
	if s.args[0] != int64(5) {
		t.Errorf("первый аргумент должен быть id, получено %v", s.args[0])
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("вставка: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(err) {
		t.Error("ожидалось нарушение уникальности")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 не является нарушением уникальности")
	}
	if isUniqueViolation(errors.New("другая ошибка")) {
		t.Error("обычная ошибка не является нарушением уникальности")
	}
}

func TestNotFound(t *testing.T) {
	err := notFound("врач", int64(3))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено %v", err)
	}
}
