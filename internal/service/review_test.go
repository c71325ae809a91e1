package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"medbook/internal/domain"
)

type fakeReviewRepo struct {
	reviews map[int64]*domain.Review
	next    int64
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: make(map[int64]*domain.Review)}
}

func (r *fakeReviewRepo) Create(_ context.Context, review domain.Review) (int64, error) {
	r.next++
	review.ID = r.next
	r.reviews[review.ID] = &review
	return review.ID, nil
}

func (r *fakeReviewRepo) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	review, ok := r.reviews[id]
	if !ok {
		return nil, notFoundErr("отзыв", id)
	}
	cp := *review
	return &cp, nil
}

func (r *fakeReviewRepo) GetByAppointmentID(_ context.Context, appointmentID int64) (*domain.Review, error) {
	for _, review := range r.reviews {
		if review.AppointmentID == appointmentID {
			cp := *review
			return &cp, nil
		}
	}
	return nil, notFoundErr("отзыв записи", appointmentID)
}

func (r *fakeReviewRepo) Update(_ context.Context, id int64, dto domain.UpdateReviewDTO) error {
	review, ok := r.reviews[id]
	if !ok {
		return notFoundErr("отзыв", id)
	}
	if dto.Rating != nil {
		review.Rating = *dto.Rating
	}
	if dto.Comment != nil {
		review.Comment = *dto.Comment
	}
	return nil
}

func (r *fakeReviewRepo) Reply(_ context.Context, id int64, text string) error {
	review, ok := r.reviews[id]
	if !ok {
		return notFoundErr("отзыв", id)
	}
	review.Reply = &text
	return nil
}

func (r *fakeReviewRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.reviews[id]; !ok {
		return notFoundErr("отзыв", id)
	}
	delete(r.reviews, id)
	return nil
}

func (r *fakeReviewRepo) List(_ context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	result := []domain.Review{}
	for _, review := range r.reviews {
		if filter.DoctorID != nil && review.DoctorID != *filter.DoctorID {
			continue
		}
		result = append(result, *review)
	}
	return result, len(result), nil
}

func newReviewFixture(status domain.AppointmentStatus) (*ReviewServiceImpl, *booking, *fakeReviewRepo) {
	b := newBooking()
	b.store.appointments[1] = &domain.Appointment{
		ID:        1,
		SlotID:    1,
		DoctorID:  1,
		PatientID: 5,
		TimeLabel: "09:00",
		SlotDate:  "2024-03-04",
		Status:    status,
	}

	reviews := newFakeReviewRepo()
	svc := NewReviewService(reviews, fakeAppointmentRepo{b.store}, b.doctors, b.notifications, zap.NewNop())
	return svc, b, reviews
}

func TestReviewCreate(t *testing.T) {
	svc, b, reviews := newReviewFixture(domain.AppointmentStatusCompleted)
	ctx := context.Background()

	id, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 4, Comment: "  спасибо  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	review := reviews.reviews[id]
	if review.DoctorID != 1 || review.Comment != "спасибо" {
		t.Errorf("unexpected review: %+v", review)
	}
	if got := b.notifications.sentTo(10); len(got) != 1 || got[0].Type != domain.NotificationReviewReceived {
		t.Errorf("doctor notifications = %+v", got)
	}

	_, err = svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 5})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second review: expected conflict, got %v", err)
	}
}

func TestReviewCreate_Rejections(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newReviewFixture(domain.AppointmentStatusConfirmed)
	if _, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 4}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("not completed: expected validation error, got %v", err)
	}

	svc, _, _ = newReviewFixture(domain.AppointmentStatusCompleted)
	if _, err := svc.Create(ctx, 6, domain.CreateReviewDTO{AppointmentID: 1, Rating: 4}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other patient: expected forbidden, got %v", err)
	}
	if _, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 6}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("rating 6: expected validation error, got %v", err)
	}
	if _, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 99, Rating: 4}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown appointment: expected not found, got %v", err)
	}
}

func TestReviewReply(t *testing.T) {
	svc, _, reviews := newReviewFixture(domain.AppointmentStatusCompleted)
	ctx := context.Background()

	id, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Reply(ctx, otherDoctorActor, id, domain.ReplyReviewDTO{Text: "нет"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other doctor: expected forbidden, got %v", err)
	}
	if err := svc.Reply(ctx, doctorActor, id, domain.ReplyReviewDTO{Text: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank reply: expected validation error, got %v", err)
	}
	if err := svc.Reply(ctx, doctorActor, id, domain.ReplyReviewDTO{Text: "Выздоравливайте"}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if r := reviews.reviews[id]; r.Reply == nil || *r.Reply != "Выздоравливайте" {
		t.Errorf("reply not stored: %+v", r)
	}
}

func TestReviewUpdateDelete_Ownership(t *testing.T) {
	svc, _, reviews := newReviewFixture(domain.AppointmentStatusCompleted)
	ctx := context.Background()

	id, err := svc.Create(ctx, 5, domain.CreateReviewDTO{AppointmentID: 1, Rating: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rating := 5
	if err := svc.Update(ctx, patientActor(6), id, domain.UpdateReviewDTO{Rating: &rating}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other patient update: expected forbidden, got %v", err)
	}
	if err := svc.Update(ctx, patientActor(5), id, domain.UpdateReviewDTO{Rating: &rating}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if reviews.reviews[id].Rating != 5 {
		t.Errorf("rating = %d, want 5", reviews.reviews[id].Rating)
	}

	if err := svc.Delete(ctx, patientActor(6), id); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other patient delete: expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, adminActor, id); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}
