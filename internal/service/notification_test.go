package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"medbook/internal/domain"
)

type fakeNotificationRepo struct {
	items   []domain.Notification
	failing bool
}

func (r *fakeNotificationRepo) Create(_ context.Context, dto domain.CreateNotificationDTO) (*domain.Notification, error) {
	if r.failing {
		return nil, errors.New("db down")
	}
	n := domain.Notification{
		ID:        int64(len(r.items) + 1),
		UserID:    dto.UserID,
		Type:      dto.Type,
		Title:     dto.Title,
		Message:   dto.Message,
		EntityID:  dto.EntityID,
		CreatedAt: testNow,
	}
	r.items = append(r.items, n)
	return &n, nil
}

func (r *fakeNotificationRepo) List(_ context.Context, filter domain.NotificationFilter) ([]domain.Notification, int, error) {
	result := []domain.Notification{}
	for _, n := range r.items {
		if n.UserID == filter.UserID && (!filter.UnreadOnly || !n.IsRead) {
			result = append(result, n)
		}
	}
	return result, len(result), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID int64) (int, error) {
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id int64) error {
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].UserID == userID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return notFoundErr("уведомление", id)
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	var count int64
	for i := range r.items {
		if r.items[i].UserID == userID && !r.items[i].IsRead {
			r.items[i].IsRead = true
			count++
		}
	}
	return count, nil
}

type recordingPusher struct {
	pushed []domain.Notification
}

func (p *recordingPusher) PushNotification(n domain.Notification) {
	p.pushed = append(p.pushed, n)
}

type recordingPublisher struct {
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestNotify(t *testing.T) {
	repo := &fakeNotificationRepo{}
	pusher := &recordingPusher{}
	publisher := &recordingPublisher{}
	svc := NewNotificationService(repo, pusher, publisher, zap.NewNop())
	ctx := context.Background()

	svc.Notify(ctx, domain.CreateNotificationDTO{UserID: 5, Type: domain.NotificationAppointmentBooked, Title: "Запись"})
	svc.Notify(ctx, domain.CreateNotificationDTO{UserID: 0, Type: domain.NotificationAppointmentBooked})

	if len(repo.items) != 1 {
		t.Fatalf("stored %d notifications, want 1", len(repo.items))
	}
	if len(pusher.pushed) != 1 || pusher.pushed[0].UserID != 5 {
		t.Errorf("pushed = %+v", pusher.pushed)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != domain.EventNotificationCreated {
		t.Errorf("events = %+v", publisher.events)
	}
}

func TestNotify_RepositoryFailure(t *testing.T) {
	pusher := &recordingPusher{}
	svc := NewNotificationService(&fakeNotificationRepo{failing: true}, pusher, nil, zap.NewNop())

	svc.Notify(context.Background(), domain.CreateNotificationDTO{UserID: 5, Type: domain.NotificationAppointmentBooked})

	if len(pusher.pushed) != 0 {
		t.Errorf("nothing should be pushed when storing fails, got %+v", pusher.pushed)
	}
}

func TestNotificationReadFlow(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Notify(ctx, domain.CreateNotificationDTO{UserID: 5, Type: domain.NotificationAppointmentStatus})
	}
	svc.Notify(ctx, domain.CreateNotificationDTO{UserID: 6, Type: domain.NotificationAppointmentStatus})

	if n, _ := svc.CountUnread(ctx, 5); n != 3 {
		t.Errorf("unread = %d, want 3", n)
	}

	if err := svc.MarkRead(ctx, 5, 4); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign notification: expected not found, got %v", err)
	}
	if err := svc.MarkRead(ctx, 5, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread, total, err := svc.List(ctx, domain.NotificationFilter{UserID: 5, UnreadOnly: true})
	if err != nil || total != 2 || len(unread) != 2 {
		t.Errorf("unread list = %v, %d, %v", unread, total, err)
	}

	marked, err := svc.MarkAllRead(ctx, 5)
	if err != nil || marked != 2 {
		t.Errorf("mark all = %d, %v", marked, err)
	}
	if n, _ := svc.CountUnread(ctx, 6); n != 1 {
		t.Errorf("other user unread = %d, want 1", n)
	}
}
