package broker

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
)

type fakeInvalidator struct {
	dates   []string
	doctors []int64
}

func (f *fakeInvalidator) Invalidate(doctorID int64, date string) {
	f.dates = append(f.dates, date)
}

func (f *fakeInvalidator) InvalidateDoctor(doctorID int64) {
	f.doctors = append(f.doctors, doctorID)
}

func TestParseRoutingKey(t *testing.T) {
	resource, action, err := parseRoutingKey(domain.EventAppointmentBooked)
	if err != nil || resource != "appointment" || action != "booked" {
		t.Fatalf("parseRoutingKey = %q, %q, %v", resource, action, err)
	}

	for _, key := range []string{"", "slot", "slot.", ".changed", "a.b.c"} {
		if _, _, err := parseRoutingKey(key); err == nil {
			t.Errorf("parseRoutingKey(%q): ожидалась ошибка", key)
		}
	}
}

func TestListenerHandle(t *testing.T) {
	inv := &fakeInvalidator{}
	l := &Listener{cache: inv, logger: zap.NewNop()}

	if err := l.handle(domain.EventSlotChanged, []byte(`{"type":"slot.changed","doctor_id":3,"date":"2024-03-18"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inv.dates) != 1 || inv.dates[0] != "2024-03-18" {
		t.Errorf("ожидался сброс даты, получено %v", inv.dates)
	}

	if err := l.handle(domain.EventSlotDeleted, []byte(`{"type":"slot.deleted","doctor_id":3}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inv.doctors) != 1 || inv.doctors[0] != 3 {
		t.Errorf("ожидался сброс всех дат врача, получено %v", inv.doctors)
	}

	if err := l.handle(domain.EventNotificationCreated, []byte(`{}`)); err != nil {
		t.Errorf("посторонние события игнорируются: %v", err)
	}

	if err := l.handle(domain.EventAppointmentBooked, []byte(`не json`)); err == nil {
		t.Error("ожидалась ошибка разбора")
	}
	if err := l.handle(domain.EventAppointmentBooked, []byte(`{"date":"2024-03-18"}`)); err == nil {
		t.Error("ожидалась ошибка для события без врача")
	}
}

func TestInstanceQueue(t *testing.T) {
	a := instanceQueue("medbook.slots")
	b := instanceQueue("medbook.slots")

	if a.Name == b.Name {
		t.Errorf("экземпляры должны получать разные очереди: %s", a.Name)
	}
	if !strings.HasPrefix(a.Name, "medbook.slots.") {
		t.Errorf("имя очереди %q должно начинаться с префикса", a.Name)
	}
	if a.Durable || !a.AutoDelete || !a.Exclusive {
		t.Errorf("очередь экземпляра должна быть временной и эксклюзивной: %+v", a)
	}
}

func TestDisabledBroker(t *testing.T) {
	cfg := config.RabbitMQConfig{Enabled: false}

	p, err := NewPublisher(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if err := p.Publish(context.Background(), domain.Event{Type: domain.EventSlotChanged}); err != nil {
		t.Errorf("NopPublisher не должен возвращать ошибку: %v", err)
	}

	l, err := NewListener(cfg, &fakeInvalidator{}, zap.NewNop())
	if err != nil || l != nil {
		t.Fatalf("выключенный слушатель должен быть nil: %v, %v", l, err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Errorf("Start на nil: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("Stop на nil: %v", err)
	}
}
