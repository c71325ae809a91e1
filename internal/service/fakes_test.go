package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/cache"
	"medbook/internal/domain"
	"medbook/internal/repository"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func notFoundErr(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
}

// fakeStore хранит окна и записи вместе, чтобы фейковые репозитории вели
// booked_slots так же, как postgres-реализация.
type fakeStore struct {
	mu           sync.Mutex
	slots        map[int64]*domain.AppointmentSlot
	appointments map[int64]*domain.Appointment
	nextSlot     int64
	nextAppt     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:        make(map[int64]*domain.AppointmentSlot),
		appointments: make(map[int64]*domain.Appointment),
	}
}

func (s *fakeStore) activeFor(slotID int64, label string) int {
	n := 0
	for _, a := range s.appointments {
		if a.SlotID == slotID && a.TimeLabel == label && a.Status.IsActive() {
			n++
		}
	}
	return n
}

type fakeSlotRepo struct{ *fakeStore }

func (r fakeSlotRepo) Create(_ context.Context, list []domain.AppointmentSlot) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(list))
	for _, s := range list {
		s := s
		r.nextSlot++
		s.ID = r.nextSlot
		s.BookedSlots = append([]string{}, s.BookedSlots...)
		r.slots[s.ID] = &s
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (r fakeSlotRepo) GetByID(_ context.Context, id int64) (*domain.AppointmentSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, notFoundErr("окно приема", id)
	}
	cp := *s
	cp.BookedSlots = append([]string{}, s.BookedSlots...)
	return &cp, nil
}

func (r fakeSlotRepo) Update(_ context.Context, slot domain.AppointmentSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[slot.ID]; !ok {
		return notFoundErr("окно приема", slot.ID)
	}
	booked := []string{}
	seen := map[string]bool{}
	for _, a := range r.appointments {
		if a.SlotID == slot.ID && !seen[a.TimeLabel] && r.activeFor(slot.ID, a.TimeLabel) >= slot.Capacity() {
			seen[a.TimeLabel] = true
			booked = append(booked, a.TimeLabel)
		}
		if a.SlotID == slot.ID {
			a.SlotDate = slot.Date
		}
	}
	sort.Strings(booked)
	slot.BookedSlots = booked
	r.slots[slot.ID] = &slot
	return nil
}

func (r fakeSlotRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[id]; !ok {
		return notFoundErr("окно приема", id)
	}
	delete(r.slots, id)
	return nil
}

func (r fakeSlotRepo) DeleteByRecurrence(_ context.Context, doctorID int64, recurrenceID string) ([]domain.AppointmentSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := []domain.AppointmentSlot{}
	for id, s := range r.slots {
		if s.DoctorID != doctorID || s.RecurrenceID == nil || *s.RecurrenceID != recurrenceID {
			continue
		}
		busy := false
		for _, a := range r.appointments {
			if a.SlotID == id && a.Status.IsActive() {
				busy = true
			}
		}
		if busy {
			continue
		}
		deleted = append(deleted, *s)
		delete(r.slots, id)
	}
	return deleted, nil
}

func (r fakeSlotRepo) List(_ context.Context, filter domain.SlotFilter) ([]domain.AppointmentSlot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []domain.AppointmentSlot{}
	for _, s := range r.slots {
		if filter.DoctorID != nil && s.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.DateFrom != nil && s.Date < *filter.DateFrom {
			continue
		}
		if filter.DateTo != nil && s.Date > *filter.DateTo {
			continue
		}
		if filter.RecurrenceID != nil && (s.RecurrenceID == nil || *s.RecurrenceID != *filter.RecurrenceID) {
			continue
		}
		cp := *s
		cp.BookedSlots = append([]string{}, s.BookedSlots...)
		result = append(result, cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].ID < result[j].ID
	})

	total := len(result)
	if filter.Limit > 0 {
		if filter.Offset > len(result) {
			filter.Offset = len(result)
		}
		end := filter.Offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[filter.Offset:end]
	}
	return result, total, nil
}

func (r fakeSlotRepo) ActiveByLabel(_ context.Context, slotID int64) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Status.IsActive() {
			counts[a.TimeLabel]++
		}
	}
	return counts, nil
}

type fakeAppointmentRepo struct{ *fakeStore }

func (r fakeAppointmentRepo) Book(_ context.Context, appointment domain.Appointment, check repository.BookingCheck) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[appointment.SlotID]
	if !ok {
		return 0, notFoundErr("окно приема", appointment.SlotID)
	}

	active := r.activeFor(slot.ID, appointment.TimeLabel)
	patientHas := false
	for _, a := range r.appointments {
		if a.SlotID == slot.ID && a.TimeLabel == appointment.TimeLabel && a.PatientID == appointment.PatientID && a.Status.IsActive() {
			patientHas = true
		}
	}

	locked := *slot
	if err := check(repository.BookingState{Slot: &locked, ActiveForLabel: active, PatientHasBooking: patientHas}); err != nil {
		return 0, err
	}

	r.nextAppt++
	appointment.ID = r.nextAppt
	appointment.DoctorID = slot.DoctorID
	appointment.SlotDate = slot.Date
	appointment.Status = domain.AppointmentStatusPending
	appointment.PatientName = fmt.Sprintf("Пациент %d", appointment.PatientID)
	r.appointments[appointment.ID] = &appointment

	if active+1 >= slot.Capacity() {
		slot.BookedSlots = append(slot.BookedSlots, appointment.TimeLabel)
	}
	return appointment.ID, nil
}

func (r fakeAppointmentRepo) GetByID(_ context.Context, id int64) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, notFoundErr("запись", id)
	}
	cp := *a
	return &cp, nil
}

func (r fakeAppointmentRepo) ChangeStatus(_ context.Context, id int64, status domain.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return notFoundErr("запись", id)
	}
	a.Status = status

	if status == domain.AppointmentStatusCancelled {
		slot := r.slots[a.SlotID]
		if slot != nil && r.activeFor(slot.ID, a.TimeLabel) < slot.Capacity() {
			kept := slot.BookedSlots[:0]
			for _, l := range slot.BookedSlots {
				if l != a.TimeLabel {
					kept = append(kept, l)
				}
			}
			slot.BookedSlots = kept
		}
	}
	return nil
}

func (r fakeAppointmentRepo) List(_ context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []domain.Appointment{}
	for _, a := range r.appointments {
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (r fakeAppointmentRepo) CountActiveBySlot(_ context.Context, slotID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

type fakeDoctorRepo struct {
	doctors map[int64]*domain.Doctor
}

func newFakeDoctorRepo(doctors ...domain.Doctor) *fakeDoctorRepo {
	r := &fakeDoctorRepo{doctors: make(map[int64]*domain.Doctor)}
	for i := range doctors {
		d := doctors[i]
		r.doctors[d.ID] = &d
	}
	return r
}

func (r *fakeDoctorRepo) Create(_ context.Context, userID int64, dto domain.CreateDoctorDTO) (int64, error) {
	id := int64(len(r.doctors) + 1)
	r.doctors[id] = &domain.Doctor{ID: id, UserID: userID, SpecializationID: dto.SpecializationID, Bio: dto.Bio}
	return id, nil
}

func (r *fakeDoctorRepo) GetByID(_ context.Context, id int64) (*domain.Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return nil, notFoundErr("врач", id)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDoctorRepo) GetByUserID(_ context.Context, userID int64) (*domain.Doctor, error) {
	for _, d := range r.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, notFoundErr("врач пользователя", userID)
}

func (r *fakeDoctorRepo) Update(_ context.Context, id int64, dto domain.UpdateDoctorDTO) error {
	d, ok := r.doctors[id]
	if !ok {
		return notFoundErr("врач", id)
	}
	if dto.Bio != nil {
		d.Bio = *dto.Bio
	}
	return nil
}

func (r *fakeDoctorRepo) UpdateProfilePhoto(_ context.Context, id int64, photoURL string) error {
	d, ok := r.doctors[id]
	if !ok {
		return notFoundErr("врач", id)
	}
	d.ProfilePhotoURL = photoURL
	return nil
}

func (r *fakeDoctorRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.doctors[id]; !ok {
		return notFoundErr("врач", id)
	}
	delete(r.doctors, id)
	return nil
}

func (r *fakeDoctorRepo) List(_ context.Context, _ domain.DoctorFilter) ([]domain.Doctor, int, error) {
	result := []domain.Doctor{}
	for _, d := range r.doctors {
		result = append(result, *d)
	}
	return result, len(result), nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	sent []domain.CreateNotificationDTO
}

func (f *fakeNotifications) Notify(_ context.Context, dto domain.CreateNotificationDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, dto)
}

func (f *fakeNotifications) List(context.Context, domain.NotificationFilter) ([]domain.Notification, int, error) {
	return nil, 0, nil
}

func (f *fakeNotifications) CountUnread(context.Context, int64) (int, error) { return 0, nil }

func (f *fakeNotifications) MarkRead(context.Context, int64, int64) error { return nil }

func (f *fakeNotifications) MarkAllRead(context.Context, int64) (int64, error) { return 0, nil }

func (f *fakeNotifications) sentTo(userID int64) []domain.CreateNotificationDTO {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []domain.CreateNotificationDTO
	for _, n := range f.sent {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

var (
	doctorActor      = domain.Identity{UserID: 10, Role: domain.UserRoleDoctor}
	otherDoctorActor = domain.Identity{UserID: 20, Role: domain.UserRoleDoctor}
	adminActor       = domain.Identity{UserID: 1, Role: domain.UserRoleAdmin}
)

func patientActor(id int64) domain.Identity {
	return domain.Identity{UserID: id, Role: domain.UserRolePatient}
}

// booking собирает сервисы окон и записей поверх общего хранилища. Врач 1
// принадлежит пользователю 10, врач 2 пользователю 20.
type booking struct {
	store         *fakeStore
	doctors       *fakeDoctorRepo
	cache         *cache.AvailabilityCache
	notifications *fakeNotifications
	slots         *SlotServiceImpl
	appointments  *AppointmentServiceImpl
}

func newBooking() *booking {
	logger := zap.NewNop()
	store := newFakeStore()
	doctors := newFakeDoctorRepo(
		domain.Doctor{ID: 1, UserID: 10},
		domain.Doctor{ID: 2, UserID: 20},
	)
	availability, _ := cache.NewAvailabilityCache(config.CacheConfig{Enabled: true, SlotsSize: 100, TTL: time.Minute}, logger)
	events := newEventSink(availability, nil, logger)
	notifications := &fakeNotifications{}

	slotService := NewSlotService(fakeSlotRepo{store}, doctors, availability, events,
		config.SlotsConfig{MinDuration: 5, MaxDuration: 240, MaxRecurrenceWeeks: 12}, logger)
	slotService.now = func() time.Time { return testNow }

	appointmentService := NewAppointmentService(fakeAppointmentRepo{store}, fakeSlotRepo{store}, doctors, notifications, events, logger)
	appointmentService.now = func() time.Time { return testNow }

	return &booking{
		store:         store,
		doctors:       doctors,
		cache:         availability,
		notifications: notifications,
		slots:         slotService,
		appointments:  appointmentService,
	}
}
