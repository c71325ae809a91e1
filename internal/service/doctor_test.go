package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"medbook/internal/domain"
)

func TestDoctorProfilePhoto(t *testing.T) {
	doctors := newFakeDoctorRepo(domain.Doctor{ID: 1, UserID: 10})
	files := &fakeStorage{objects: make(map[string][]byte)}
	specs := &fakeSpecializationRepo{items: make(map[int64]*domain.Specialization)}
	svc := NewDoctorService(doctors, nil, specs, files, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.UploadProfilePhoto(ctx, otherDoctorActor, 1, []byte("png"), "a.png"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other doctor: expected forbidden, got %v", err)
	}

	first, err := svc.UploadProfilePhoto(ctx, doctorActor, 1, []byte("png"), "a.png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if first != "https://files.test/doctors/a.png" {
		t.Errorf("photo url = %s", first)
	}

	if _, err := svc.UploadProfilePhoto(ctx, adminActor, 1, []byte("png"), "b.png"); err != nil {
		t.Fatalf("admin upload: %v", err)
	}
	if len(files.deleted) != 1 || files.deleted[0] != first {
		t.Errorf("previous photo not removed: %v", files.deleted)
	}

	if err := svc.DeleteProfilePhoto(ctx, doctorActor, 1); err != nil {
		t.Fatalf("delete photo: %v", err)
	}
	if doctors.doctors[1].ProfilePhotoURL != "" {
		t.Errorf("photo url not cleared: %s", doctors.doctors[1].ProfilePhotoURL)
	}
	if err := svc.DeleteProfilePhoto(ctx, doctorActor, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestDoctorUpdate_UnknownSpecialization(t *testing.T) {
	doctors := newFakeDoctorRepo(domain.Doctor{ID: 1, UserID: 10})
	specs := &fakeSpecializationRepo{items: make(map[int64]*domain.Specialization)}
	svc := NewDoctorService(doctors, nil, specs, nil, zap.NewNop())

	specID := int64(42)
	err := svc.Update(context.Background(), doctorActor, 1, domain.UpdateDoctorDTO{SpecializationID: &specID})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown specialization: expected not found, got %v", err)
	}

	if _, err := svc.UploadProfilePhoto(context.Background(), doctorActor, 1, []byte("png"), "a.png"); !errors.Is(err, errStorageDisabled) {
		t.Errorf("expected errStorageDisabled, got %v", err)
	}
}
