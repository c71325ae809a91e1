package storage

import (
	"errors"
	"strings"
	"testing"

	"medbook/config"
)

var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

func TestDetectContentType(t *testing.T) {
	got, err := DetectContentType(pngHeader, ImageTypes)
	if err != nil || got != "image/png" {
		t.Fatalf("DetectContentType(png) = %q, %v", got, err)
	}

	got, err = DetectContentType([]byte("%PDF-1.7\n"), DocumentTypes)
	if err != nil || got != "application/pdf" {
		t.Fatalf("DetectContentType(pdf) = %q, %v", got, err)
	}

	if _, err := DetectContentType([]byte("%PDF-1.7\n"), ImageTypes); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("PDF не должен проходить как изображение, получено %v", err)
	}

	if _, err := DetectContentType([]byte("просто текст"), DocumentTypes); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("текст не должен проходить, получено %v", err)
	}

	if _, err := DetectContentType(nil, ImageTypes); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("ожидалась ErrEmptyFile, получено %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey(FolderDoctors, "Photo.JPG", "image/jpeg")
	if !strings.HasPrefix(key, "doctors/") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("неожиданный ключ %q", key)
	}

	key = ObjectKey(FolderPrescriptions, "", "application/pdf")
	if !strings.HasPrefix(key, "prescriptions/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("неожиданный ключ %q", key)
	}

	if ObjectKey("a", "x.png", "image/png") == ObjectKey("a", "x.png", "image/png") {
		t.Error("ключи должны быть уникальными")
	}
}

func TestObjectKeyFromURL(t *testing.T) {
	base := publicBase(config.S3Config{Endpoint: "s3.local:9000", Bucket: "medbook", UseSSL: true})
	if base != "https://s3.local:9000/medbook" {
		t.Fatalf("publicBase = %q", base)
	}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "doctors/a.jpg", want: "doctors/a.jpg"},
		{ref: "/doctors/a.jpg", want: "doctors/a.jpg"},
		{ref: base + "/doctors/a.jpg", want: "doctors/a.jpg"},
		{ref: "https://other.host/medbook/doctors/a.jpg", wantErr: true},
		{ref: base + "/", wantErr: true},
		{ref: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := objectKey(base, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("objectKey(%q): ожидалась ошибка", tt.ref)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("objectKey(%q) = %q, %v; ожидалось %q", tt.ref, got, err, tt.want)
		}
	}
}
