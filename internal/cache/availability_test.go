package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
)

func newTestCache(t *testing.T, size int) *AvailabilityCache {
	t.Helper()
	c, err := NewAvailabilityCache(config.CacheConfig{Enabled: true, SlotsSize: size, TTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("ошибка создания кэша: %v", err)
	}
	return c
}

func TestAvailabilityCache_GetSet(t *testing.T) {
	c := newTestCache(t, 10)

	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Fatal("пустой кэш не должен возвращать значения")
	}

	want := []domain.SlotAvailability{{SlotID: 5, Available: []string{"09:00", "09:30"}}}
	c.Set(1, "2024-03-18", c.Generation(1), want)

	got, ok := c.Get(1, "2024-03-18")
	if !ok || len(got) != 1 || got[0].SlotID != 5 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if _, ok := c.Get(1, "2024-03-19"); ok {
		t.Error("другая дата не должна попадать в кэш")
	}
	if _, ok := c.Get(2, "2024-03-18"); ok {
		t.Error("другой врач не должен попадать в кэш")
	}
}

func TestAvailabilityCache_Invalidate(t *testing.T) {
	c := newTestCache(t, 10)
	c.Set(1, "2024-03-18", c.Generation(1), nil)
	c.Set(1, "2024-03-19", c.Generation(1), nil)
	c.Set(2, "2024-03-18", c.Generation(2), nil)

	c.Invalidate(1, "2024-03-18")
	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Error("запись должна быть удалена")
	}
	if _, ok := c.Get(1, "2024-03-19"); !ok {
		t.Error("соседняя дата не должна удаляться")
	}

	c.InvalidateDoctor(1)
	if _, ok := c.Get(1, "2024-03-19"); ok {
		t.Error("все даты врача должны быть удалены")
	}
	if _, ok := c.Get(2, "2024-03-18"); !ok {
		t.Error("записи другого врача должны сохраниться")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, ожидалось 1", c.Len())
	}
}

func TestAvailabilityCache_Eviction(t *testing.T) {
	c := newTestCache(t, 2)
	c.Set(1, "2024-03-18", c.Generation(1), nil)
	c.Set(1, "2024-03-19", c.Generation(1), nil)
	c.Set(1, "2024-03-20", c.Generation(1), nil)

	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, ожидалось 2", c.Len())
	}
}

func TestAvailabilityCache_Disabled(t *testing.T) {
	c, err := NewAvailabilityCache(config.CacheConfig{Enabled: false}, zap.NewNop())
	if err != nil || c != nil {
		t.Fatalf("выключенный кэш должен быть nil без ошибки: %v, %v", c, err)
	}

	if c.Set(1, "2024-03-18", c.Generation(1), nil) {
		t.Error("выключенный кэш ничего не сохраняет")
	}
	c.Invalidate(1, "2024-03-18")
	c.InvalidateDoctor(1)
	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Error("выключенный кэш всегда промахивается")
	}
	if c.Len() != 0 {
		t.Error("Len выключенного кэша должен быть 0")
	}
}

func TestAvailabilityCache_StaleSetSkipped(t *testing.T) {
	c := newTestCache(t, 10)

	gen := c.Generation(1)
	// Между чтением из БД и записью в кэш прошла запись пациента.
	c.Invalidate(1, "2024-03-18")

	stale := []domain.SlotAvailability{{SlotID: 5, Available: []string{"09:00", "09:20"}}}
	if c.Set(1, "2024-03-18", gen, stale) {
		t.Error("значение, прочитанное до сброса, не должно сохраняться")
	}
	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Error("устаревшее значение попало в кэш")
	}

	if !c.Set(2, "2024-03-18", c.Generation(2), stale) {
		t.Error("сброс одного врача не должен мешать другому")
	}

	gen = c.Generation(1)
	c.InvalidateDoctor(1)
	if c.Set(1, "2024-03-19", gen, stale) {
		t.Error("сброс всех дат врача тоже меняет поколение")
	}

	if !c.Set(1, "2024-03-18", c.Generation(1), stale) {
		t.Error("актуальное поколение должно сохраняться")
	}
}

func TestAvailabilityCache_TTL(t *testing.T) {
	c, err := NewAvailabilityCache(config.CacheConfig{Enabled: true, SlotsSize: 10, TTL: 20 * time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("ошибка создания кэша: %v", err)
	}

	c.Set(1, "2024-03-18", c.Generation(1), nil)
	if _, ok := c.Get(1, "2024-03-18"); !ok {
		t.Fatal("значение должно быть в кэше")
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get(1, "2024-03-18"); ok {
		t.Error("значение должно истечь по TTL")
	}
}

func TestAvailabilityCache_InvalidSize(t *testing.T) {
	if _, err := NewAvailabilityCache(config.CacheConfig{Enabled: true, SlotsSize: 0}, zap.NewNop()); err == nil {
		t.Error("ожидалась ошибка для нулевого размера")
	}
}
