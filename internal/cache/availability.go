package cache

import (
	"errors"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
)

var errInvalidSize = errors.New("размер кэша должен быть положительным")

type availabilityKey struct {
	doctorID int64
	date     string
}

// AvailabilityCache хранит рассчитанную доступность врача на дату.
// Методы безопасны для nil-получателя: выключенный кэш всегда промахивается.
//
// Каждое сбрасывание увеличивает поколение врача. Set принимает поколение,
// прочитанное до обращения к БД, и пропускает запись, если с тех пор кэш
// врача сбрасывали.
type AvailabilityCache struct {
	cache  *expirable.LRU[availabilityKey, []domain.SlotAvailability]
	logger *zap.Logger

	mu          sync.Mutex
	generations map[int64]uint64
}

func NewAvailabilityCache(cfg config.CacheConfig, logger *zap.Logger) (*AvailabilityCache, error) {
	if !cfg.Enabled {
		logger.Info("Кэш доступности отключен")
		return nil, nil
	}

	if cfg.SlotsSize <= 0 {
		logger.Error("Некорректный размер кэша", zap.Int("size", cfg.SlotsSize))
		return nil, errInvalidSize
	}

	return &AvailabilityCache{
		cache:       expirable.NewLRU[availabilityKey, []domain.SlotAvailability](cfg.SlotsSize, nil, cfg.TTL),
		logger:      logger,
		generations: make(map[int64]uint64),
	}, nil
}

func (c *AvailabilityCache) Get(doctorID int64, date string) ([]domain.SlotAvailability, bool) {
	if c == nil {
		return nil, false
	}

	v, ok := c.cache.Get(availabilityKey{doctorID: doctorID, date: date})
	if !ok {
		c.logger.Debug("Промах кэша", zap.Int64("doctor_id", doctorID), zap.String("date", date))
		return nil, false
	}

	return v, true
}

// Generation возвращает текущее поколение кэша врача.
func (c *AvailabilityCache) Generation(doctorID int64) uint64 {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[doctorID]
}

// Set сохраняет значение, если поколение врача не изменилось с момента чтения.
func (c *AvailabilityCache) Set(doctorID int64, date string, generation uint64, v []domain.SlotAvailability) bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[doctorID] != generation {
		c.logger.Debug("Устаревшее значение не сохранено в кэш",
			zap.Int64("doctor_id", doctorID),
			zap.String("date", date))
		return false
	}

	c.cache.Add(availabilityKey{doctorID: doctorID, date: date}, v)
	return true
}

func (c *AvailabilityCache) Invalidate(doctorID int64, date string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[doctorID]++
	c.cache.Remove(availabilityKey{doctorID: doctorID, date: date})
}

func (c *AvailabilityCache) InvalidateDoctor(doctorID int64) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[doctorID]++
	for _, k := range c.cache.Keys() {
		if k.doctorID == doctorID {
			c.cache.Remove(k)
		}
	}
}

func (c *AvailabilityCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
