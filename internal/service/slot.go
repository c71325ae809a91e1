package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/cache"
	"medbook/internal/domain"
	"medbook/internal/repository"
	"medbook/pkg/slots"
)

type SlotServiceImpl struct {
	repo       repository.SlotRepository
	doctorRepo repository.DoctorRepository
	cache      *cache.AvailabilityCache
	events     *eventSink
	cfg        config.SlotsConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewSlotService(
	repo repository.SlotRepository,
	doctorRepo repository.DoctorRepository,
	availability *cache.AvailabilityCache,
	events *eventSink,
	cfg config.SlotsConfig,
	logger *zap.Logger,
) *SlotServiceImpl {
	return &SlotServiceImpl{
		repo:       repo,
		doctorRepo: doctorRepo,
		cache:      availability,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *SlotServiceImpl) Create(ctx context.Context, actor domain.Identity, dto domain.CreateSlotDTO) ([]domain.AppointmentSlot, error) {
	if actor.Role != domain.UserRoleDoctor {
		return nil, domain.Forbidden("создавать окна приема может только врач")
	}

	doctor, err := s.doctorRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("профиль врача не найден", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, repoError(err, "сначала заполните профиль врача", "", "ошибка при создании окна приема")
	}

	dto.StartTime = normalizeClock(dto.StartTime)
	dto.EndTime = normalizeClock(dto.EndTime)

	date, err := s.validateWindow(dto.Date, dto.StartTime, dto.EndTime, dto.SlotDuration)
	if err != nil {
		return nil, err
	}

	weeks := 1
	if dto.IsRecurring {
		weeks = dto.RecurrenceWeeks
		if weeks < 1 {
			return nil, domain.Validation("для повторяющегося окна укажите количество недель")
		}
		if weeks > s.cfg.MaxRecurrenceWeeks {
			return nil, domain.Validation(fmt.Sprintf("повторение не может превышать %d недель", s.cfg.MaxRecurrenceWeeks))
		}
	}

	var recurrenceID *string
	if dto.IsRecurring {
		recurrenceID = domain.PointerTo(uuid.New().String())
	}

	maxPatients := slots.Capacity(dto.SlotType == domain.SlotTypeGroup, dto.MaxPatients)

	occurrences := slots.WeeklyOccurrences(date, weeks)
	newSlots := make([]domain.AppointmentSlot, 0, len(occurrences))
	for _, d := range occurrences {
		newSlots = append(newSlots, domain.AppointmentSlot{
			DoctorID:     doctor.ID,
			Date:         d.Format(slots.DateLayout),
			StartTime:    dto.StartTime,
			EndTime:      dto.EndTime,
			SlotDuration: dto.SlotDuration,
			SlotType:     dto.SlotType,
			MaxPatients:  maxPatients,
			BookedSlots:  []string{},
			IsRecurring:  dto.IsRecurring,
			RecurrenceID: recurrenceID,
		})
	}

	if err := s.checkOverlap(ctx, doctor.ID, 0, newSlots); err != nil {
		return nil, err
	}

	ids, err := s.repo.Create(ctx, newSlots)
	if err != nil {
		s.logger.Error("ошибка создания окон приема", zap.Int64("doctorID", doctor.ID), zap.Error(err))
		return nil, errors.New("ошибка при создании окна приема")
	}

	for i := range newSlots {
		newSlots[i].ID = ids[i]
		if err := newSlots[i].Derive(); err != nil {
			s.logger.Error("ошибка расчета окна приема", zap.Int64("id", ids[i]), zap.Error(err))
			return nil, errors.New("ошибка при создании окна приема")
		}
		s.events.emit(ctx, domain.Event{
			Type:     domain.EventSlotChanged,
			DoctorID: doctor.ID,
			Date:     newSlots[i].Date,
			SlotID:   ids[i],
		})
	}

	s.logger.Info("созданы окна приема",
		zap.Int64("doctorID", doctor.ID),
		zap.Int("count", len(newSlots)),
		zap.Bool("recurring", dto.IsRecurring),
	)

	return newSlots, nil
}

func (s *SlotServiceImpl) GetByID(ctx context.Context, id int64) (*domain.AppointmentSlot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("ошибка получения окна приема", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "окно приема не найдено", "", "ошибка при получении окна приема")
	}

	if err := slot.Derive(); err != nil {
		s.logger.Error("ошибка расчета окна приема", zap.Int64("id", id), zap.Error(err))
		return nil, errors.New("ошибка при получении окна приема")
	}

	return slot, nil
}

func (s *SlotServiceImpl) List(ctx context.Context, filter domain.SlotFilter) ([]domain.AppointmentSlot, int, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)

	if err := validateRange(filter.DateFrom, filter.DateTo); err != nil {
		return nil, 0, err
	}

	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("ошибка получения списка окон приема", zap.Error(err))
		return nil, 0, errors.New("ошибка при получении списка окон приема")
	}

	if err := s.deriveAll(list); err != nil {
		return nil, 0, errors.New("ошибка при получении списка окон приема")
	}

	return list, total, nil
}

func (s *SlotServiceImpl) Update(ctx context.Context, actor domain.Identity, id int64, dto domain.UpdateSlotDTO) (*domain.AppointmentSlot, error) {
	slot, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	oldDate := slot.Date
	updated := *slot

	if dto.Date != nil {
		updated.Date = *dto.Date
	}
	if dto.StartTime != nil {
		updated.StartTime = *dto.StartTime
	}
	if dto.EndTime != nil {
		updated.EndTime = *dto.EndTime
	}
	if dto.SlotDuration != nil {
		updated.SlotDuration = *dto.SlotDuration
	}
	if dto.SlotType != nil {
		updated.SlotType = *dto.SlotType
	}
	if dto.MaxPatients != nil {
		updated.MaxPatients = *dto.MaxPatients
	}
	updated.MaxPatients = slots.Capacity(updated.SlotType == domain.SlotTypeGroup, updated.MaxPatients)
	updated.StartTime = normalizeClock(updated.StartTime)
	updated.EndTime = normalizeClock(updated.EndTime)

	if _, err := s.validateWindow(updated.Date, updated.StartTime, updated.EndTime, updated.SlotDuration); err != nil {
		// прошедшую дату можно оставить, если ее не меняют
		if !(updated.Date == oldDate && errors.Is(err, errPastDate)) {
			return nil, err
		}
	}

	active, err := s.repo.ActiveByLabel(ctx, id)
	if err != nil {
		s.logger.Error("ошибка подсчета записей окна", zap.Int64("id", id), zap.Error(err))
		return nil, errors.New("ошибка при обновлении окна приема")
	}
	capacity := updated.Capacity()
	for label, count := range active {
		if count > capacity {
			return nil, domain.Conflict(fmt.Sprintf("на %s уже записано %d пациентов, вместимость не может быть меньше", label, count))
		}
	}

	if err := s.checkOverlap(ctx, updated.DoctorID, id, []domain.AppointmentSlot{updated}); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		s.logger.Error("ошибка обновления окна приема", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "окно приема не найдено", "", "ошибка при обновлении окна приема")
	}

	s.events.emit(ctx, domain.Event{Type: domain.EventSlotChanged, DoctorID: updated.DoctorID, Date: oldDate, SlotID: id})
	if updated.Date != oldDate {
		s.events.emit(ctx, domain.Event{Type: domain.EventSlotChanged, DoctorID: updated.DoctorID, Date: updated.Date, SlotID: id})
	}

	return s.GetByID(ctx, id)
}

func (s *SlotServiceImpl) Delete(ctx context.Context, actor domain.Identity, id int64) error {
	slot, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	active, err := s.repo.ActiveByLabel(ctx, id)
	if err != nil {
		s.logger.Error("ошибка подсчета записей окна", zap.Int64("id", id), zap.Error(err))
		return errors.New("ошибка при удалении окна приема")
	}
	if len(active) > 0 {
		return domain.Conflict("нельзя удалить окно с активными записями, сначала отмените их")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("ошибка удаления окна приема", zap.Int64("id", id), zap.Error(err))
		return repoError(err, "окно приема не найдено", "", "ошибка при удалении окна приема")
	}

	s.events.emit(ctx, domain.Event{Type: domain.EventSlotDeleted, DoctorID: slot.DoctorID, Date: slot.Date, SlotID: id})

	return nil
}

// DeleteSeries удаляет все окна серии без активных записей и возвращает их число.
func (s *SlotServiceImpl) DeleteSeries(ctx context.Context, actor domain.Identity, recurrenceID string) (int, error) {
	if _, err := uuid.Parse(recurrenceID); err != nil {
		return 0, domain.Validation("некорректный идентификатор серии")
	}

	series, _, err := s.repo.List(ctx, domain.SlotFilter{RecurrenceID: &recurrenceID, Limit: 1})
	if err != nil {
		s.logger.Error("ошибка получения серии окон", zap.String("recurrenceID", recurrenceID), zap.Error(err))
		return 0, errors.New("ошибка при удалении серии окон")
	}
	if len(series) == 0 {
		return 0, domain.NotFound("серия окон не найдена")
	}

	doctorID := series[0].DoctorID
	if err := s.checkOwner(ctx, actor, doctorID); err != nil {
		return 0, err
	}

	deleted, err := s.repo.DeleteByRecurrence(ctx, doctorID, recurrenceID)
	if err != nil {
		s.logger.Error("ошибка удаления серии окон", zap.String("recurrenceID", recurrenceID), zap.Error(err))
		return 0, errors.New("ошибка при удалении серии окон")
	}

	for _, slot := range deleted {
		s.events.emit(ctx, domain.Event{Type: domain.EventSlotDeleted, DoctorID: doctorID, Date: slot.Date, SlotID: slot.ID})
	}

	s.logger.Info("удалена серия окон",
		zap.String("recurrenceID", recurrenceID),
		zap.Int("deleted", len(deleted)),
	)

	return len(deleted), nil
}

func (s *SlotServiceImpl) Availability(ctx context.Context, doctorID int64, date string) ([]domain.SlotAvailability, error) {
	if _, err := slots.ParseDate(date); err != nil {
		return nil, domain.Validation("дата должна быть в формате YYYY-MM-DD")
	}

	if cached, ok := s.cache.Get(doctorID, date); ok {
		return cached, nil
	}
	generation := s.cache.Generation(doctorID)

	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		s.logger.Warn("врач не найден", zap.Int64("doctorID", doctorID), zap.Error(err))
		return nil, repoError(err, "врач не найден", "", "ошибка при получении свободного времени")
	}

	list, _, err := s.repo.List(ctx, domain.SlotFilter{DoctorID: &doctorID, DateFrom: &date, DateTo: &date})
	if err != nil {
		s.logger.Error("ошибка получения окон на дату", zap.Int64("doctorID", doctorID), zap.String("date", date), zap.Error(err))
		return nil, errors.New("ошибка при получении свободного времени")
	}

	result := make([]domain.SlotAvailability, 0, len(list))
	for i := range list {
		slot := &list[i]
		if err := slot.Derive(); err != nil {
			s.logger.Error("ошибка расчета окна приема", zap.Int64("id", slot.ID), zap.Error(err))
			return nil, errors.New("ошибка при получении свободного времени")
		}

		item := domain.SlotAvailability{
			SlotID:    slot.ID,
			Date:      slot.Date,
			DayOfWeek: slot.DayOfWeek,
			SlotType:  slot.SlotType,
			Duration:  slot.SlotDuration,
			Available: slot.AvailableSlots,
		}

		if slot.SlotType == domain.SlotTypeGroup {
			active, err := s.repo.ActiveByLabel(ctx, slot.ID)
			if err != nil {
				s.logger.Error("ошибка подсчета записей окна", zap.Int64("id", slot.ID), zap.Error(err))
				return nil, errors.New("ошибка при получении свободного времени")
			}
			item.Remaining = remainingSeats(slot.AvailableSlots, active, slot.Capacity())
		}

		result = append(result, item)
	}

	s.cache.Set(doctorID, date, generation, result)

	return result, nil
}

func (s *SlotServiceImpl) GroupByDay(ctx context.Context, doctorID int64, dateFrom, dateTo *string) ([]domain.SlotDayGroup, error) {
	list, err := s.doctorSlots(ctx, doctorID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	groups := []domain.SlotDayGroup{}
	index := make(map[string]int)
	for _, slot := range list {
		i, ok := index[slot.Date]
		if !ok {
			i = len(groups)
			index[slot.Date] = i
			groups = append(groups, domain.SlotDayGroup{
				Date:      slot.Date,
				DayOfWeek: slot.DayOfWeek,
				Slots:     []domain.AppointmentSlot{},
			})
		}

		labels, _ := slot.Labels()
		groups[i].Slots = append(groups[i].Slots, slot)
		groups[i].Summary = groups[i].Summary.Add(slots.Stats(labels, slot.BookedSlots))
	}

	return groups, nil
}

func (s *SlotServiceImpl) Stats(ctx context.Context, doctorID int64, dateFrom, dateTo *string) (*domain.SlotStats, error) {
	list, err := s.doctorSlots(ctx, doctorID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	stats := &domain.SlotStats{
		DoctorID:  doctorID,
		Windows:   len(list),
		ByWeekday: make([]domain.WeekdayStats, 7),
	}

	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range stats.ByWeekday {
		stats.ByWeekday[i].DayOfWeek = slots.WeekdayName(monday.AddDate(0, 0, i))
	}

	for _, slot := range list {
		labels, _ := slot.Labels()
		summary := slots.Stats(labels, slot.BookedSlots)

		stats.Summary = stats.Summary.Add(summary)
		if i := slots.WeekdayIndex(slot.DayOfWeek); i >= 0 {
			stats.ByWeekday[i].Summary = stats.ByWeekday[i].Summary.Add(summary)
		}
	}

	return stats, nil
}

// doctorSlots возвращает все окна врача за период в порядке дат.
func (s *SlotServiceImpl) doctorSlots(ctx context.Context, doctorID int64, dateFrom, dateTo *string) ([]domain.AppointmentSlot, error) {
	if err := validateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}

	if _, err := s.doctorRepo.GetByID(ctx, doctorID); err != nil {
		s.logger.Warn("врач не найден", zap.Int64("doctorID", doctorID), zap.Error(err))
		return nil, repoError(err, "врач не найден", "", "ошибка при получении окон приема")
	}

	list, _, err := s.repo.List(ctx, domain.SlotFilter{DoctorID: &doctorID, DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		s.logger.Error("ошибка получения окон врача", zap.Int64("doctorID", doctorID), zap.Error(err))
		return nil, errors.New("ошибка при получении окон приема")
	}

	if err := s.deriveAll(list); err != nil {
		return nil, errors.New("ошибка при получении окон приема")
	}

	return list, nil
}

func (s *SlotServiceImpl) deriveAll(list []domain.AppointmentSlot) error {
	for i := range list {
		if err := list[i].Derive(); err != nil {
			s.logger.Error("ошибка расчета окна приема", zap.Int64("id", list[i].ID), zap.Error(err))
			return err
		}
	}
	return nil
}

var errPastDate = domain.Validation("нельзя создать окно приема на прошедшую дату")

// validateWindow проверяет дату, границы и длительность окна и возвращает
// разобранную дату.
func (s *SlotServiceImpl) validateWindow(date, start, end string, duration int) (time.Time, error) {
	parsed, err := slots.ParseDate(date)
	if err != nil {
		return time.Time{}, domain.Validation("дата должна быть в формате YYYY-MM-DD")
	}

	if duration < s.cfg.MinDuration || duration > s.cfg.MaxDuration {
		return time.Time{}, domain.Validation(fmt.Sprintf("длительность приема должна быть от %d до %d минут", s.cfg.MinDuration, s.cfg.MaxDuration))
	}

	n, err := slots.Count(start, end, duration)
	if err != nil {
		if errors.Is(err, slots.ErrInvalidTime) {
			return time.Time{}, domain.Validation("время должно быть в формате HH:MM")
		}
		return time.Time{}, domain.Validation("некорректная длительность приема")
	}
	if end <= start {
		return time.Time{}, domain.Validation("время начала должно быть раньше времени окончания")
	}
	if n == 0 {
		return time.Time{}, domain.Validation("в окне не помещается ни один прием")
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if parsed.Before(today) {
		return parsed, errPastDate
	}

	return parsed, nil
}

// checkOverlap отклоняет окна, пересекающиеся по времени с уже существующими
// окнами врача в те же даты. exceptID исключает обновляемое окно.
func (s *SlotServiceImpl) checkOverlap(ctx context.Context, doctorID, exceptID int64, candidates []domain.AppointmentSlot) error {
	if len(candidates) == 0 {
		return nil
	}

	from, to := candidates[0].Date, candidates[len(candidates)-1].Date
	existing, _, err := s.repo.List(ctx, domain.SlotFilter{DoctorID: &doctorID, DateFrom: &from, DateTo: &to})
	if err != nil {
		s.logger.Error("ошибка проверки пересечения окон", zap.Int64("doctorID", doctorID), zap.Error(err))
		return errors.New("ошибка при проверке расписания")
	}

	for _, c := range candidates {
		for _, e := range existing {
			if e.ID == exceptID || e.Date != c.Date {
				continue
			}
			if c.StartTime < e.EndTime && e.StartTime < c.EndTime {
				return domain.Conflict(fmt.Sprintf("окно %s %s-%s пересекается с существующим %s-%s",
					c.Date, c.StartTime, c.EndTime, e.StartTime, e.EndTime))
			}
		}
	}

	return nil
}

// owned возвращает окно, если его может менять actor.
func (s *SlotServiceImpl) owned(ctx context.Context, actor domain.Identity, id int64) (*domain.AppointmentSlot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("окно приема не найдено", zap.Int64("id", id), zap.Error(err))
		return nil, repoError(err, "окно приема не найдено", "", "ошибка при получении окна приема")
	}

	if err := s.checkOwner(ctx, actor, slot.DoctorID); err != nil {
		return nil, err
	}

	return slot, nil
}

func (s *SlotServiceImpl) checkOwner(ctx context.Context, actor domain.Identity, doctorID int64) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != domain.UserRoleDoctor {
		return domain.Forbidden("нет прав на изменение окна приема")
	}

	doctor, err := s.doctorRepo.GetByUserID(ctx, actor.UserID)
	if err != nil || doctor.ID != doctorID {
		return domain.Forbidden("нет прав на изменение окна приема")
	}

	return nil
}

// normalizeClock приводит время к виду HH:MM, чтобы метки и границы
// сравнивались как строки.
func normalizeClock(s string) string {
	c, err := slots.ParseClock(s)
	if err != nil {
		return s
	}
	return c.String()
}

func validateRange(from, to *string) error {
	var start, end time.Time
	var err error
	if from != nil {
		if start, err = slots.ParseDate(*from); err != nil {
			return domain.Validation("date_from должна быть в формате YYYY-MM-DD")
		}
	}
	if to != nil {
		if end, err = slots.ParseDate(*to); err != nil {
			return domain.Validation("date_to должна быть в формате YYYY-MM-DD")
		}
	}
	if from != nil && to != nil && end.Before(start) {
		return domain.Validation("date_to не может быть раньше date_from")
	}
	return nil
}

// remainingSeats - сколько мест осталось на каждой свободной метке группового окна.
func remainingSeats(available []string, active map[string]int, capacity int) map[string]int {
	remaining := make(map[string]int, len(available))
	for _, label := range available {
		left := capacity - active[label]
		if left < 0 {
			left = 0
		}
		remaining[label] = left
	}
	return remaining
}
