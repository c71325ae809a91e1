// Package slots делит рабочий интервал врача на приёмные слоты.
//
// Все функции чистые: одинаковые входные данные дают одинаковый результат,
// состояние не хранится. Интервал полуоткрытый: [start, end).
package slots

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const clockLayout = "15:04"

var (
	ErrInvalidTime     = errors.New("неверный формат времени, ожидается HH:MM")
	ErrInvalidDuration = errors.New("длительность слота должна быть положительной")
)

// Clock - время суток в минутах от полуночи.
type Clock int

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// bounds разбирает тройку (start, end, duration) и проверяет длительность.
func bounds(start, end string, duration int) (Clock, Clock, error) {
	if duration <= 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}

	from, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}

	to, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}

	return from, to, nil
}

// Generate возвращает метки t0 = start, t0+duration, ... для слотов, целиком
// помещающихся в [start, end). Метка, равная end, не включается, неполный
// хвост интервала отбрасывается. При end <= start результат пустой.
func Generate(start, end string, duration int) ([]string, error) {
	from, to, err := bounds(start, end, duration)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, count(from, to, duration))
	for t := from; t+Clock(duration) <= to; t += Clock(duration) {
		labels = append(labels, t.String())
	}

	return labels, nil
}

// Count равен floor((end-start)/duration) и всегда совпадает с len(Generate).
func Count(start, end string, duration int) (int, error) {
	from, to, err := bounds(start, end, duration)
	if err != nil {
		return 0, err
	}
	return count(from, to, duration), nil
}

func count(from, to Clock, duration int) int {
	if to <= from {
		return 0
	}
	return int(to-from) / duration
}

// Available - разность generated и booked по точному совпадению меток.
// Порядок generated сохраняется, лишние booked игнорируются.
func Available(generated, booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, label := range booked {
		taken[label] = struct{}{}
	}

	available := make([]string, 0, len(generated))
	for _, label := range generated {
		if _, ok := taken[label]; !ok {
			available = append(available, label)
		}
	}

	return available
}

// Contains сообщает, входит ли метка в последовательность.
func Contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

type Summary struct {
	Total         int     `json:"total"`
	Booked        int     `json:"booked"`
	Available     int     `json:"available"`
	BookedPercent float64 `json:"booked_percent"`
}

// Stats считает занятость по сгенерированным меткам. Занятые метки вне
// generated не учитываются.
func Stats(generated, booked []string) Summary {
	available := Available(generated, booked)

	s := Summary{
		Total:     len(generated),
		Available: len(available),
		Booked:    len(generated) - len(available),
	}
	s.BookedPercent = Percent(s.Booked, s.Total)

	return s
}

func (s Summary) Add(other Summary) Summary {
	sum := Summary{
		Total:     s.Total + other.Total,
		Booked:    s.Booked + other.Booked,
		Available: s.Available + other.Available,
	}
	sum.BookedPercent = Percent(sum.Booked, sum.Total)
	return sum
}

// Percent округляет до одного знака; при total == 0 возвращает 0.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
