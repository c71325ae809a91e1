package slots

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var weekdayOrder = map[time.Weekday]int{
	time.Monday:    0,
	time.Tuesday:   1,
	time.Wednesday: 2,
	time.Thursday:  3,
	time.Friday:    4,
	time.Saturday:  5,
	time.Sunday:    6,
}

// WeekdayName - единственный источник day_of_week: всегда выводится из даты.
func WeekdayName(date time.Time) string {
	return date.Weekday().String()
}

// WeekdayIndex возвращает порядковый номер дня недели начиная с понедельника
// (0..6) или -1 для неизвестного имени.
func WeekdayIndex(name string) int {
	for day, idx := range weekdayOrder {
		if strings.EqualFold(day.String(), name) {
			return idx
		}
	}
	return -1
}

// ParseDate разбирает дату YYYY-MM-DD в UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// WeeklyOccurrences возвращает weeks дат с шагом в неделю, начиная с date.
func WeeklyOccurrences(date time.Time, weeks int) []time.Time {
	if weeks < 1 {
		return nil
	}

	dates := make([]time.Time, 0, weeks)
	for i := 0; i < weeks; i++ {
		dates = append(dates, date.AddDate(0, 0, 7*i))
	}
	return dates
}

// Capacity - число пациентов на одну метку: 1 для индивидуального приёма,
// maxPatients для группового.
func Capacity(group bool, maxPatients int) int {
	if !group || maxPatients < 1 {
		return 1
	}
	return maxPatients
}
