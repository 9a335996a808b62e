package models

import "time"

// Date is a calendar day without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// Holiday is a non-business day of one calendar.
type Holiday struct {
	ID           int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CalendarCode string `json:"calendar_code" gorm:"column:calendar_code;size:20;not null;uniqueIndex:idx_holidays_calendar_day"`
	// Day is stored as YYYY-MM-DD.
	Day         string `json:"day" gorm:"column:day;size:10;not null;uniqueIndex:idx_holidays_calendar_day"`
	Description string `json:"description" gorm:"column:description;size:255"`
}

// TableName specifies the table name for GORM
func (Holiday) TableName() string {
	return "holidays"
}
