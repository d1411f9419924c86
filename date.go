package fat16

import "time"

// ParseDate decodes a DOS date stamp:
//
//	bits 0-4:  day of month, 1-31
//	bits 5-8:  month, 1-12
//	bits 9-15: years since 1980
//
// Day or month 0 are invalid and yield the zero time.Time, so IsZero can be
// used to detect unset dates. A month above 12 rolls over into the next year.
func ParseDate(input uint16) time.Time {
	year := 1980 + int(input>>9)
	month := time.Month(input >> 5 & 0x0F)
	day := int(input & 0x1F)

	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseTime decodes a DOS time stamp with 2 second granularity:
//
//	bits 0-4:   seconds / 2, 0-29
//	bits 5-10:  minutes, 0-59
//	bits 11-15: hours, 0-23
//
// The result is on January 1, year 1. A stamp with any field out of range
// yields 23:59:59.
func ParseTime(input uint16) time.Time {
	hour := int(input >> 11)
	minute := int(input >> 5 & 0x3F)
	second := int(input&0x1F) * 2

	if hour > 23 || minute > 59 || second > 59 {
		hour, minute, second = 23, 59, 59
	}
	return time.Date(1, 1, 1, hour, minute, second, 0, time.UTC)
}

// parseTimestamp combines a DOS date and time. The zero time.Time is
// returned if the date is unset.
func parseTimestamp(date, clock uint16) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}
	c := ParseTime(clock)

	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
}
