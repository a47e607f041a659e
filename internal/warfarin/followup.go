package warfarin

import (
	"fmt"
	"time"
)

// FollowupDateLayout renders the absolute re-test date.
const FollowupDateLayout = "02/01/2006"

// followupRule is an INR interval with its re-test interval in days.
// Evaluated independently of DoseTable; the boundaries differ.
type followupRule struct {
	matches func(inr float64) bool
	days    int
}

var followupTable = []followupRule{
	{matches: func(inr float64) bool { return inr < 1.5 }, days: 7},
	{matches: func(inr float64) bool { return inr >= 1.5 && inr <= 1.9 }, days: 14},
	{matches: func(inr float64) bool { return inr >= 2.0 && inr <= 3.0 }, days: 56},
	{matches: func(inr float64) bool { return inr >= 3.1 && inr <= 3.9 }, days: 14},
	{matches: func(inr float64) bool { return inr >= 3.9 && inr <= 6.0 }, days: 7},
	{matches: func(inr float64) bool { return inr >= 6.0 && inr <= 8.9 }, days: 5},
	{matches: func(inr float64) bool { return inr > 9.0 }, days: 2},
}

// FollowupDays returns the re-test interval for inr. ok is false when no rule matches
// (for example exactly 9.0, or values between the listed intervals such as 1.95).
func FollowupDays(inr float64) (days int, ok bool) {
	for _, r := range followupTable {
		if r.matches(inr) {
			return r.days, true
		}
	}
	return 0, false
}

// followup looks up inr once and returns both the interval and the re-test date.
func followup(inr float64, now time.Time) (days int, date time.Time, ok bool) {
	days, ok = FollowupDays(inr)
	if !ok {
		return 0, time.Time{}, false
	}
	return days, now.AddDate(0, 0, days), true
}

// FollowupDate returns now shifted by the re-test interval.
func FollowupDate(inr float64, now time.Time) (time.Time, bool) {
	_, date, ok := followup(inr, now)
	return date, ok
}

// FollowupText renders the follow-up instruction with interval and calendar date.
func FollowupText(inr float64, now time.Time) string {
	days, date, ok := followup(inr, now)
	if !ok {
		return "📅 โปรดติดต่อแพทย์หรือเภสัชกรเพื่อกำหนดวันตรวจ INR ครั้งถัดไป"
	}
	return fmt.Sprintf("📅 ตรวจ INR ซ้ำในอีก %d วัน (วันที่ %s)", days, date.Format(FollowupDateLayout))
}
