package schedule

import (
	"strconv"
	"strings"
	"time"

	"vitalhub/internal/models"
)

// IsSuppressed 判断 now 是否落在任一作息时间段内（命中则暂停监护和报警）
// 无时间段时返回 false。纯函数，结果只由入参决定。
func IsSuppressed(schedules []models.Schedule, now time.Time) bool {
	for i := range schedules {
		if matches(&schedules[i], now) {
			return true
		}
	}
	return false
}

func matches(s *models.Schedule, now time.Time) bool {
	start, ok := parseClock(s.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(s.EndTime)
	if !ok {
		return false
	}

	if len(s.DateRanges) > 0 {
		return matchDateRanges(s.DateRanges, start, end, now)
	}
	return matchWeekly(s.DaysOfWeek, start, end, now)
}

// matchWeekly 每周重复形式：星期集合 + [start, end) 时间窗
func matchWeekly(daysOfWeek string, start, end int, now time.Time) bool {
	if !containsWeekday(daysOfWeek, isoWeekday(now)) {
		return false
	}

	t := now.Hour()*60 + now.Minute()
	if end < start {
		// 跨午夜：当天 start 之后，或次日 end 之前
		return t >= start || t <= end
	}
	return t >= start && t < end
}

// matchDateRanges 日期区间形式：闭区间内每天一个（可跨午夜的）时间窗
func matchDateRanges(ranges []models.DateRange, start, end int, now time.Time) bool {
	loc := now.Location()
	for _, r := range ranges {
		startDate, err := time.ParseInLocation("2006-01-02", r.StartDate, loc)
		if err != nil {
			continue
		}
		endDate, err := time.ParseInLocation("2006-01-02", r.EndDate, loc)
		if err != nil || endDate.Before(startDate) {
			continue
		}

		for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
			startAt := day.Add(time.Duration(start) * time.Minute)
			endAt := day.Add(time.Duration(end) * time.Minute)
			if end < start {
				// 跨午夜：结束时刻推到次日
				endAt = endAt.AddDate(0, 0, 1)
			}
			if now.After(startAt) && now.Before(endAt) {
				return true
			}
		}
	}
	return false
}

// isoWeekday 1=周一 .. 7=周日
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsWeekday(daysOfWeek string, day int) bool {
	for _, part := range strings.Split(daysOfWeek, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if n == day {
			return true
		}
	}
	return false
}

// parseClock 解析 "HH:mm"，返回当日分钟数
func parseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
