package schedule

import "time"

// SeasonalContext is derived per tick from the wall-clock date. It is never
// persisted; it only steers prompt building and override selection.
type SeasonalContext struct {
	Season         string
	Month          time.Month
	IsHoliday      bool
	Holiday        string
	Topics         []string
	ToneAdjustment string
}

// holidayRule matches a fixed calendar window within a single month.
type holidayRule struct {
	month   time.Month
	dayFrom int
	dayTo   int
	name    string
	topics  []string
	tone    string
}

// holidayTable is the extensible set of fixed-date holiday windows.
// New entries are added here, not in callers.
var holidayTable = []holidayRule{
	{time.December, 24, 26, "Christmas", []string{"christmas traditions", "festive music", "family gatherings"}, "warm and festive"},
	{time.December, 31, 31, "New Year's Eve", []string{"year in review", "countdown", "celebrations"}, "celebratory"},
	{time.January, 1, 1, "New Year", []string{"new year resolutions", "fresh starts"}, "hopeful"},
	{time.October, 31, 31, "Halloween", []string{"halloween", "spooky stories"}, "playfully eerie"},
}

// SeasonalContext derives the season and any active holiday for a date.
// Seasons follow the meteorological split: Dec-Feb winter, Mar-May spring,
// Jun-Aug summer, Sep-Nov autumn.
func NewSeasonalContext(date time.Time) SeasonalContext {
	ctx := SeasonalContext{
		Season: seasonOf(date.Month()),
		Month:  date.Month(),
	}
	for _, rule := range holidayTable {
		if date.Month() == rule.month && date.Day() >= rule.dayFrom && date.Day() <= rule.dayTo {
			ctx.IsHoliday = true
			ctx.Holiday = rule.name
			ctx.Topics = append([]string(nil), rule.topics...)
			ctx.ToneAdjustment = rule.tone
			break
		}
	}
	return ctx
}

func seasonOf(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}
