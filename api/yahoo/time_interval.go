package yahoo

// TimeInterval specifies the bar size requested from the chart API.
type TimeInterval uint8

const (
	TimeIntervalDaily TimeInterval = iota
	TimeIntervalWeekly
	TimeIntervalMonthly
)

func (t TimeInterval) Name() string {
	switch t {
	case TimeIntervalDaily:
		return "TimeIntervalDaily"
	case TimeIntervalWeekly:
		return "TimeIntervalWeekly"
	case TimeIntervalMonthly:
		return "TimeIntervalMonthly"
	default:
		return ""
	}
}

func (t TimeInterval) Interval() string {
	switch t {
	case TimeIntervalDaily:
		return "1d"
	case TimeIntervalWeekly:
		return "1wk"
	case TimeIntervalMonthly:
		return "1mo"
	default:
		return ""
	}
}

// TimeRange is how far back the chart API should look.
type TimeRange uint8

const (
	TimeRangeOneMonth TimeRange = iota
	TimeRangeThreeMonths
	TimeRangeOneYear
	TimeRangeFiveYears
	TimeRangeMax
)

func (r TimeRange) Range() string {
	switch r {
	case TimeRangeOneMonth:
		return "1mo"
	case TimeRangeThreeMonths:
		return "3mo"
	case TimeRangeOneYear:
		return "1y"
	case TimeRangeFiveYears:
		return "5y"
	case TimeRangeMax:
		return "max"
	default:
		return ""
	}
}
