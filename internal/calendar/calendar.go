// Package calendar classifies wall-clock timestamps into the session
// phases of the Shanghai and Shenzhen exchanges and answers
// trading-day questions.
package calendar

import "time"

const dateLayout = "2006-01-02"

// Phase is one slice of the exchange day.
type Phase string

const (
	PhasePreOpen          Phase = "pre_open"
	PhaseOpenCallNoCancel Phase = "open_call_no_cancel"
	PhaseOpenCall         Phase = "open_call"
	PhaseContinuousAM     Phase = "continuous_am"
	PhaseBreak            Phase = "break"
	PhaseContinuousPM     Phase = "continuous_pm"
	PhaseCloseCall        Phase = "close_call"
	PhasePostMarket       Phase = "post_market"
	PhaseClosed           Phase = "closed"
	PhaseNonTrading       Phase = "non_trading"
)

// window is a [start, end) slice of the local day, in minutes from
// midnight. All exchange boundaries fall on whole minutes.
type window struct {
	phase     Phase
	start     int
	end       int
	canCancel bool
}

func hm(h, m int) int { return h*60 + m }

// sessionWindows holds every clocked phase. The closed window wraps
// midnight (start > end) and is matched by a disjoint test.
var sessionWindows = []window{
	{PhasePreOpen, hm(9, 15), hm(9, 20), true},
	{PhaseOpenCallNoCancel, hm(9, 20), hm(9, 25), false},
	{PhaseOpenCall, hm(9, 25), hm(9, 30), false},
	{PhaseContinuousAM, hm(9, 30), hm(11, 30), true},
	{PhaseBreak, hm(11, 30), hm(13, 0), false},
	{PhaseContinuousPM, hm(13, 0), hm(14, 57), true},
	{PhaseCloseCall, hm(14, 57), hm(15, 0), false},
	{PhasePostMarket, hm(15, 0), hm(15, 30), false},
	{PhaseClosed, hm(15, 30), hm(9, 15), false},
}

// Calendar answers trading-day and session-phase questions for one
// exchange timezone.
type Calendar struct {
	loc      *time.Location
	holidays HolidayProvider
}

// New creates a Calendar. A nil location defaults to the exchange
// timezone; a nil provider means no holidays.
func New(loc *time.Location, holidays HolidayProvider) *Calendar {
	if loc == nil {
		loc = LoadShanghai()
	}
	if holidays == nil {
		holidays = DateSet{}
	}
	return &Calendar{loc: loc, holidays: holidays}
}

// LoadShanghai returns the exchange timezone, falling back to a fixed
// UTC+8 zone when the tz database is unavailable.
func LoadShanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// Location returns the calendar's exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay returns true when t falls on a weekday that is not an
// exchange holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays.IsHoliday(local)
}

// Phase classifies t into a session phase. Window boundaries are
// [start, end).
func (c *Calendar) Phase(t time.Time) Phase {
	if !c.IsTradingDay(t) {
		return PhaseNonTrading
	}

	local := t.In(c.loc)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range sessionWindows {
		if w.start > w.end {
			// Wraps midnight.
			if minute >= w.start || minute < w.end {
				return w.phase
			}
			continue
		}
		if minute >= w.start && minute < w.end {
			return w.phase
		}
	}
	return PhaseClosed
}

// CanPlaceOrder returns true when new orders are accepted at t: any
// clocked phase of a trading day except closed.
func (c *Calendar) CanPlaceOrder(t time.Time) bool {
	switch c.Phase(t) {
	case PhaseNonTrading, PhaseClosed:
		return false
	default:
		return true
	}
}

// CanCancelOrder returns true when pending orders may be canceled at t.
func (c *Calendar) CanCancelOrder(t time.Time) bool {
	phase := c.Phase(t)
	for _, w := range sessionWindows {
		if w.phase == phase {
			return w.canCancel
		}
	}
	return false
}

// IsPreMarket returns true during the opening auction phases, when
// orders queue instead of attempting an immediate fill.
func (c *Calendar) IsPreMarket(t time.Time) bool {
	switch c.Phase(t) {
	case PhasePreOpen, PhaseOpenCall, PhaseOpenCallNoCancel:
		return true
	default:
		return false
	}
}

// TradingDate returns t's calendar date in the exchange timezone,
// formatted YYYY-MM-DD.
func (c *Calendar) TradingDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}
