// Package pricing computes reservation totals and the platform/host split.
package pricing

import (
	"fmt"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Mode is the billing unit used for a quote.
type Mode string

const (
	ModeNightly Mode = "nightly"
	ModeHourly  Mode = "hourly"
)

// DefaultFeePercent is the marketplace cut of every booking.
const DefaultFeePercent = 10

const minorUnits = 2

// MaxTotal is the largest amount a money column (NUMERIC(10,2)) can hold.
var MaxTotal = decimal.RequireFromString("99999999.99")

var (
	hundred       = decimal.NewFromInt(100)
	minutesInHour = decimal.NewFromInt(60)
)

// Rates are the property prices relevant to a booking.
type Rates struct {
	Nightly       decimal.Decimal
	Hourly        *decimal.Decimal
	HourlyEnabled bool
}

// RatesFor extracts the pricing inputs of a property.
func RatesFor(p *domain.Property) Rates {
	return Rates{
		Nightly:       p.NightlyRate,
		Hourly:        p.HourlyRate,
		HourlyEnabled: p.HourlyEnabled,
	}
}

// Stay is the requested booking range. StartTime and EndTime are only set for
// hourly requests.
type Stay struct {
	CheckIn   time.Time
	CheckOut  time.Time
	StartTime *domain.TimeOfDay
	EndTime   *domain.TimeOfDay
}

// WantsHourly reports whether the guest supplied a time window.
func (s Stay) WantsHourly() bool {
	return s.StartTime != nil && s.EndTime != nil
}

// Quote is a fully computed price. Total always equals PlatformFee + HostNet.
type Quote struct {
	Mode        Mode
	Units       decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	PlatformFee decimal.Decimal
	HostNet     decimal.Decimal
}

// Engine prices stays with a fixed platform fee.
type Engine struct {
	feeRate decimal.Decimal
}

// NewEngine creates an engine charging feePercent of every total.
func NewEngine(feePercent int) (*Engine, error) {
	if feePercent < 0 || feePercent > 100 {
		return nil, fmt.Errorf("fee percent must be between 0 and 100, got %d", feePercent)
	}
	return &Engine{feeRate: decimal.NewFromInt(int64(feePercent)).Div(hundred)}, nil
}

// Price computes the total, platform fee and host net for a stay.
func (e *Engine) Price(rates Rates, stay Stay) (Quote, error) {
	if !rates.Nightly.IsPositive() {
		return Quote{}, fmt.Errorf("%w: nightly rate must be positive", domain.ErrValidation)
	}
	if stay.CheckIn.IsZero() || stay.CheckOut.IsZero() {
		return Quote{}, fmt.Errorf("%w: check-in and check-out dates are required", domain.ErrInvalidRange)
	}
	if dateOnly(stay.CheckOut).Before(dateOnly(stay.CheckIn)) {
		return Quote{}, fmt.Errorf("%w: check-out is before check-in", domain.ErrInvalidRange)
	}

	var (
		q   Quote
		err error
	)
	switch {
	case stay.WantsHourly() && rates.HourlyEnabled && rates.Hourly != nil && rates.Hourly.IsPositive():
		q, err = hourly(*rates.Hourly, stay)
	default:
		// Times sent for a nightly-only property are ignored: a same-day
		// request is one night, a longer range is charged per night.
		q = nightly(rates.Nightly, stay)
	}
	if err != nil {
		return Quote{}, err
	}

	q.Total = q.Total.Round(minorUnits)
	if q.Total.GreaterThan(MaxTotal) {
		return Quote{}, fmt.Errorf("%w: total %s exceeds the maximum of %s", domain.ErrValidation, q.Total.StringFixed(minorUnits), MaxTotal.StringFixed(minorUnits))
	}
	q.PlatformFee = e.Fee(q.Total)
	q.HostNet = q.Total.Sub(q.PlatformFee)
	return q, nil
}

// Fee returns the platform fee for total, rounded half-up to the minor unit.
func (e *Engine) Fee(total decimal.Decimal) decimal.Decimal {
	return total.Mul(e.feeRate).Round(minorUnits)
}

// Nights is the whole-day difference between the dates, never less than one.
func Nights(checkIn, checkOut time.Time) int {
	days := int(dateOnly(checkOut).Sub(dateOnly(checkIn)).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func nightly(rate decimal.Decimal, stay Stay) Quote {
	nights := decimal.NewFromInt(int64(Nights(stay.CheckIn, stay.CheckOut)))
	return Quote{
		Mode:      ModeNightly,
		Units:     nights,
		UnitPrice: rate,
		Total:     rate.Mul(nights),
	}
}

func hourly(rate decimal.Decimal, stay Stay) (Quote, error) {
	start := stay.StartTime.On(dateOnly(stay.CheckIn))
	end := stay.EndTime.On(dateOnly(stay.CheckOut))
	minutes := int64(end.Sub(start) / time.Minute)
	if minutes <= 0 {
		return Quote{}, fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidRange)
	}
	hours := decimal.NewFromInt(minutes).Div(minutesInHour)
	return Quote{
		Mode:      ModeHourly,
		Units:     hours,
		UnitPrice: rate,
		Total:     rate.Mul(decimal.NewFromInt(minutes)).Div(minutesInHour),
	}, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
