package templates

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"guestcharge/services"
)

// ToJSON encodes a value to string
func ToJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// FormatPrice formats price with 2 decimal places
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

// FormatCost prefixes the tax-inclusive amount with the session currency.
// A missing price renders as 0.00.
func FormatCost(currency string, price *services.Price) string {
	if price == nil {
		return currency + "0.00"
	}
	return currency + FormatPrice(price.InclVAT)
}

// FormatEnergy renders kWh with two decimals.
func FormatEnergy(kwh float64) string {
	return FormatPrice(kwh) + " kWh"
}

// FormatPercent renders a progress value as a whole percentage.
func FormatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', 0, 64) + "%"
}

// FormatDuration turns fractional hours into HH:MM:SS, truncating sub-second parts.
func FormatDuration(hours float64) string {
	if hours < 0 || math.IsNaN(hours) {
		hours = 0
	}
	total := int64(math.Floor(hours * 3600))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatClock renders a backend timestamp as a 12-hour clock, e.g. 02:30 PM.
// Unparsable input is returned unchanged.
func FormatClock(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Format("03:04 PM")
}

// FormatDate renders MM/DD/YYYY | hh:mm AM/PM.
func FormatDate(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Format("01/02/2006") + " | " + t.Format("03:04 PM")
}

const progressRadius = 56

// progressOffset is the stroke-dashoffset of the progress ring for percent.
func progressOffset(percent float64) string {
	circumference := 2 * math.Pi * progressRadius
	return strconv.FormatFloat(circumference*(1-percent/100), 'f', 2, 64)
}

func progressCircumference() string {
	return strconv.FormatFloat(2*math.Pi*progressRadius, 'f', 2, 64)
}
