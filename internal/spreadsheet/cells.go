package spreadsheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ParseDecimal reads an amount cell. Thousands separators are accepted and an
// empty cell is zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	value = strings.ReplaceAll(value, ",", "")

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", value)
	}
	return d, nil
}

// ParseDate reads a date cell using the first layout that matches. Cells that
// hold an excel serial number instead of text are converted as well.
func ParseDate(value string, layouts ...string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("date %q does not match %s", value, strings.Join(layouts, " or "))
}
