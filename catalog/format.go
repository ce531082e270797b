package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatPrice renders an amount in US dollars, e.g. $12,500.00.
func FormatPrice(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	whole := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}

const itemNumberPrefix = "CAP"

// GenerateItemNumber returns CAP-<last 6 digits of the unix millis>-<3 chars>.
func GenerateItemNumber(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}

	id := uuid.New()
	suffix := strings.ToUpper(strconv.FormatUint(uint64(id[0])<<16|uint64(id[1])<<8|uint64(id[2]), 36))
	for len(suffix) < 3 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("%s-%s-%s", itemNumberPrefix, millis, suffix[len(suffix)-3:])
}

// Unit is a length unit for dimensions.
type Unit string

const (
	UnitCM Unit = "cm"
	UnitIn Unit = "in"
)

const cmPerInch = 2.54

// FormatDimensions renders width × height in centimeters, or in inches with
// one decimal.
func FormatDimensions(widthCM, heightCM float64, unit Unit) string {
	if unit == UnitIn {
		return fmt.Sprintf("%.1f × %.1f in", widthCM/cmPerInch, heightCM/cmPerInch)
	}
	return fmt.Sprintf("%s × %s cm",
		strconv.FormatFloat(widthCM, 'f', -1, 64),
		strconv.FormatFloat(heightCM, 'f', -1, 64),
	)
}

// Dynasty is a browse category on the home page.
type Dynasty struct {
	Name        string
	Description string
}

// Dynasties are the featured eras, in display order.
func Dynasties() []Dynasty {
	names := []string{"Ming Dynasty", "Qing Dynasty", "Republic Era"}
	out := make([]Dynasty, 0, len(names))
	for _, name := range names {
		out = append(out, Dynasty{
			Name:        name,
			Description: "Discover authentic paintings from the " + name + " period",
		})
	}
	return out
}
