package dataset

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/zatekoja/maternidades/pkg/utils"
)

const phoneRegion = "BR"

// NormalizePhone returns the E.164 and national display forms of a CNES
// phone field. Numbers without area code or that fail validation yield
// empty strings; the raw value is kept by the caller.
func NormalizePhone(raw string) (e164, display string) {
	digits := strings.TrimLeft(utils.OnlyDigits(raw), "0")
	if strings.HasPrefix(digits, "55") && len(digits) >= 12 {
		digits = digits[2:]
	}
	if len(digits) < 10 || len(digits) > 11 {
		return "", ""
	}
	num, err := phonenumbers.Parse(digits, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumberForRegion(num, phoneRegion) {
		return "", ""
	}
	return phonenumbers.Format(num, phonenumbers.E164), phonenumbers.Format(num, phonenumbers.NATIONAL)
}
