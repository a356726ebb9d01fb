package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone normalizes a phone number to E.164 format. countryCode is
// the ISO region used when the number has no international prefix.
func NormalizePhone(phone, countryCode string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	if countryCode == "" {
		countryCode = "US"
	}

	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// IsMobile reports whether the number is a mobile or mobile-capable line
func IsMobile(phone, countryCode string) (bool, error) {
	if countryCode == "" {
		countryCode = "US"
	}
	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return false, fmt.Errorf("failed to parse phone number: %w", err)
	}
	t := phonenumbers.GetNumberType(parsed)
	return t == phonenumbers.MOBILE || t == phonenumbers.FIXED_LINE_OR_MOBILE, nil
}
