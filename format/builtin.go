package format

import (
	"fmt"
	"net/mail"
	"time"

	"go.jacobcolvin.com/foundry/randx"
)

// emailPlugin serves the "email" format with addresses over a fixed
// placeholder domain.
type emailPlugin struct{}

func (emailPlugin) Name() string { return "email" }

func (emailPlugin) Generate(rng *randx.XorShift32) (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz"

	local := make([]byte, 8)
	for i := range local {
		local[i] = letters[rng.IntN(len(letters))]
	}

	return string(local) + "@example.com", nil
}

func (emailPlugin) Validate(v string) bool {
	_, err := mail.ParseAddress(v)

	return err == nil
}

func (emailPlugin) Examples() []string {
	return []string{"user@example.com"}
}

// datePlugin serves the "date" format (RFC 3339 full-date).
type datePlugin struct{}

func (datePlugin) Name() string { return "date" }

func (datePlugin) Generate(rng *randx.XorShift32) (string, error) {
	return randomTime(rng).Format(time.DateOnly), nil
}

func (datePlugin) Validate(v string) bool {
	_, err := time.Parse(time.DateOnly, v)

	return err == nil
}

func (datePlugin) Examples() []string {
	return []string{"2024-06-15"}
}

// dateTimePlugin serves the "date-time" format (RFC 3339 date-time).
type dateTimePlugin struct{}

func (dateTimePlugin) Name() string { return "date-time" }

func (dateTimePlugin) Generate(rng *randx.XorShift32) (string, error) {
	return randomTime(rng).Format(time.RFC3339), nil
}

func (dateTimePlugin) Validate(v string) bool {
	_, err := time.Parse(time.RFC3339, v)

	return err == nil
}

func (dateTimePlugin) Examples() []string {
	return []string{"2024-06-15T10:30:00Z"}
}

// ipv4Plugin serves the "ipv4" format.
type ipv4Plugin struct{}

func (ipv4Plugin) Name() string { return "ipv4" }

func (ipv4Plugin) Generate(rng *randx.XorShift32) (string, error) {
	return fmt.Sprintf("%d.%d.%d.%d",
		rng.IntN(224), rng.IntN(256), rng.IntN(256), 1+rng.IntN(254)), nil
}

func (ipv4Plugin) Validate(v string) bool {
	var a, b, c, d int

	n, err := fmt.Sscanf(v, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return false
	}

	for _, octet := range []int{a, b, c, d} {
		if octet < 0 || octet > 255 {
			return false
		}
	}

	return true
}

func (ipv4Plugin) Examples() []string {
	return []string{"192.0.2.1"}
}

// randomTime maps a stream draw onto a fixed 40-year window starting at
// 2000-01-01T00:00:00Z, at whole-second resolution.
func randomTime(rng *randx.XorShift32) time.Time {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	span := int64(40 * 365 * 24 * 3600)

	offset := int64(rng.Next()) % span

	return base.Add(time.Duration(offset) * time.Second)
}
