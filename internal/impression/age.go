package impression

import (
	"strconv"
	"strings"
	"time"
)

// Age returns the completed years since birthday at now, or 0 when birthday
// is the unknown sentinel or not a Y-M-D triple of integers.
func Age(birthday string, now time.Time) int {
	year, month, day, ok := splitBirthday(birthday)
	if !ok {
		return 0
	}
	age := now.Year() - year
	m, d := int(now.Month()), now.Day()
	if m < month || (m == month && d < day) {
		age--
	}
	return age
}

func splitBirthday(birthday string) (year, month, day int, ok bool) {
	if birthday == "" || birthday == UnknownBirthday {
		return 0, 0, 0, false
	}
	parts := strings.Split(birthday, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// ValidateBirthday checks the format accepted by the birthday command.
func ValidateBirthday(birthday string, now time.Time) error {
	year, month, day, ok := splitBirthday(birthday)
	if !ok {
		return ErrBirthdayFormat
	}
	if year < 1900 || year > now.Year() {
		return ErrBirthdayYear
	}
	if month < 1 || month > 12 {
		return ErrBirthdayMonth
	}
	if day < 1 || day > 31 {
		return ErrBirthdayDay
	}
	return nil
}
