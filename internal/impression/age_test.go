package impression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	before := time.Date(2026, time.June, 14, 0, 0, 0, 0, time.UTC)
	onDay := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 25, Age("2000-06-15", before))
	assert.Equal(t, 26, Age("2000-06-15", onDay))
	assert.Equal(t, 26, Age("2000-06-15", after))
	assert.Equal(t, 26, Age("2000-6-15", after))
}

func TestAge_FailsSoft(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{UnknownBirthday, "", "2000-06", "2000-06-15-1", "2000-xx-15", "abc"} {
		assert.Zero(t, Age(in, now), in)
	}
}

func TestValidateBirthday(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateBirthday("1995-02-28", now))
	assert.NoError(t, ValidateBirthday("2026-12-31", now))
	assert.ErrorIs(t, ValidateBirthday("2030-13-40", now), ErrBirthdayYear)
	assert.ErrorIs(t, ValidateBirthday("1899-01-01", now), ErrBirthdayYear)
	assert.ErrorIs(t, ValidateBirthday("2000-13-01", now), ErrBirthdayMonth)
	assert.ErrorIs(t, ValidateBirthday("2000-12-32", now), ErrBirthdayDay)
	assert.ErrorIs(t, ValidateBirthday("2000/12/01", now), ErrBirthdayFormat)
	assert.ErrorIs(t, ValidateBirthday(UnknownBirthday, now), ErrBirthdayFormat)
}
