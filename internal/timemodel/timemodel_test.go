package timemodel

import (
	"context"
	"testing"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDDMM(t *testing.T) {
	pd, amb, err := Extract(context.Background(), "25/12", nil, false, 2026)
	require.NoError(t, err)
	require.Nil(t, amb)
	assert.Equal(t, 25, pd.Day)
	assert.Equal(t, 12, pd.Month)
	assert.Nil(t, pd.Year)
	assert.Equal(t, "25/12", Format(pd))
}

func TestExtractDDMMYYYY(t *testing.T) {
	pd, amb, err := Extract(context.Background(), "14/7/1990", nil, false, 2026)
	require.NoError(t, err)
	require.Nil(t, amb)
	assert.Equal(t, 14, pd.Day)
	assert.Equal(t, 7, pd.Month)
	require.NotNil(t, pd.Year)
	assert.Equal(t, 1990, *pd.Year)
	assert.Equal(t, "14/07/1990", Format(pd))
}

func TestExtractEuropeanDash(t *testing.T) {
	pd, _, err := Extract(context.Background(), "3-4-1999", nil, false, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, pd.Day)
	assert.Equal(t, 4, pd.Month)
}

func TestExtractRejectsYearTooFarFuture(t *testing.T) {
	_, _, err := Extract(context.Background(), "1/1/2050", nil, false, 2026)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InputInvalid))
}

func TestExtractRejectsYearTooOld(t *testing.T) {
	_, _, err := Extract(context.Background(), "1/1/1800", nil, false, 2026)
	require.Error(t, err)
}

func TestExtractInvalidDayValue(t *testing.T) {
	_, _, err := Extract(context.Background(), "32/1", nil, false, 2026)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InputInvalid))
}

type stubLLM struct {
	pd  ParsedDate
	amb *AmbiguousDate
	err error
}

func (s stubLLM) ParseDate(ctx context.Context, text string) (ParsedDate, *AmbiguousDate, error) {
	return s.pd, s.amb, s.err
}

func TestExtractLLMFallbackDay32Rejected(t *testing.T) {
	llm := stubLLM{pd: ParsedDate{Day: 32, Month: 1}}
	_, _, err := Extract(context.Background(), "sometime in january", llm, true, 2026)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InputInvalid))
}

func TestExtractLLMAmbiguous(t *testing.T) {
	llm := stubLLM{amb: &AmbiguousDate{Options: []ParsedDate{{Day: 1, Month: 2}, {Day: 2, Month: 1}}}}
	_, amb, err := Extract(context.Background(), "early next month", llm, true, 2026)
	require.NoError(t, err)
	require.NotNil(t, amb)
	assert.Len(t, amb.Options, 2)
}

func TestExtractNoStrategyMatches(t *testing.T) {
	_, _, err := Extract(context.Background(), "not a date", nil, false, 2026)
	require.Error(t, err)
}

func TestFeb29FiresOnFeb28InNonLeapYear(t *testing.T) {
	assert.True(t, IsBirthdayToday(2, 29, time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsBirthdayToday(2, 29, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFeb29FiresOnFeb29InLeapYear(t *testing.T) {
	assert.True(t, IsBirthdayToday(2, 29, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsBirthdayToday(2, 29, time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)))
}

func TestHasReachedCelebrationHour(t *testing.T) {
	assert.False(t, HasReachedCelebrationHour(3, 15, time.Date(2026, 3, 15, 8, 59, 0, 0, time.UTC), 9, 0))
	assert.True(t, HasReachedCelebrationHour(3, 15, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), 9, 0))
	assert.False(t, HasReachedCelebrationHour(3, 16, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), 9, 0))
}

func TestStarSignBoundaries(t *testing.T) {
	assert.Equal(t, "Capricorn", StarSign(1, 5))
	assert.Equal(t, "Aquarius", StarSign(1, 20))
	assert.Equal(t, "Pisces", StarSign(3, 5))
	assert.Equal(t, "Aries", StarSign(3, 25))
	assert.Equal(t, "Scorpio", StarSign(11, 5))
	assert.Equal(t, "Capricorn", StarSign(12, 25))
}

func TestDateInWords(t *testing.T) {
	assert.Equal(t, "1st of January", DateInWords(1, 1))
	assert.Equal(t, "15th of March", DateInWords(3, 15))
	assert.Equal(t, "22nd of April", DateInWords(4, 22))
	assert.Equal(t, "13th of May", DateInWords(5, 13))
}

func TestAge(t *testing.T) {
	year := 1990
	assert.Equal(t, 36, Age(&year, 2026))
	assert.Equal(t, 0, Age(nil, 2026))
}

func TestIdempotencyKey(t *testing.T) {
	key := IdempotencyKey("U1", time.Date(2026, 3, 15, 9, 5, 0, 0, time.UTC))
	assert.Equal(t, "U1|2026-03-15", key)
}
