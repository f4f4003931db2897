package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.False(t, cfg.IsProduction())

	rates, err := cfg.Rates()
	require.NoError(t, err)
	require.Equal(t, "50", rates.OvertimeHourly.String())
	require.Equal(t, "93.33", rates.AbsenceDaily.String())
	require.Equal(t, "0.08", rates.EmployerBurden.String())
}

func TestRatesRejectsMalformedAmount(t *testing.T) {
	cfg := &Config{
		OvertimeHourlyRate: "fifty",
		AbsenceDailyRate:   "93.33",
		TardinessDailyRate: "93.33",
		EmployerBurdenRate: "0.08",
	}
	_, err := cfg.Rates()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PAYROLL_OVERTIME_HOURLY", "62.5")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())

	rates, err := cfg.Rates()
	require.NoError(t, err)
	require.Equal(t, "62.5", rates.OvertimeHourly.String())
}

func TestLoadConfigRejectsBadRate(t *testing.T) {
	t.Setenv("PAYROLL_EMPLOYER_BURDEN", "eight percent")
	_, err := LoadConfig()
	require.Error(t, err)
}
