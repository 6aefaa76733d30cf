// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "inmate-bot", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, "https://www.accesscorrections.com/", cfg.Site.HomeURL)
	assert.Equal(t, "https://www.accesscorrections.com/v2/send-money", cfg.Site.SendMoneyURL)

	// Profile defaults mirror the values the site accepts for a throwaway registration.
	assert.Equal(t, "StrongPassword123", cfg.Profile.Password)
	assert.Equal(t, "Smith", cfg.Profile.LastName)
	assert.Equal(t, "5551234567", cfg.Profile.Phone)
	assert.Equal(t, "sumit", cfg.Profile.MiddleName)
	assert.Equal(t, "02/12/1994", cfg.Profile.DateOfBirth)
	assert.Equal(t, "Texas", cfg.Profile.State)
	assert.Equal(t, "Dallas", cfg.Profile.City)
	assert.Equal(t, "471642", cfg.Profile.Zip)
	assert.Equal(t, "Tarrant County Jail", cfg.Profile.Agency)
	assert.Empty(t, cfg.Profile.Username)

	assert.Equal(t, 5, cfg.Search.MinIDDigits)
	assert.Equal(t, 4*time.Second, cfg.Search.ResultTimeout)
	assert.Equal(t, 4*time.Second, cfg.Timeouts.LoginSettle)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Dialog)
	assert.Equal(t, 30*time.Millisecond, cfg.Timeouts.TypeDelay)
	assert.Equal(t, 8*time.Second, cfg.Timeouts.DiscoveryReady)
	assert.Equal(t, 2, cfg.Server.MaxConcurrentRuns)

	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		missingHome := *cfg
		missingHome.Site.HomeURL = "  "
		err := missingHome.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "site.home_url is a required configuration field")

		badRuns := *cfg
		badRuns.Server.MaxConcurrentRuns = 0
		err = badRuns.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.max_concurrent_runs must be a positive integer")
	})

	t.Run("Search Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Search
		assert.NoError(t, valid.Validate())

		noDigits := valid
		noDigits.MinIDDigits = 0
		err := noDigits.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_id_digits must be at least 1")

		noCap := valid
		noCap.MaxResults = 0
		err = noCap.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_results must be a positive integer")

		negativeRate := valid
		negativeRate.DiscoveryRate = -1
		assert.Error(t, negativeRate.Validate())
	})

	t.Run("Timeouts Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Timeouts
		assert.NoError(t, valid.Validate())

		zeroDelay := valid
		zeroDelay.TypeDelay = 0
		assert.NoError(t, zeroDelay.Validate(), "a zero typing delay is allowed")

		noDialog := valid
		noDialog.Dialog = 0
		err := noDialog.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialog must be positive")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
profile:
  first_name: "Jane"
  agency: "Dallas County Jail"
search:
  min_id_digits: 7
  max_results: 3
timeouts:
  login_settle: "6s"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "Jane", cfg.Profile.FirstName)
		assert.Equal(t, "Dallas County Jail", cfg.Profile.Agency)
		assert.Equal(t, 7, cfg.Search.MinIDDigits)
		assert.Equal(t, 3, cfg.Search.MaxResults)
		assert.Equal(t, 6*time.Second, cfg.Timeouts.LoginSettle)
		// Untouched keys keep their defaults.
		assert.Equal(t, "Smith", cfg.Profile.LastName)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("search.min_id_digits", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "min_id_digits must be at least 1")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("INMATEBOT_USERNAME", "someone@example.com")
		t.Setenv("INMATEBOT_PASSWORD", "from-env")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "someone@example.com", cfg.Profile.Username)
		assert.Equal(t, "from-env", cfg.Profile.Password)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("browser.user_data_dir", "~/inmate-bot-profile")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		home, err := homedir.Dir()
		require.NoError(t, err)
		assert.Equal(t, home+"/inmate-bot-profile", cfg.Browser.UserDataDir)
	})
}
