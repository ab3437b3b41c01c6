package core_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/tests"
)

func newValidate() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func TestNewConfig(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_MAIL_BACKEND", "sendgrid")
	t.Setenv("TEST_JOBS_WORKERS", "4")
	t.Setenv("TEST_JOBS_TIMEOUT", "90s")
	t.Setenv("TEST_TIMEZONE", "Africa/Lagos")

	conf, err := core.NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "sendgrid", conf.Mail.Backend)
	assert.Equal(t, 4, conf.Jobs.Workers)
	assert.Equal(t, 90*time.Second, conf.Jobs.Timeout)
	assert.Equal(t, "0 * * * *", conf.Jobs.ReminderSchedule)
	assert.Equal(t, "Africa/Lagos", conf.Timezone)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *core.Config)
		wantField string
	}{
		{name: "valid", mutate: func(*core.Config) {}},
		{name: "bad cron", mutate: func(c *core.Config) { c.Jobs.ReminderSchedule = "every hour" }, wantField: "reminderSchedule"},
		{name: "no workers", mutate: func(c *core.Config) { c.Jobs.Workers = 0 }, wantField: "workers"},
		{name: "unknown mail backend", mutate: func(c *core.Config) { c.Mail.Backend = "pigeon" }, wantField: "backend"},
		{name: "smtp without host", mutate: func(c *core.Config) { c.Mail.Backend = "smtp" }, wantField: "smtpHost"},
		{name: "s3 without bucket", mutate: func(c *core.Config) { c.Exports.Backend = "s3" }, wantField: "s3Bucket"},
		{name: "unknown timezone", mutate: func(c *core.Config) { c.Timezone = "Mars/Olympus" }, wantField: "timezone"},
		{name: "bad from email", mutate: func(c *core.Config) { c.Mail.DefaultFromEmail = "nobody" }, wantField: "defaultFromEmail"},
	}
	validate := newValidate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testutil.Config(t)
			tt.mutate(conf)

			err := conf.Validate(validate)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				require.NotEmpty(t, verrs)
				assert.Equal(t, tt.wantField, verrs[0].Field())
				return
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "unexpected error type %T", err)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
}

func TestConfig_TwilioConfigured(t *testing.T) {
	conf := testutil.Config(t)
	assert.False(t, conf.TwilioConfigured())

	conf.Twilio = core.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"}
	assert.False(t, conf.TwilioConfigured())

	conf.Twilio.PhoneNumber = "+15559999"
	assert.True(t, conf.TwilioConfigured())
}
