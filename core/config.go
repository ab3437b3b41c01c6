package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Fixed notification policy.
const (
	DefaultReminderHour  = 18
	InactivityWindow     = 3 * 24 * time.Hour
	UpcomingQuizzesLimit = 5
	PassPercentage       = 60.0
)

type (
	ServerConfig struct {
		Host            string        `mapstructure:"host"`
		Address         string        `mapstructure:"address"`
		DebugHost       string        `mapstructure:"debugHost"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine" validate:"oneof=postgres inmem"`
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	MailConfig struct {
		Backend          string `mapstructure:"backend" validate:"oneof=console smtp sendgrid"`
		DefaultFromEmail string `mapstructure:"defaultFromEmail" validate:"required"`
		SMTPHost         string `mapstructure:"smtpHost" validate:"required_if=Backend smtp"`
		SMTPPort         int    `mapstructure:"smtpPort"`
		SMTPUsername     string `mapstructure:"smtpUsername"`
		SMTPPassword     string `mapstructure:"smtpPassword"`
		SendgridAPIKey   string `mapstructure:"sendgridApiKey" validate:"required_if=Backend sendgrid"`
	}

	TwilioConfig struct {
		AccountSID  string `mapstructure:"accountSid"`
		AuthToken   string `mapstructure:"authToken"`
		PhoneNumber string `mapstructure:"phoneNumber"`
	}

	ExportsConfig struct {
		Backend       string        `mapstructure:"backend" validate:"oneof=fs s3"`
		Dir           string        `mapstructure:"dir" validate:"required_if=Backend fs"`
		S3Bucket      string        `mapstructure:"s3Bucket" validate:"required_if=Backend s3"`
		S3Region      string        `mapstructure:"s3Region"`
		S3Endpoint    string        `mapstructure:"s3Endpoint"`
		S3AccessKey   string        `mapstructure:"s3AccessKey"`
		S3SecretKey   string        `mapstructure:"s3SecretKey"`
		PresignExpiry time.Duration `mapstructure:"presignExpiry"`
	}

	JobsConfig struct {
		Workers          int           `mapstructure:"workers" validate:"min=1"`
		Timeout          time.Duration `mapstructure:"timeout" validate:"min=1s"`
		Retention        time.Duration `mapstructure:"retention" validate:"min=1m"` // finished jobs are kept this long
		ReminderSchedule string        `mapstructure:"reminderSchedule" validate:"required,cron"`
		ReportSchedule   string        `mapstructure:"reportSchedule" validate:"required,cron"`
	}

	// Config is the application configuration, built once by NewConfig and passed around explicitly.
	Config struct {
		AppName      string `mapstructure:"appName" validate:"required"`
		Env          string `mapstructure:"env"`
		Build        string `mapstructure:"build"`
		Debug        bool   `mapstructure:"debug"`
		TestMode     bool   `mapstructure:"testMode"`
		AppURL       string `mapstructure:"appUrl" validate:"required,url"`
		Timezone     string `mapstructure:"timezone" validate:"required"`
		RollbarToken string `mapstructure:"rollbarToken"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Mail     MailConfig     `mapstructure:"mail"`
		Twilio   TwilioConfig   `mapstructure:"twilio"`
		Exports  ExportsConfig  `mapstructure:"exports"`
		Jobs     JobsConfig     `mapstructure:"jobs"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "Quiz Master")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appUrl", "http://localhost:5000")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "quizmaster")
	v.SetDefault("database.user", "quizmaster")
	v.SetDefault("database.password", "quizmaster")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("mail.backend", "console")
	v.SetDefault("mail.defaultFromEmail", "Quiz Master <noreply@quizmaster.com>")
	v.SetDefault("mail.smtpHost", "")
	v.SetDefault("mail.smtpPort", 587)
	v.SetDefault("mail.smtpUsername", "")
	v.SetDefault("mail.smtpPassword", "")
	v.SetDefault("mail.sendgridApiKey", "")

	v.SetDefault("twilio.accountSid", "")
	v.SetDefault("twilio.authToken", "")
	v.SetDefault("twilio.phoneNumber", "")

	v.SetDefault("exports.backend", "fs")
	v.SetDefault("exports.dir", filepath.Join(os.TempDir(), "quizmaster-exports"))
	v.SetDefault("exports.s3Bucket", "")
	v.SetDefault("exports.s3Region", "us-east-1")
	v.SetDefault("exports.s3Endpoint", "")
	v.SetDefault("exports.s3AccessKey", "")
	v.SetDefault("exports.s3SecretKey", "")
	v.SetDefault("exports.presignExpiry", 15*time.Minute)

	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.timeout", 10*time.Minute)
	v.SetDefault("jobs.retention", 24*time.Hour)
	v.SetDefault("jobs.reminderSchedule", "0 * * * *") // hourly: reminders fire in each user's own hour
	v.SetDefault("jobs.reportSchedule", "0 8 1 * *")
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed by the environment name, e.g. PROD_MAIL_BACKEND=sendgrid.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &conf, nil
}

// Validate checks the configuration values against their `validate` tags.
func (c *Config) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return NewValidationError(err, FieldError{Field: "timezone", Error: err.Error()})
	}
	if _, err := c.DefaultFromEmail(); err != nil {
		return NewValidationError(err, FieldError{Field: "defaultFromEmail", Error: err.Error()})
	}
	return nil
}

// Location returns the time zone used to evaluate reminder hours and report months.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", c.Timezone)
	}
	return loc, nil
}

func (c *Config) DefaultFromEmail() (mail.Address, error) {
	addr, err := mail.ParseAddress(c.Mail.DefaultFromEmail)
	if err != nil {
		return mail.Address{}, errors.Wrapf(err, "parsing default from email %q", c.Mail.DefaultFromEmail)
	}
	return *addr, nil
}

// TwilioConfigured reports whether all three SMS credentials are set.
func (c *Config) TwilioConfigured() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.PhoneNumber != ""
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

