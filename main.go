// appointment-notifier reads an appointments table and reminds clients of
// appointments scheduled for today or tomorrow.
//
// Usage:
//
//	appointment-notifier            # one-shot run (same as "run")
//	appointment-notifier preview    # print the worklist, send nothing
//	appointment-notifier serve      # admin API plus daily schedule
//	appointment-notifier secret     # print a JWT_SECRET (and ADMIN_PASSWORD_HASH)
package main

import (
	"fmt"
	"os"
	"time"

	"appointment-notifier/config"
	"appointment-notifier/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "appointment-notifier",
		Short: "Send reminders for today's and tomorrow's appointments",
		Long: `appointment-notifier reads the appointments table, selects the rows
dated today or tomorrow and sends one reminder per row on every
configured channel (email, sms, whatsapp).

Without a subcommand it performs a single run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runReminders,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", envOrDefault("ENV_FILE", ".env"), "Environment file to load")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(secretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	sugar   *zap.SugaredLogger
	service *services.ReminderService
}

// newApp loads the configuration and wires the reminder service. freshLog
// empties LOG_FILE first, so a one-shot run leaves only its own activity.
func newApp(freshLog bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	cfg.Log.Truncate = freshLog

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	for _, warning := range credentialWarnings(cfg) {
		sugar.Warnf("%s", warning)
	}

	senders, err := buildSenders(cfg)
	if err != nil {
		return nil, err
	}

	selector := services.NewAppointmentSelector(sugar, time.Now)
	service := services.NewReminderService(services.ReminderServiceConfig{
		AppointmentsPath: cfg.AppointmentsFile,
		TemplatePath:     cfg.TemplateFile,
		SendInterval:     cfg.SendInterval,
	}, selector, senders, newLogStore(cfg, sugar), sugar)

	return &app{cfg: cfg, logger: logger, sugar: sugar, service: service}, nil
}

func buildSenders(cfg *config.Config) ([]services.Sender, error) {
	senders := make([]services.Sender, 0, len(cfg.Channels))
	for _, channel := range cfg.Channels {
		switch channel {
		case services.ChannelEmail:
			senders = append(senders, services.NewEmailSender(services.EmailSenderConfig{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.User,
				Password: cfg.Email.Password,
			}))
		case services.ChannelSMS:
			senders = append(senders, services.NewTwilioSender(services.TwilioSenderConfig{
				AccountSID: cfg.Twilio.AccountSID,
				AuthToken:  cfg.Twilio.AuthToken,
				From:       cfg.Twilio.PhoneNumber,
			}))
		case services.ChannelWhatsApp:
			senders = append(senders, services.NewTwilioSender(services.TwilioSenderConfig{
				AccountSID: cfg.Twilio.AccountSID,
				AuthToken:  cfg.Twilio.AuthToken,
				From:       cfg.Twilio.WhatsAppNumber,
				WhatsApp:   true,
			}))
		default:
			return nil, fmt.Errorf("unsupported channel %q", channel)
		}
	}
	return senders, nil
}

// credentialWarnings lists enabled channels whose credentials are missing.
// Those channels fail to connect at dispatch time.
func credentialWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.HasChannel(services.ChannelEmail) && (cfg.Email.User == "" || cfg.Email.Password == "") {
		warnings = append(warnings, "email channel enabled but EMAIL_USER / EMAIL_PASS are not set")
	}
	twilio := cfg.HasChannel(services.ChannelSMS) || cfg.HasChannel(services.ChannelWhatsApp)
	if twilio && (cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "") {
		warnings = append(warnings, "Twilio channel enabled but TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN are not set")
	}
	if cfg.HasChannel(services.ChannelSMS) && cfg.Twilio.PhoneNumber == "" {
		warnings = append(warnings, "sms channel enabled but TWILIO_PHONE_NUMBER is not set")
	}
	if cfg.HasChannel(services.ChannelWhatsApp) && cfg.Twilio.WhatsAppNumber == "" {
		warnings = append(warnings, "whatsapp channel enabled but TWILIO_WHATSAPP_NUMBER is not set")
	}
	return warnings
}

// newLogStore uses Postgres when DB_URL is set. A database that cannot be
// reached does not block reminders; the log is kept in memory instead.
func newLogStore(cfg *config.Config, logger *zap.SugaredLogger) services.LogStore {
	if cfg.DatabaseURL == "" {
		return services.NewMemoryLogStore()
	}

	db, err := config.ConnectDB(cfg.DatabaseURL)
	if err == nil {
		var store *services.GormLogStore
		if store, err = services.NewGormLogStore(db); err == nil {
			logger.Infof("Reminder log stored in database")
			return store
		}
	}
	logger.Warnf("Reminder log database unavailable, keeping log in memory: %v", err)
	return services.NewMemoryLogStore()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
