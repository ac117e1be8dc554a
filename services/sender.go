package services

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"appointment-notifier/models"
	"appointment-notifier/utils"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// ErrInvalidRecipient is returned by Sender.Recipient for a malformed address.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Sender delivers rendered messages over one channel. Connect is called once
// per dispatch; its failure aborts every send on that channel.
type Sender interface {
	Channel() string
	// Recipient extracts the address for apt. "" means the row has none.
	Recipient(apt *models.Appointment) (string, error)
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
	Close() error
}

// EmailSenderConfig holds SMTP settings. Port 465 uses implicit TLS.
type EmailSenderConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender sends messages over SMTP with gomail.
type EmailSender struct {
	cfg    EmailSenderConfig
	dialer *gomail.Dialer
	conn   gomail.SendCloser
}

func NewEmailSender(cfg EmailSenderConfig) *EmailSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *EmailSender) Channel() string { return ChannelEmail }

func (s *EmailSender) Recipient(apt *models.Appointment) (string, error) {
	to := strings.TrimSpace(apt.GetOr(models.FieldEmail, ""))
	if to == "" {
		return "", nil
	}
	if !utils.ValidateEmail(to) {
		return to, ErrInvalidRecipient
	}
	return to, nil
}

func (s *EmailSender) Connect(ctx context.Context) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return utils.ConfigInvalid("email credentials are not configured (EMAIL_USER / EMAIL_PASS)")
	}
	conn, err := s.dialer.Dial()
	if err != nil {
		if IsAuthError(err) {
			return utils.Unauthorized("SMTP login failed: check your credentials or app password")
		}
		return utils.ExternalServiceError("smtp", err)
	}
	s.conn = conn
	return nil
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if s.conn == nil {
		return errors.New("smtp: not connected")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}
	if err := gomail.Send(s.conn, m); err != nil {
		return utils.ExternalServiceError("smtp", err)
	}
	return nil
}

func (s *EmailSender) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// IsAuthError reports whether err is an SMTP authentication rejection.
func IsAuthError(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code == 535 || protoErr.Code == 534
	}
	return false
}

// messageCreator is the part of the Twilio API the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSenderConfig holds Twilio credentials and the sending number.
type TwilioSenderConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	WhatsApp   bool
}

// TwilioSender sends SMS or WhatsApp messages to the appointment's phone.
type TwilioSender struct {
	cfg TwilioSenderConfig
	api messageCreator
}

func NewTwilioSender(cfg TwilioSenderConfig) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{cfg: cfg, api: client.Api}
}

func (s *TwilioSender) Channel() string {
	if s.cfg.WhatsApp {
		return ChannelWhatsApp
	}
	return ChannelSMS
}

func (s *TwilioSender) Recipient(apt *models.Appointment) (string, error) {
	phone := utils.NormalizePhone(apt.GetOr(models.FieldPhone, ""))
	if phone == "" {
		return "", nil
	}
	if !utils.ValidatePhone(phone) {
		return phone, ErrInvalidRecipient
	}
	return s.address(phone), nil
}

func (s *TwilioSender) address(number string) string {
	if s.cfg.WhatsApp && !strings.HasPrefix(number, "whatsapp:") {
		return "whatsapp:" + number
	}
	return number
}

func (s *TwilioSender) Connect(ctx context.Context) error {
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
		return utils.ConfigInvalid("Twilio credentials are not configured (TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN)")
	}
	if s.cfg.From == "" {
		return utils.ConfigInvalid(fmt.Sprintf("no %s sender number configured", s.Channel()))
	}
	return nil
}

func (s *TwilioSender) Send(ctx context.Context, msg Message) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(s.address(s.cfg.From))
	// SMS has no subject line, so it leads the body.
	params.SetBody(msg.Subject + "\n\n" + msg.Body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return utils.ExternalServiceError("twilio", err)
	}
	return nil
}

func (s *TwilioSender) Close() error { return nil }
