package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"appointment-notifier/models"

	"github.com/gomarkdown/markdown"
)

// FallbackTemplate is used when the template file cannot be read.
const FallbackTemplate = "Appointment reminder: {service} on {date} at {time}."

const defaultSubject = "Appointment Reminder"

// ErrTemplatePlaceholder marks a template that names an unknown placeholder
// or has an unbalanced brace.
var ErrTemplatePlaceholder = errors.New("template placeholder error")

// placeholder maps a template name to its appointment column and default.
type placeholder struct {
	field    string
	fallback string
}

var placeholders = map[string]placeholder{
	"name":     {models.FieldClientName, "Client"},
	"service":  {models.FieldService, "Service"},
	"date":     {models.FieldDate, "N/A"},
	"time":     {models.FieldTime, "N/A"},
	"location": {models.FieldLocation, "Our office"},
}

// Template is a loaded message template.
type Template struct {
	Text string
	// Markdown templates also render an HTML alternative body.
	Markdown bool
}

// LoadTemplate reads the template at path, falling back to FallbackTemplate
// with a warning when the file cannot be read.
func LoadTemplate(path string, logger Logger) Template {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("Could not read template (%v). Using hardcoded fallback.", err)
		return Template{Text: FallbackTemplate}
	}
	return Template{
		Text:     string(content),
		Markdown: strings.EqualFold(filepath.Ext(path), ".md"),
	}
}

// Message is one rendered notification.
type Message struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// Render builds the message for apt. The recipient is left for the sender to fill.
func (t Template) Render(apt *models.Appointment) (Message, error) {
	body, err := RenderTemplate(t.Text, apt)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Subject: "🔔 " + apt.GetOr(models.FieldReminderType, defaultSubject),
		Body:    body,
	}
	if t.Markdown {
		msg.HTMLBody = string(markdown.ToHTML([]byte(body), nil, nil))
	}
	return msg, nil
}

// RenderTemplate substitutes {name}, {service}, {date}, {time} and
// {location} in tpl. "{{" and "}}" produce literal braces. A conversion or
// format suffix such as {date!s} or {date:>10} is accepted and ignored; the
// value is inserted as is. Defaults apply only when the column is absent,
// not when it is empty.
func RenderTemplate(tpl string, apt *models.Appointment) (string, error) {
	var b strings.Builder
	b.Grow(len(tpl))

	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		switch c {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplatePlaceholder, i)
			}
			name := tpl[i+1 : i+1+end]
			if cut := strings.IndexAny(name, "!:"); cut >= 0 {
				name = name[:cut]
			}
			p, ok := placeholders[name]
			if !ok {
				return "", fmt.Errorf("%w: missing placeholder {%s}; use lowercase names without spaces", ErrTemplatePlaceholder, name)
			}
			b.WriteString(apt.GetOr(p.field, p.fallback))
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrTemplatePlaceholder, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
