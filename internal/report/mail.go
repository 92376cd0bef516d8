package report

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

type MailConfig struct {
	// Addr is host:port of the submission server.
	Addr     string
	From     string
	To       []string
	Username string
	Password string
}

func (c MailConfig) validate() error {
	switch {
	case c.Addr == "":
		return cerr.New("mail: smtp address is required")
	case c.From == "":
		return cerr.New("mail: sender is required")
	case len(c.To) == 0:
		return cerr.New("mail: at least one recipient is required")
	}
	return nil
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// Mailer sends rendered reports over SMTP.
type Mailer struct {
	cfg    MailConfig
	logger *zap.Logger
	send   sendFunc
	now    func() time.Time
}

func NewMailer(cfg MailConfig, logger *zap.Logger) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger.Named("mail"), send: smtp.SendMail, now: time.Now}, nil
}

// Send mails body with the given subject to every configured recipient.
func (m *Mailer) Send(subject, body string) error {
	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	msg := m.compose(subject, body)
	m.logger.Info("Sending report", zap.String("smtp", m.cfg.Addr), zap.Strings("to", m.cfg.To))
	if err := m.send(m.cfg.Addr, auth, m.cfg.From, m.cfg.To, bytes.NewReader(msg)); err != nil {
		return cerr.WithHint(cerr.Wrapf(err, "send report via %s", m.cfg.Addr),
			"check mail.addr and the SMTP credentials in the environment")
	}
	return nil
}

func (m *Mailer) compose(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
