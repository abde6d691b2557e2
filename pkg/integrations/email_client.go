package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
)

func init() {
	imap.CharsetReader = charset.Reader
}

// MailboxConfig describes the mailbox used for sending reminders and
// confirmations. The password comes from the credential vault, never from
// this struct's serialized form.
type MailboxConfig struct {
	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
	IMAPHost string `json:"imap_host"`
	IMAPPort int    `json:"imap_port"`
	Username string `json:"username"`
	From     string `json:"from"`

	// OAuth switches the mailbox to XOAUTH2. The vault secret is then the
	// OAuth refresh token instead of a password.
	OAuth MailboxOAuth `json:"oauth,omitempty"`
}

// MailboxOAuth configures the token exchange for an XOAUTH2 mailbox
type MailboxOAuth struct {
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Enabled reports whether the mailbox authenticates via OAuth
func (o MailboxOAuth) Enabled() bool {
	return o.TokenURL != ""
}

// MailboxClient sends transactional email over SMTP and probes the mailbox
// over IMAP for connection tests
type MailboxClient struct {
	config   MailboxConfig
	password string
	tokens   *TokenSource

	// dialIMAP is swappable for tests
	dialIMAP func(addr string) (imapSession, error)
}

type imapSession interface {
	Login(username, password string) error
	Logout() error
}

// NewMailboxClient creates a mailbox client. With OAuth configured the
// secret is treated as a refresh token and access tokens are cached per
// client instance.
func NewMailboxClient(config MailboxConfig, secret string) *MailboxClient {
	c := &MailboxClient{
		config:   config,
		password: secret,
		dialIMAP: func(addr string) (imapSession, error) {
			return client.DialTLS(addr, nil)
		},
	}

	if config.OAuth.Enabled() {
		httpClient := &http.Client{Timeout: defaultTimeout}
		c.tokens = NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
			return refreshAccessToken(ctx, httpClient, config.OAuth.TokenURL, config.OAuth.ClientID, config.OAuth.ClientSecret, secret)
		})
	}

	return c
}

// auth returns the SMTP authentication for the configured mailbox mode
func (c *MailboxClient) auth(ctx context.Context) (smtp.Auth, error) {
	if c.tokens == nil {
		return smtp.PlainAuth("", c.config.Username, c.password, c.config.SMTPHost), nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mailbox access token: %w", err)
	}

	return &xoauth2Auth{user: c.config.Username, token: token}, nil
}

// xoauth2Auth implements the SASL XOAUTH2 mechanism for SMTP
type xoauth2Auth struct {
	user  string
	token string
}

func (a *xoauth2Auth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	resp := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", a.user, a.token)
	return "XOAUTH2", []byte(resp), nil
}

func (a *xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// The server sends an error payload before failing the exchange
		return []byte(""), nil
	}
	return nil, nil
}

// Send delivers an HTML email to a single recipient
func (c *MailboxClient) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "From: %s\r\n", c.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "\r\n%s", body)

	auth, err := c.auth(ctx)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", c.config.SMTPHost, c.config.SMTPPort)

	// smtp.SendMail has no context support; rely on its connection timeouts
	if err := smtp.SendMail(addr, auth, c.config.From, []string{to}, []byte(buf.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// TestConnection logs into the mailbox over IMAP and logs straight out. An
// OAuth mailbox is probed by exchanging the refresh token instead, which
// exercises the same credential the sends will use.
func (c *MailboxClient) TestConnection(ctx context.Context) ConnectionStatus {
	start := time.Now()

	if c.tokens != nil {
		if _, err := c.tokens.Token(ctx); err != nil {
			return ConnectionStatus{OK: false, Detail: err.Error(), Duration: time.Since(start)}
		}
		return ConnectionStatus{OK: true, Duration: time.Since(start)}
	}

	addr := fmt.Sprintf("%s:%d", c.config.IMAPHost, c.config.IMAPPort)

	session, err := c.dialIMAP(addr)
	if err != nil {
		return ConnectionStatus{OK: false, Detail: fmt.Sprintf("IMAP dial failed: %v", err), Duration: time.Since(start)}
	}

	if err := session.Login(c.config.Username, c.password); err != nil {
		session.Logout()
		return ConnectionStatus{OK: false, Detail: "IMAP login rejected", Duration: time.Since(start)}
	}
	session.Logout()

	return ConnectionStatus{OK: true, Duration: time.Since(start)}
}
