/*
The package imap uploads recovered messages into a mailbox on an IMAP server, so that they can be reviewed
with any mail client. The messages are rendered by export.Messages.
*/
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/ftl/sms-carver/export"
)

// DefaultFolder is used if no target folder is configured.
const DefaultFolder = "INBOX"

var ErrMissingMessageID = errors.New("message id is empty")

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	TargetFolder       string
	DryRun             bool
}

// Validate checks that the options are sufficient to connect to a server.
func (o Options) Validate() error {
	if o.Host == "" {
		return fmt.Errorf("imap host is empty")
	}
	if o.Port <= 0 {
		return fmt.Errorf("imap port must be positive")
	}
	return nil
}

// Mailbox receives the uploaded messages.
type Mailbox interface {
	Append(folder string, message export.Message) error
	Close() error
}

// DialFunc opens a connection to the mailbox.
type DialFunc func(ctx context.Context, opts Options) (Mailbox, error)

// Result counts the messages of one upload.
type Result struct {
	Uploaded int
	Skipped  int
}

type Uploader struct {
	opts   Options
	dial   DialFunc
	logger zerolog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger of the uploader.
func WithLogger(logger zerolog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithDialer replaces the connection to the IMAP server.
func WithDialer(dial DialFunc) Option {
	return func(u *Uploader) {
		u.dial = dial
	}
}

func NewUploader(opts Options, options ...Option) (*Uploader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	result := &Uploader{
		opts:   opts,
		dial:   Dial,
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(result)
	}
	return result, nil
}

func (u *Uploader) targetFolder() string {
	if u.opts.TargetFolder == "" {
		return DefaultFolder
	}
	return u.opts.TargetFolder
}

// Upload appends the given messages to the target folder. In dry-run mode, no connection is opened and the
// messages are only counted as skipped.
func (u *Uploader) Upload(ctx context.Context, messages []export.Message) (Result, error) {
	var result Result
	var mailbox Mailbox
	defer func() {
		if mailbox == nil {
			return
		}
		if err := mailbox.Close(); err != nil {
			u.logger.Debug().Err(err).Msg("imap connection closed")
		}
	}()

	for _, message := range messages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if message.ID == "" {
			return result, ErrMissingMessageID
		}

		if u.opts.DryRun {
			result.Skipped++
			u.logger.Debug().Str("messageID", message.ID).Str("target", u.targetFolder()).Msg("dry-run upload")
			continue
		}

		if mailbox == nil {
			var err error
			mailbox, err = u.dial(ctx, u.opts)
			if err != nil {
				return result, err
			}
		}

		if err := mailbox.Append(u.targetFolder(), message); err != nil {
			return result, fmt.Errorf("upload message %s: %w", message.ID, err)
		}
		result.Uploaded++
		u.logger.Debug().Str("messageID", message.ID).Str("target", u.targetFolder()).Msg("uploaded message")
	}
	return result, nil
}

type clientMailbox struct {
	client    *imapclient.Client
	stopClose func() bool
	ctx       context.Context
}

// Dial connects to the IMAP server, logs in and makes sure the target folder exists.
func Dial(ctx context.Context, opts Options) (Mailbox, error) {
	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	options := &imapclient.Options{}

	var (
		client *imapclient.Client
		err    error
	)
	if opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	folder := opts.TargetFolder
	if folder == "" {
		folder = DefaultFolder
	}
	if err := ensureFolder(client, folder); err != nil {
		_ = client.Close()
		return nil, err
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	return &clientMailbox{client: client, stopClose: stopClose, ctx: ctx}, nil
}

func ensureFolder(client *imapclient.Client, folder string) error {
	if folder == DefaultFolder {
		return nil
	}
	err := client.Create(folder, nil).Wait()
	if err == nil {
		return nil
	}
	var respErr *imapv2.Error
	if errors.As(err, &respErr) && respErr.Code == imapv2.ResponseCodeAlreadyExists {
		return nil
	}
	return fmt.Errorf("ensure mailbox %s: %w", folder, err)
}

func (m *clientMailbox) Append(folder string, message export.Message) error {
	var opts *imapv2.AppendOptions
	if !message.Date.IsZero() {
		opts = &imapv2.AppendOptions{Time: message.Date}
	}

	cmd := m.client.Append(folder, int64(len(message.Raw)), opts)
	remaining := message.Raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}
	return nil
}

func (m *clientMailbox) Close() error {
	m.stopClose()
	if m.ctx.Err() == nil {
		_ = m.client.Logout().Wait()
	}
	return m.client.Close()
}
