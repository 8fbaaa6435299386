package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/ftl/sms-carver/carve"
)

// DefaultDomain is used for the mail addresses and message IDs of exported messages. It is reserved and
// never resolves.
const DefaultDomain = "sms.invalid"

const (
	deviceMailbox  = "device"
	unknownMailbox = "unknown"
	subjectLength  = 60
)

// Message is one record rendered as RFC 5322 mail message.
type Message struct {
	ID     string
	From   string
	Date   time.Time
	Offset int
	Raw    []byte
}

type mboxConfig struct {
	domain string
}

// MboxOption configures the rendering of mail messages.
type MboxOption func(*mboxConfig)

// WithDomain sets the domain of the mail addresses and message IDs.
func WithDomain(domain string) MboxOption {
	return func(c *mboxConfig) {
		domain = strings.TrimSpace(domain)
		if domain != "" {
			c.domain = domain
		}
	}
}

// MessageID returns the deterministic message ID of the record at the given offset: a name based UUID (version 5)
// within the namespace of the run.
func MessageID(runID uuid.UUID, kind fmt.Stringer, offset int, domain string) string {
	id := uuid.NewSHA1(runID, []byte(fmt.Sprintf("%s/%d", kind, offset)))
	return id.String() + "@" + domain
}

// Messages renders every record of the report as mail message. Received messages are sent from the
// source number to the device, sent messages from the device to the destination number.
func Messages(report Report, options ...MboxOption) ([]Message, error) {
	config := mboxConfig{domain: DefaultDomain}
	for _, option := range options {
		option(&config)
	}

	result := make([]Message, 0, len(report.Records))
	for _, record := range report.Records {
		message, err := renderMessage(report, record, config)
		if err != nil {
			return nil, fmt.Errorf("cannot render message at offset 0x%x: %w", record.Offset(), err)
		}
		result = append(result, message)
	}
	return result, nil
}

func renderMessage(report Report, record carve.Record, config mboxConfig) (Message, error) {
	number := carve.Number(record)
	party := &mail.Address{Name: number, Address: mailbox(number) + "@" + config.domain}
	device := &mail.Address{Name: "Device", Address: deviceMailbox + "@" + config.domain}
	from, to := party, device
	if record.Status() == carve.Sent {
		from, to = device, party
	}

	date := report.Created
	if message, ok := record.(*carve.PduMessage); ok {
		if t, ok := message.Time(); ok {
			date = t
		}
	}
	text, _ := record.Text()
	id := MessageID(report.RunID, record.Kind(), record.Offset(), config.domain)

	var header mail.Header
	header.SetDate(date)
	header.SetAddressList("From", []*mail.Address{from})
	header.SetAddressList("To", []*mail.Address{to})
	header.SetSubject(subject(text, record.Offset()))
	header.SetMessageID(id)
	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	header.Set("X-Carve-Offset", fmt.Sprintf("0x%x", record.Offset()))
	header.Set("X-Carve-Status", string(record.Status()))
	header.Set("X-Carve-Run", report.RunID.String())
	if report.Digest != "" {
		header.Set("X-Carve-Image-Sha256", report.Digest)
	}
	if localDate, ok := record.LocalDate(); ok {
		header.Set("X-Carve-Local-Date", localDate)
	}

	buffer := &bytes.Buffer{}
	body, err := mail.CreateSingleInlineWriter(buffer, header)
	if err != nil {
		return Message{}, err
	}
	_, err = io.WriteString(body, carve.SanitizeText(text)+"\r\n")
	if err != nil {
		return Message{}, err
	}
	err = body.Close()
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:     id,
		From:   from.Address,
		Date:   date,
		Offset: record.Offset(),
		Raw:    buffer.Bytes(),
	}, nil
}

func mailbox(number string) string {
	result := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		case r == '+':
			return -1
		default:
			return '_'
		}
	}, number)
	if result == "" || strings.EqualFold(number, "Unknown") {
		return unknownMailbox
	}
	return result
}

func subject(text string, offset int) string {
	line := strings.Join(strings.FieldsFunc(text, unicode.IsControl), " ")
	line = strings.TrimSpace(line)
	if line == "" {
		return fmt.Sprintf("SMS at offset 0x%x", offset)
	}
	runes := []rune(line)
	if len(runes) > subjectLength {
		return string(runes[:subjectLength]) + "..."
	}
	return line
}

// WriteMbox writes all records of the report as messages into one mbox file.
func WriteMbox(w io.Writer, report Report, options ...MboxOption) error {
	messages, err := Messages(report, options...)
	if err != nil {
		return err
	}

	writer := mboxlib.NewWriter(w)
	for _, message := range messages {
		mw, err := writer.CreateMessage(message.From, message.Date)
		if err != nil {
			return err
		}
		_, err = mw.Write(message.Raw)
		if err != nil {
			return err
		}
	}
	return writer.Close()
}
