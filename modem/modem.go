/*
The package modem talks to a GSM modem or a phone using AT commands according to 3GPP TS 27.005 and 27.007.
One goroutine owns the device: it writes one command at a time and collects the response lines until the
final result code. Unsolicited result codes, like +CMTI, are dispatched to registered indication handlers.
*/
package modem

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	readBufferSize      = 1024
	sendingQueueTimeout = 500 * time.Millisecond
	syncAttempts        = 5
	syncPause           = 200 * time.Millisecond
)

// ResponseError is the final result code of a failed command: ERROR, +CME ERROR or +CMS ERROR.
type ResponseError struct {
	Response string
}

func (e *ResponseError) Error() string {
	return e.Response
}

// Code returns the numeric code of a +CME ERROR or +CMS ERROR response.
func (e *ResponseError) Code() (int, bool) {
	index := strings.Index(e.Response, ":")
	if index < 0 {
		return 0, false
	}
	result, err := strconv.Atoi(strings.TrimSpace(e.Response[index+1:]))
	if err != nil {
		return 0, false
	}
	return result, true
}

// Modem allows to communicate with a modem using AT commands.
type Modem struct {
	commands chan<- command
	closed   chan struct{}
	logger   zerolog.Logger

	indicationsLock sync.RWMutex
	indications     map[string]indicationConfig
}

// Option configures a Modem.
type Option func(*Modem)

// WithLogger traces all communication with the device at trace level.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Modem) {
		m.logger = logger
	}
}

// New creates a new Modem using the given io.ReadWriter to communicate with the device.
func New(device io.ReadWriter, options ...Option) *Modem {
	commands := make(chan command)
	result := &Modem{
		commands:    commands,
		closed:      make(chan struct{}),
		logger:      zerolog.Nop(),
		indications: make(map[string]indicationConfig),
	}
	for _, option := range options {
		option(result)
	}

	lines := readLoop(device)
	go result.loop(device, lines, commands)

	return result
}

func (m *Modem) loop(device io.Writer, lines <-chan string, commands <-chan command) {
	m.logger.Trace().Msg("session start")
	defer m.logger.Trace().Msg("session end")
	defer close(m.closed)

	var commandCancelled <-chan struct{}
	var activeCommand *command
	var activeIndication *indication
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case line, valid := <-lines:
			if !valid {
				return
			}
			m.logger.Trace().Str("rx", line).Hex("hex", []byte(line)).Msg("received")

			switch {
			case activeIndication != nil:
				activeIndication.AddLine(line)
				if activeIndication.Complete() {
					activeIndication = nil
				}
			case activeCommand != nil:
				activeIndication = m.newIndication(line)
				if activeIndication != nil {
					break
				}
				activeCommand.AddLine(line)
				if activeCommand.Complete() {
					commandCancelled = nil
					activeCommand = nil
				}
			default:
				activeIndication = m.newIndication(line)
			}
		case <-commandCancelled:
			commandCancelled = nil
			activeCommand = nil
		case <-tick.C:
		}

		if activeCommand != nil {
			continue
		}
		select {
		case cmd := <-commands:
			if len(cmd.request) == 0 {
				break
			}
			txbytes := requestBytes(cmd.request)
			m.logger.Trace().Bytes("tx", txbytes).Hex("hex", txbytes).Msg("sent")
			_, err := device.Write(txbytes)
			if err != nil {
				cmd.err <- fmt.Errorf("cannot write %s: %w", cmd.request, err)
				break
			}
			commandCancelled = cmd.cancelled
			activeCommand = &cmd
		default:
		}
	}
}

// requestBytes terminates the request with a carriage return, unless it ends with ctrl-z or escape, which
// terminate the text entry of AT+CMGS and AT+CMGW.
func requestBytes(request string) []byte {
	result := make([]byte, 0, len(request)+1)
	result = append(result, []byte(request)...)
	lastbyte := result[len(result)-1]
	if lastbyte != 0x1a && lastbyte != 0x1b {
		result = append(result, '\r')
	}
	return result
}

func readLoop(r io.Reader) <-chan string {
	lines := make(chan string, 1)
	go func() {
		defer close(lines)
		buf := make([]byte, readBufferSize)
		currentLine := make([]byte, 0, readBufferSize)
		for {
			n, err := r.Read(buf)
			if err != nil {
				if len(currentLine) > 0 {
					lines <- string(currentLine)
				}
				return
			}

			for _, b := range buf[0:n] {
				switch {
				case b == '\n' || b == '\r':
					if len(currentLine) == 0 {
						continue
					}
					lines <- string(currentLine)
					currentLine = currentLine[:0]
				case b < ' ':
					continue
				default:
					currentLine = append(currentLine, b)
				}
			}
		}
	}()
	return lines
}

// Closed indicates that the device was closed.
func (m *Modem) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// WaitUntilClosed blocks until the device is closed or the context is done.
func (m *Modem) WaitUntilClosed(ctx context.Context) {
	select {
	case <-m.closed:
	case <-ctx.Done():
	}
}

// AddIndication registers a handler for unsolicited result codes that start with the given prefix. The handler
// receives the line with the prefix and the given number of trailing lines.
func (m *Modem) AddIndication(prefix string, trailingLines int, handler func(lines []string)) {
	config := indicationConfig{
		prefix:        strings.ToUpper(prefix),
		trailingLines: trailingLines,
		handler:       handler,
	}
	m.indicationsLock.Lock()
	defer m.indicationsLock.Unlock()
	m.indications[config.prefix] = config
}

func (m *Modem) newIndication(line string) *indication {
	m.indicationsLock.RLock()
	defer m.indicationsLock.RUnlock()
	for _, config := range m.indications {
		result := config.NewIfMatches(line)
		if result != nil {
			return result
		}
	}
	return nil
}

// Sync sends AT until the modem answers with OK. This skips garbage that was left in the device by a
// previous session.
func (m *Modem) Sync(ctx context.Context) error {
	var err error
	for i := 0; i < syncAttempts; i++ {
		_, err = m.AT(ctx, "AT")
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(syncPause):
		}
	}
	return fmt.Errorf("modem does not respond: %w", err)
}

// Setup switches off the command echo and enables numeric error codes.
func (m *Modem) Setup(ctx context.Context) error {
	return m.ATs(ctx, "ATE0", "AT+CMEE=1")
}

// AT sends the given request and returns the response lines without the final result code.
func (m *Modem) AT(ctx context.Context, request string) ([]string, error) {
	cmd := command{
		request:   request,
		response:  make(chan []string, 1),
		err:       make(chan error, 1),
		cancelled: ctx.Done(),
		completed: make(chan struct{}),
	}

	select {
	case m.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, io.ErrClosedPipe
	case <-time.After(sendingQueueTimeout):
		return nil, fmt.Errorf("AT sending queue timeout")
	}

	select {
	case response := <-cmd.response:
		return response, nil
	case err := <-cmd.err:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, io.ErrClosedPipe
	}
}

// ATs sends the given requests one after the other and stops at the first failure.
func (m *Modem) ATs(ctx context.Context, requests ...string) error {
	for _, request := range requests {
		_, err := m.AT(ctx, request)
		if err != nil {
			return fmt.Errorf("%s failed: %w", request, err)
		}
	}
	return nil
}

type indicationConfig struct {
	prefix        string
	trailingLines int
	handler       func(lines []string)
}

func (c *indicationConfig) NewIfMatches(line string) *indication {
	if !strings.HasPrefix(strings.ToUpper(line), c.prefix) {
		return nil
	}
	result := &indication{
		config: *c,
		lines:  []string{line},
	}
	if result.Complete() {
		go c.handler([]string{line})
		return nil
	}

	return result
}

type indication struct {
	config indicationConfig
	lines  []string
}

func (ind *indication) AddLine(line string) {
	if ind.Complete() {
		return
	}

	ind.lines = append(ind.lines, line)
	if ind.Complete() {
		go ind.config.handler(ind.lines)
	}
}

func (ind *indication) Complete() bool {
	return len(ind.lines) >= ind.config.trailingLines+1
}

type command struct {
	lines     []string
	request   string
	response  chan []string
	err       chan error
	cancelled <-chan struct{}
	completed chan struct{}
}

func (c *command) AddLine(line string) {
	select {
	case <-c.cancelled:
		return
	case <-c.completed:
		return
	default:
	}

	saniLine := strings.TrimSpace(strings.ToUpper(line))
	switch {
	case len(c.lines) == 0 && saniLine == strings.ToUpper(c.request):
		// echo
	case saniLine == "OK":
		c.response <- c.lines
		close(c.completed)
	case strings.HasPrefix(saniLine, "ERROR"),
		strings.HasPrefix(saniLine, "+CME ERROR:"),
		strings.HasPrefix(saniLine, "+CMS ERROR:"):
		c.err <- &ResponseError{Response: line}
		close(c.completed)
	default:
		c.lines = append(c.lines, line)
	}
}

func (c *command) Complete() bool {
	select {
	case <-c.cancelled:
		return true
	case <-c.completed:
		return true
	default:
		return false
	}
}
