package modem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLoop_CloseDevice(t *testing.T) {
	device := NewInMemory()
	lines := readLoop(device)
	device.Close()

	_, valid := <-lines

	assert.False(t, valid)
}

func TestReadLoop_ReadLine(t *testing.T) {
	device := NewInMemory()
	lines := readLoop(device)

	go func() {
		time.Sleep(100 * time.Millisecond)
		device.PrepareRead([]byte("hello\r\n\nworld"))
	}()

	firstLine, valid := <-lines

	assert.True(t, valid)
	assert.Equal(t, "hello", firstLine)

	device.Close()
	lastLine, valid := <-lines

	assert.True(t, valid)
	assert.Equal(t, "world", lastLine)

	_, valid = <-lines

	assert.False(t, valid)
}

func TestModem_CloseDevice(t *testing.T) {
	device := NewInMemory()
	modem := New(device)

	device.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	modem.WaitUntilClosed(ctx)

	assert.True(t, modem.Closed())
	_, err := modem.AT(context.Background(), "AT")
	assert.Error(t, err)
}

func TestModem_ReadAllGarbageOnStartup(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.PrepareRead([]byte("+CME ERROR: 35\r\n\n\n+CME ERROR: 35\r\n\n"))

	New(device)

	assert.Eventually(t, device.IsReadEmpty, time.Second, time.Millisecond)
}

func TestModem_Indications(t *testing.T) {
	device := NewInMemory()

	modem := New(device)
	var lock sync.Mutex
	actual := make([][]string, 3)
	handler := func(index int) func([]string) {
		return func(lines []string) {
			lock.Lock()
			defer lock.Unlock()
			actual[index] = lines
		}
	}
	modem.AddIndication("Ind0:", 0, handler(0))
	modem.AddIndication("Ind1:", 1, handler(1))
	modem.AddIndication("Ind2:", 2, handler(2))
	expected := [][]string{
		{"ind0:message"},
		{"Ind1:header", "message"},
		{"IND2:header", "message1", "message2"},
	}

	device.PrepareRead([]byte("ind0:message\r\nInd1:header\r\nmessage\r\nIND2:header\r\nmessage1\r\nmessage2\r\n"))
	device.CloseWhenEmpty(true)
	device.WaitUntilClosed()

	assert.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	}, time.Second, 10*time.Millisecond)
}

func TestModem_SimpleCommand(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("AT", "OK")
	modem := New(device)

	response, err := modem.AT(context.Background(), "AT")

	assert.NoError(t, err)
	assert.Empty(t, response)
	assert.Equal(t, "AT\r", device.Written())
}

func TestModem_CommandWithData(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("AT+CGSN", "490154203237518", "", "OK")
	modem := New(device)

	actual, err := modem.AT(context.Background(), "AT+CGSN")

	assert.NoError(t, err)
	assert.Equal(t, []string{"490154203237518"}, actual)
}

func TestModem_CommandWithEcho(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("at+cgmi", "AT+CGMI", "ACME", "OK")
	modem := New(device)

	actual, err := modem.AT(context.Background(), "AT+CGMI")

	assert.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, actual)
}

func TestModem_CancelCommand(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	ctx, cancel := context.WithCancel(context.Background())
	modem := New(device)
	go func() {
		device.WaitUntilWritten()
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	response, err := modem.AT(ctx, "AT")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, response)
}

func TestModem_CommandWithError(t *testing.T) {
	tt := []struct {
		desc     string
		response []string
		code     int
		hasCode  bool
	}{
		{desc: "plain error", response: []string{"first line", "ERROR"}},
		{desc: "cme error", response: []string{"+CME ERROR: 10"}, code: 10, hasCode: true},
		{desc: "cms error", response: []string{"+CMS ERROR: 321"}, code: 321, hasCode: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			device := NewInMemory()
			defer device.Close()
			device.Respond("AT+CMGL=4", tc.response...)
			modem := New(device)

			response, err := modem.AT(context.Background(), "AT+CMGL=4")

			assert.Empty(t, response)
			var responseErr *ResponseError
			require.ErrorAs(t, err, &responseErr)
			code, ok := responseErr.Code()
			assert.Equal(t, tc.hasCode, ok)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestModem_ATs(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("ATE0", "OK")
	device.Respond("AT+CMEE=1", "ERROR")
	modem := New(device)

	err := modem.Setup(context.Background())

	assert.EqualError(t, err, "AT+CMEE=1 failed: ERROR")
}

func TestModem_Sync(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("AT", "ERROR")
	device.Respond("AT", "OK")
	modem := New(device)

	err := modem.Sync(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "AT\rAT\r", device.Written())
}

func TestModem_TraceLogging(t *testing.T) {
	device := NewInMemory()
	defer device.Close()
	device.Respond("AT", "OK")
	buffer := &syncBuffer{}
	modem := New(device, WithLogger(zerolog.New(buffer).Level(zerolog.TraceLevel)))

	_, err := modem.AT(context.Background(), "AT")

	require.NoError(t, err)
	assert.Contains(t, buffer.String(), `"tx":"AT\r"`)
	assert.Contains(t, buffer.String(), `"rx":"OK"`)
}

type syncBuffer struct {
	lock   sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buffer.String()
}

func TestRequestBytes(t *testing.T) {
	assert.Equal(t, []byte("AT\r"), requestBytes("AT"))
	assert.Equal(t, []byte("hello\x1a"), requestBytes("hello\x1a"))
	assert.Equal(t, []byte("hello\x1b"), requestBytes("hello\x1b"))
}

func TestInMemory_Read(t *testing.T) {
	tt := []struct {
		desc     string
		in       string
		bufLen   int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello", 3, "hel"},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			rw := NewInMemory()
			rw.PrepareRead([]byte(tc.in))
			buf := make([]byte, tc.bufLen)

			n, err := rw.Read(buf)

			assert.NoError(t, err)
			assert.Equal(t, len(tc.expected), n)
			assert.Equal(t, tc.expected, string(buf[0:n]))
		})
	}
}

func TestInMemory_ReadClose(t *testing.T) {
	rw := NewInMemory()

	go func() {
		time.Sleep(100 * time.Nanosecond)
		rw.Close()
	}()

	buf := make([]byte, 10)
	n, err := rw.Read(buf)

	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}

func TestInMemory_Respond(t *testing.T) {
	rw := NewInMemory()
	rw.Respond("AT", "OK")

	_, err := rw.Write([]byte("at\rAT+CGSN\r"))
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := rw.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, "\r\nOK\r\n", string(buf[:n]))
	assert.True(t, rw.IsReadEmpty())
}
