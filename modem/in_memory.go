package modem

import (
	"io"
	"strings"
	"sync"
	"time"
)

// InMemory is a scripted device for tests and dry runs. It answers the requests that are written to it
// with the responses that were registered through Respond. Everything else has to be prepared explicitly
// with PrepareRead.
type InMemory struct {
	lock           sync.Mutex
	readBuffer     []byte
	writeBuffer    []byte
	pending        []byte
	responses      map[string][]string
	writeSignal    chan bool
	closed         chan struct{}
	closeOnce      sync.Once
	closeWhenEmpty bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		responses:   make(map[string][]string),
		writeSignal: make(chan bool),
		closed:      make(chan struct{}),
	}
}

func (rw *InMemory) Close() error {
	rw.closeOnce.Do(func() {
		close(rw.closed)
	})
	return nil
}

func (rw *InMemory) WaitUntilClosed() {
	<-rw.closed
}

func (rw *InMemory) Read(p []byte) (int, error) {
	for {
		rw.lock.Lock()
		if len(rw.readBuffer) > 0 {
			break
		}
		rw.lock.Unlock()
		select {
		case <-rw.closed:
			return 0, io.EOF
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer rw.lock.Unlock()

	select {
	case <-rw.closed:
		return 0, io.EOF
	default:
	}

	n := copy(p, rw.readBuffer)
	rw.readBuffer = rw.readBuffer[n:]
	if rw.closeWhenEmpty && len(rw.readBuffer) == 0 {
		rw.closeOnce.Do(func() {
			close(rw.closed)
		})
	}
	return n, nil
}

// PrepareRead appends the given bytes to the data that is returned by Read.
func (rw *InMemory) PrepareRead(p []byte) {
	rw.lock.Lock()
	defer rw.lock.Unlock()

	rw.readBuffer = append(rw.readBuffer, p...)
}

// Respond registers the response for the given request. Each response is used once, in the order of
// registration. The response lines are terminated with CR LF, like a modem does.
func (rw *InMemory) Respond(request string, lines ...string) {
	rw.lock.Lock()
	defer rw.lock.Unlock()

	var response strings.Builder
	for _, line := range lines {
		response.WriteString("\r\n")
		response.WriteString(line)
	}
	response.WriteString("\r\n")
	key := strings.ToUpper(request)
	rw.responses[key] = append(rw.responses[key], response.String())
}

func (rw *InMemory) IsReadEmpty() bool {
	rw.lock.Lock()
	defer rw.lock.Unlock()

	return len(rw.readBuffer) == 0
}

// CloseWhenEmpty closes the device as soon as all prepared data was read.
func (rw *InMemory) CloseWhenEmpty(value bool) {
	rw.lock.Lock()
	defer rw.lock.Unlock()

	rw.closeWhenEmpty = value
}

func (rw *InMemory) Write(p []byte) (int, error) {
	select {
	case <-rw.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	rw.lock.Lock()
	rw.writeBuffer = append(rw.writeBuffer, p...)
	rw.pending = append(rw.pending, p...)
	rw.answerPendingRequests()
	rw.lock.Unlock()

	select {
	case rw.writeSignal <- true:
	default:
	}
	return len(p), nil
}

func (rw *InMemory) answerPendingRequests() {
	for {
		end := strings.IndexAny(string(rw.pending), "\r\x1a\x1b")
		if end < 0 {
			return
		}
		key := strings.ToUpper(strings.TrimSpace(string(rw.pending[:end])))
		rw.pending = rw.pending[end+1:]

		queue := rw.responses[key]
		if len(queue) == 0 {
			continue
		}
		rw.readBuffer = append(rw.readBuffer, []byte(queue[0])...)
		rw.responses[key] = queue[1:]
	}
}

// Written returns everything that was written to the device so far.
func (rw *InMemory) Written() string {
	rw.lock.Lock()
	defer rw.lock.Unlock()

	return string(rw.writeBuffer)
}

func (rw *InMemory) WaitUntilWritten() {
	<-rw.writeSignal
}
