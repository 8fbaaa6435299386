package carve

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftl/sms-carver/tpdu"
)

const progressInterval = 1 << 16

// Parser carves one kind of TPDU out of an image.
type Parser struct {
	name  string
	kind  tpdu.MessageType
	steps []Step
}

// NewParser returns a parser for the given message type that uses the given chain of steps.
func NewParser(name string, kind tpdu.MessageType, steps ...Step) *Parser {
	return &Parser{
		name:  name,
		kind:  kind,
		steps: steps,
	}
}

// NewSubmitParser returns a parser for SMS-SUBMIT according to [TL] 9.2.2.2: header, message reference,
// destination address, protocol identifier and data coding scheme, validity period, user data.
func NewSubmitParser(options tpdu.TextOptions) *Parser {
	return NewParser("SMS-PDU-Submit", tpdu.Submit,
		HeaderStep(tpdu.Submit),
		MessageReferenceStep(),
		AddressStep(),
		ProtocolStep(),
		ValidityPeriodStep(),
		UserDataStep(options),
	)
}

// NewDeliverParser returns a parser for SMS-DELIVER according to [TL] 9.2.2.1: header, originating address,
// protocol identifier and data coding scheme, service centre time stamp, user data.
func NewDeliverParser(options tpdu.TextOptions) *Parser {
	return NewParser("SMS-PDU-Deliver", tpdu.Deliver,
		HeaderStep(tpdu.Deliver),
		AddressStep(),
		ProtocolStep(),
		TimestampStep(),
		UserDataStep(options),
	)
}

func (p *Parser) Name() string {
	return p.name
}

func (p *Parser) Kind() tpdu.MessageType {
	return p.kind
}

// Steps returns the names of the parser's steps, in order.
func (p *Parser) Steps() []string {
	result := make([]string, len(p.steps))
	for i, step := range p.steps {
		result[i] = step.Name
	}
	return result
}

// Option configures a single run of Parse.
type Option func(*parseConfig)

type parseConfig struct {
	overlap  bool
	workers  int
	progress func(done, total int)
	logger   zerolog.Logger
}

func defaultParseConfig() parseConfig {
	return parseConfig{
		overlap: true,
		workers: 1,
		logger:  zerolog.Nop(),
	}
}

// WithOverlap controls if the scan continues right after the offset of a record that was found (true, the default),
// or if it skips the bytes that were consumed by that record (false). Without overlap, the scan always
// runs on a single worker. Skipping also applies to false positives, so a real TPDU that starts within the
// bytes of a false positive is not found.
func WithOverlap(overlap bool) Option {
	return func(c *parseConfig) {
		c.overlap = overlap
	}
}

// WithWorkers splits the image into the given number of shards that are scanned in parallel.
func WithWorkers(workers int) Option {
	return func(c *parseConfig) {
		if workers < 1 {
			workers = 1
		}
		c.workers = workers
	}
}

// WithProgress reports the number of scanned offsets from time to time. The callback is never called concurrently.
func WithProgress(progress func(done, total int)) Option {
	return func(c *parseConfig) {
		c.progress = progress
	}
}

// WithLogger sets the logger used to report the run.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *parseConfig) {
		c.logger = logger
	}
}

// Parse tries to decode a record at every offset of the image and returns all records that were found,
// ordered by their offset. Parse only fails if the context is done before the scan is complete.
func (p *Parser) Parse(ctx context.Context, image []byte, options ...Option) ([]Record, error) {
	config := defaultParseConfig()
	for _, option := range options {
		option(&config)
	}
	if !config.overlap {
		config.workers = 1
	}
	if config.workers > len(image) {
		config.workers = max(1, len(image))
	}

	start := time.Now()
	progress := newProgressReporter(len(image), config.progress)

	shards := make([][]Record, config.workers)
	errs := make([]error, config.workers)
	shardSize := (len(image) + config.workers - 1) / config.workers
	var wg sync.WaitGroup
	for i := range config.workers {
		from := i * shardSize
		to := min(from+shardSize, len(image))
		wg.Add(1)
		go func() {
			defer wg.Done()
			shards[i], errs[i] = p.scan(ctx, image, from, to, config.overlap, progress)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			config.logger.Debug().Str("parser", p.name).Err(err).Msg("scan cancelled")
			return nil, err
		}
	}
	progress.Finish()

	var result []Record
	for _, shard := range shards {
		result = append(result, shard...)
	}

	config.logger.Debug().
		Str("parser", p.name).
		Int("bytes", len(image)).
		Int("workers", config.workers).
		Bool("overlap", config.overlap).
		Int("records", len(result)).
		Dur("duration", time.Since(start)).
		Msg("scan complete")

	return result, nil
}

func (p *Parser) scan(ctx context.Context, image []byte, from, to int, overlap bool, progress *progressReporter) ([]Record, error) {
	var result []Record
	offset := from
	reported := from
	for offset < to {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, consumed, ok := p.attempt(image, offset)
		next := offset + 1
		if ok {
			result = append(result, record)
			if !overlap {
				next = offset + max(1, consumed)
			}
		}
		offset = min(next, to)

		if offset-reported >= progressInterval {
			progress.Add(offset - reported)
			reported = offset
		}
	}
	progress.Add(offset - reported)
	return result, nil
}

// attempt runs the chain of steps at the given offset. It returns the finished record and the number of
// consumed bytes, or false if any step does not match.
func (p *Parser) attempt(image []byte, offset int) (*PduMessage, int, bool) {
	var fields Fields
	cursor := offset
	for _, step := range p.steps {
		if len(image)-cursor < step.MinBytes {
			return nil, 0, false
		}
		decoded, consumed, ok := step.Decode(image, cursor, fields)
		if !ok {
			return nil, 0, false
		}
		fields.Merge(decoded)
		cursor += consumed
	}
	return newPduMessage(p.kind, offset, fields), cursor - offset, true
}

type progressReporter struct {
	mutex    sync.Mutex
	total    int
	done     int
	callback func(done, total int)
}

func newProgressReporter(total int, callback func(done, total int)) *progressReporter {
	return &progressReporter{
		total:    total,
		callback: callback,
	}
}

func (r *progressReporter) Add(n int) {
	if r.callback == nil || n == 0 {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.done += n
	if r.done < r.total {
		r.callback(r.done, r.total)
	}
}

func (r *progressReporter) Finish() {
	if r.callback == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.callback(r.total, r.total)
}
