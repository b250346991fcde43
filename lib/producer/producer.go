// Package producer turns one configured input source - a TCP listener, a
// TCP fetch connection, or a replayed file - into a stream of
// tracker.FrameEvent values, decoding AVR text, Beast binary or SBS1 CSV
// on the way in. It is the "network I/O" collaborator named in spec.md §1,
// built the way the teacher's lib/setup expects to consume it (see
// HandleSourceFlags/handleSource in lib/setup/source.go).
package producer

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mode1090/lib/crc"
	"mode1090/lib/icao"
	"mode1090/lib/tracker"
	"mode1090/lib/tracker/beast"
	"mode1090/lib/tracker/mode_s"
	"mode1090/lib/tracker/sbs1"
)

// Type selects the wire format a Producer decodes.
type Type int

const (
	Avr Type = iota
	Beast
	Sbs1
)

func (t Type) String() string {
	switch t {
	case Avr:
		return "avr"
	case Beast:
		return "beast"
	case Sbs1:
		return "sbs1"
	default:
		return "unknown"
	}
}

// Producer reads one configured source and emits decoded tracker.FrameEvent
// values on its Listen() channel until Stop is called or the source ends.
type Producer struct {
	tag string
	typ Type

	host, port string
	listen     bool
	files      []string
	beastDelay bool
	keepAlive  bool

	refLat, refLon float64
	hasRef         bool

	counterAvr, counterBeast, counterSbs1 prometheus.Counter

	eng  *crc.Engine
	seen *icao.Filter

	out      chan *tracker.FrameEvent
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log zerolog.Logger

	mu      sync.Mutex
	healthy bool
}

// Option configures a Producer built by New.
type Option func(*Producer)

// WithSourceTag tags every FrameEvent this producer emits, so downstream
// consumers can tell feeds apart.
func WithSourceTag(tag string) Option {
	return func(p *Producer) { p.tag = tag }
}

// WithType selects the wire format to decode.
func WithType(t Type) Option {
	return func(p *Producer) { p.typ = t }
}

// WithPrometheusCounters wires one counter per wire format; New increments
// the one matching p.typ for every successfully decoded frame.
func WithPrometheusCounters(avr, beast, sbs1 prometheus.Counter) Option {
	return func(p *Producer) {
		p.counterAvr, p.counterBeast, p.counterSbs1 = avr, beast, sbs1
	}
}

// WithReferenceLatLon records a receiver location on the Producer. The
// Producer does not read it; CPR decoding uses the reference held by the
// tracker.Engine (tracker.NewEngine).
func WithReferenceLatLon(lat, lon float64) Option {
	return func(p *Producer) { p.refLat, p.refLon, p.hasRef = lat, lon, true }
}

// WithListener makes the producer accept inbound connections on host:port
// instead of dialing out.
func WithListener(host, port string) Option {
	return func(p *Producer) { p.host, p.port, p.listen = host, port, true }
}

// WithFetcher makes the producer dial out to host:port, reconnecting with
// backoff if the connection drops.
func WithFetcher(host, port string) Option {
	return func(p *Producer) { p.host, p.port, p.listen = host, port, false }
}

// WithKeepAliveRepeater is used for ADS-C feeds that only send updates
// every ~30 minutes: it raises the maximum reconnect backoff from 30
// seconds to 5 minutes. No connection has an idle timeout, with or
// without this option.
func WithKeepAliveRepeater() Option {
	return func(p *Producer) { p.keepAlive = true }
}

// WithBeastDelay paces a file replay at the Beast frames' own MLAT
// timestamps instead of reading it as fast as possible.
func WithBeastDelay(delay bool) Option {
	return func(p *Producer) { p.beastDelay = delay }
}

// WithFiles sets the file(s) to replay instead of connecting to a socket.
func WithFiles(files []string) Option {
	return func(p *Producer) { p.files = files }
}

// New builds and starts a Producer per the given options.
func New(opts ...Option) tracker.Producer {
	p := &Producer{
		out:  make(chan *tracker.FrameEvent, 1024),
		stop: make(chan struct{}),
		eng:  crc.NewEngine(2),
		seen: icao.New(time.Now()),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = log.With().Str("component", "producer").Str("tag", p.tag).Str("type", p.typ.String()).Logger()

	p.wg.Add(1)
	go p.run()

	return p
}

func (p *Producer) String() string {
	return fmt.Sprintf("producer[%s %s]", p.typ, p.tag)
}

func (p *Producer) HealthCheckName() string {
	return p.String()
}

func (p *Producer) HealthCheck() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

func (p *Producer) setHealthy(ok bool) {
	p.mu.Lock()
	p.healthy = ok
	p.mu.Unlock()
}

// Listen returns the channel decoded FrameEvents arrive on.
func (p *Producer) Listen() <-chan *tracker.FrameEvent {
	return p.out
}

// Stop shuts the producer down; it is safe to call more than once.
func (p *Producer) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

func (p *Producer) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

func (p *Producer) run() {
	defer p.wg.Done()
	defer close(p.out)

	if len(p.files) > 0 {
		p.runFiles()
		return
	}
	if p.listen {
		p.runListener()
		return
	}
	p.runFetcher()
}

func (p *Producer) runFiles() {
	for _, path := range p.files {
		if p.stopped() {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			p.log.Error().Err(err).Str("file", path).Msg("Could not open replay file")
			continue
		}
		p.setHealthy(true)
		p.consume(f)
		f.Close()
	}
	p.setHealthy(false)
}

func (p *Producer) runListener() {
	addr := net.JoinHostPort(p.host, p.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		p.log.Error().Err(err).Str("addr", addr).Msg("Could not listen")
		return
	}
	defer ln.Close()

	go func() {
		<-p.stop
		ln.Close()
	}()

	p.setHealthy(true)
	for {
		conn, err := ln.Accept()
		if err != nil {
			p.setHealthy(false)
			return
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.consume(conn)
			conn.Close()
		}()
	}
}

func (p *Producer) runFetcher() {
	addr := net.JoinHostPort(p.host, p.port)
	// ADS-C feeds only send an update every ~30 minutes; back off more
	// slowly for them so a quiet link isn't mistaken for a dead one.
	maxBackoff := 30 * time.Second
	if p.keepAlive {
		maxBackoff = 5 * time.Minute
	}
	backoff := time.Second
	for !p.stopped() {
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			p.log.Error().Err(err).Str("addr", addr).Msg("Could not connect, retrying")
			p.setHealthy(false)
			select {
			case <-time.After(backoff):
			case <-p.stop:
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		p.setHealthy(true)
		p.consume(conn)
		conn.Close()
	}
}

// consume reads frames from r until it is exhausted, stop fires, or an
// unrecoverable read error occurs.
func (p *Producer) consume(r io.Reader) {
	switch p.typ {
	case Beast:
		p.consumeBeast(r)
	case Sbs1:
		p.consumeLines(r, p.handleSbs1Line)
	default:
		p.consumeAvr(r)
	}
}

func (p *Producer) consumeLines(r io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if p.stopped() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		handle(line)
	}
}

func (p *Producer) consumeAvr(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		if p.stopped() {
			return
		}
		raw, err := reader.ReadString(';')
		if err != nil {
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		f, err := mode_s.DecodeString(raw, time.Now(), p.eng, p.seen)
		if err != nil {
			p.log.Debug().Err(err).Str("raw", raw).Msg("Rejected AVR frame")
			continue
		}
		p.emit(f, p.counterAvr)
	}
}

func (p *Producer) handleSbs1Line(line string) {
	f, err := sbs1.ParseLine(line)
	if err != nil {
		p.log.Debug().Err(err).Str("line", line).Msg("Rejected SBS1 line")
		return
	}
	p.emit(f, p.counterSbs1)
}

func (p *Producer) consumeBeast(r io.Reader) {
	reader := bufio.NewReader(r)
	var lastTicks uint64
	var haveLast bool
	for {
		if p.stopped() {
			return
		}
		buf, err := readBeastFrame(reader)
		if err != nil {
			return
		}
		bf, err := beast.NewFrame(buf, false)
		if err != nil {
			p.log.Debug().Err(err).Msg("Rejected beast frame")
			continue
		}
		if err := bf.Decode(); err != nil {
			p.log.Debug().Err(err).Msg("Could not decode beast frame body")
			continue
		}
		if p.beastDelay {
			p.pace(bf, &lastTicks, &haveLast)
		}
		p.emit(bf, p.counterBeast)
	}
}

// pace sleeps long enough to replay consecutive Beast frames at roughly
// their original MLAT-tick spacing (12MHz ticks), when WithBeastDelay(true)
// is set for a file replay.
func (p *Producer) pace(bf *beast.Frame, lastTicks *uint64, haveLast *bool) {
	ticks := bf.BeastTicks()
	if *haveLast && ticks > *lastTicks {
		delta := time.Duration(ticks-*lastTicks) * (time.Second / 12_000_000)
		if delta > 0 && delta < 5*time.Second {
			time.Sleep(delta)
		}
	}
	*lastTicks = ticks
	*haveLast = true
}

func (p *Producer) emit(frame tracker.Frame, counter prometheus.Counter) {
	if counter != nil {
		counter.Inc()
	}
	select {
	case p.out <- tracker.NewFrameEvent(frame, p.tag):
	case <-p.stop:
	}
}

// Beast binary framing constants, duplicated in miniature from
// lib/tracker/beast since bodyLenFor there is unexported: 0x1A escape, 1
// type byte, then a type-dependent unescaped body.
const beastEscape = 0x1A

func beastBodyLen(msgType byte) (int, error) {
	switch msgType {
	case 0x31:
		return 2, nil
	case 0x32:
		return 7, nil
	case 0x33:
		return 14, nil
	default:
		return 0, fmt.Errorf("producer: unknown beast message type %#02x", msgType)
	}
}

// readBeastFrame resyncs to the next 0x1A frame-start byte, then reads
// exactly one frame's worth of (possibly 0x1A 0x1A stuffed) timestamp,
// signal level and body bytes, returning the unescaped frame so
// beast.NewFrame(buf, false) can be called directly - the escaping is
// undone here as each byte is read rather than in a second pass.
func readBeastFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == beastEscape {
			break
		}
	}
	msgType, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	bodyLen, err := beastBodyLen(msgType)
	if err != nil {
		return nil, err
	}

	want := 6 + 1 + bodyLen // mlat timestamp + signal level + body
	buf := make([]byte, 0, 2+want)
	buf = append(buf, beastEscape, msgType)

	for len(buf) < 2+want {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == beastEscape {
			nb, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if nb != beastEscape {
				return nil, fmt.Errorf("producer: unescaped 0x1A mid-frame")
			}
		}
		buf = append(buf, b)
	}
	return buf, nil
}
