package link

import "io"

// Link is the abstract transport boundary the session driver runs on top
// of (§6.3). All I/O is fallible; non-blocking implementations signal
// ErrWouldBlock/ErrMore instead of parking a goroutine, matching the
// teacher's own non-blocking-first discipline.
type Link interface {
	// MTU reports the maximum single-write payload size this link can
	// carry without fragmentation. Streamed links typically report a large
	// or unbounded value; datagram links report their wire MTU.
	MTU() uint16

	// IsStreamed reports whether this link is a byte stream that does not
	// preserve message boundaries. false (SeqPacket/Datagram-like) means every Read/Write already
	// corresponds to one logical message; true (stream-like, e.g. TCP)
	// means the caller must apply length-prefix framing (§4.D.1).
	IsStreamed() bool

	// Split returns independent read/write halves so the session driver
	// can hold the rx half exclusively in its loop while the tx half is
	// guarded by its own lock (§5).
	Split() (Tx, Rx)

	Tx
	Rx
}

// Tx is a link's write half.
type Tx interface {
	// Write attempts a single write, following io.Writer semantics except
	// that ErrWouldBlock/ErrMore may be returned in place of blocking.
	// StreamFramer uses this directly to keep its own resumable
	// header/payload offsets across non-blocking retries.
	Write(p []byte) (int, error)

	// WriteAll writes all of p or returns an error. Non-blocking
	// implementations may return ErrWouldBlock after a partial write; the
	// caller must retry with the unwritten remainder.
	WriteAll(p []byte) error
}

// Rx is a link's read half.
type Rx interface {
	// Read reads into p like io.Reader, but may return ErrWouldBlock in
	// place of blocking when no data is currently available.
	Read(p []byte) (int, error)

	// ReadExact reads exactly len(p) bytes or returns an error. On
	// ErrWouldBlock/ErrMore it returns that error without reporting how
	// many bytes were already copied into p; progress is not kept across
	// calls, and a new call fills p from its start.
	ReadExact(p []byte) error
}

// baseLink implements ReadExact and Split in terms of an embedded
// io.Reader/io.Writer pair, the same way the teacher's framer type wraps
// plain io.Reader/io.Writer rather than reinventing transport I/O.
type baseLink struct {
	r         io.Reader
	w         io.Writer
	mtu       uint16
	streamed  bool
}

func newBaseLink(r io.Reader, w io.Writer, mtu uint16, streamed bool) *baseLink {
	return &baseLink{r: r, w: w, mtu: mtu, streamed: streamed}
}

func (l *baseLink) MTU() uint16      { return l.mtu }
func (l *baseLink) IsStreamed() bool { return l.streamed }

func (l *baseLink) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if len(p) != 0 && n == 0 && err == nil {
		return 0, io.ErrNoProgress
	}
	return n, err
}

func (l *baseLink) Write(p []byte) (int, error) { return l.w.Write(p) }

func (l *baseLink) ReadExact(p []byte) error {
	got := 0
	for got < len(p) {
		n, err := l.Read(p[got:])
		got += n
		if err != nil {
			if err == ErrWouldBlock || err == ErrMore {
				return err
			}
			if err == io.EOF && got < len(p) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

func (l *baseLink) WriteAll(p []byte) error {
	off := 0
	for off < len(p) {
		n, err := l.w.Write(p[off:])
		off += n
		if err != nil {
			if err == ErrWouldBlock || err == ErrMore {
				return err
			}
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

func (l *baseLink) Split() (Tx, Rx) { return l, l }

// PipeLink wraps an in-process, synchronous io.Pipe-backed transport: a
// streamed link exactly like the teacher's NewPipe helper, useful for
// session driver tests and the loopback example.
type PipeLink struct{ *baseLink }

// NewPipe returns two connected streamed PipeLinks, each reading what the
// other writes, mirroring framer.NewPipe's pairing but at the Link level.
func NewPipe() (a, b *PipeLink) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a = &PipeLink{newBaseLink(ar, aw, 65535, true)}
	b = &PipeLink{newBaseLink(br, bw, 65535, true)}
	return a, b
}

// NewStream wraps an arbitrary io.Reader/io.Writer pair (e.g. a net.Conn)
// as a streamed Link with the given MTU.
func NewStream(r io.Reader, w io.Writer, mtu uint16) Link {
	return &PipeLink{newBaseLink(r, w, mtu, true)}
}

// NewPacket wraps an arbitrary io.Reader/io.Writer pair that already
// preserves message boundaries (e.g. a UDP or SeqPacket socket) as a
// datagram Link.
func NewPacket(r io.Reader, w io.Writer, mtu uint16) Link {
	return &PipeLink{newBaseLink(r, w, mtu, false)}
}
