package link

import (
	"time"

	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/proto"
	"code.hybscloud.com/zlink/wire"
)

// MinVersion is the lowest InitAck.version this implementation accepts
// from a responder (§4.D.2's "equal or exceed the implementation's
// minimum"). original_source/ never pins a concrete minimum (its own
// tests generate a random version byte), so this is an implementation
// choice recorded in DESIGN.md rather than a ported constant.
const MinVersion uint8 = 1

// HandshakeParams carries the initiator's proposed identity and
// negotiation parameters (§4.D.2 step 1, §6.5).
type HandshakeParams struct {
	ZenohId    proto.ZenohId
	WhatAmI    proto.WhatAmI
	Resolution proto.Resolution
	BatchSize  uint16
	Lease      time.Duration
	Ext        proto.InitExtras
	Timeout    time.Duration // open_timeout; zero means no deadline

	// InitialSN, when nil, is derived by DefaultInitialSN from the two
	// peers' zids and the negotiated resolution (§4.D.2 step 3). Tests
	// that need a deterministic value may override it.
	InitialSN func(mine, other proto.ZenohId, res proto.Resolution) uint64
}

// Established is the outcome of a successful initiator handshake: the
// negotiated parameters the session driver needs to start its loop.
type Established struct {
	OtherZenohId proto.ZenohId
	OtherWhatAmI proto.WhatAmI
	Resolution   proto.Resolution
	BatchSize    uint16
	MineInitialSN uint64
	OtherInitialSN uint64
	OtherLease    time.Duration
	Cookie        []byte

	// Compression is true only when both InitSyn and InitAck advertised
	// the compression extension (§4.C.1's InitExtras.Compression): a
	// mutually-agreed feature, not something either side can impose
	// unilaterally.
	Compression bool
}

// DefaultInitialSN derives a deterministic starting sequence number from
// both zids, modulated into the negotiated FrameSN width (§4.D.2 step 3).
// It is intentionally simple (fnv-1a over both zid byte strings) since the
// spec only requires determinism, not cryptographic unpredictability.
func DefaultInitialSN(mine, other proto.ZenohId, res proto.Resolution) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range mine.Bytes() {
		h ^= uint64(b)
		h *= prime64
	}
	for _, b := range other.Bytes() {
		h ^= uint64(b)
		h *= prime64
	}
	return h & res.FrameSN.Mask()
}

// Open runs the initiator-side four-message establishment state machine
// (§4.D.2) over link using a StreamFramer when link is streamed, or raw
// Read/WriteAll when it preserves its own message boundaries. It blocks
// (cooperatively yielding on ErrWouldBlock) until Connected, the peer
// rejects the handshake, or params.Timeout elapses. The deadline is
// checked only when a read or write returns ErrWouldBlock/ErrMore; a Read
// or Write that blocks inside the link is not interrupted by it.
func Open(l Link, params HandshakeParams) (*Established, error) {
	tx, rx := l.Split()
	var fr *StreamFramer
	if l.IsStreamed() {
		fr = NewStreamFramer(rx, tx)
	}

	deadline := time.Time{}
	if params.Timeout > 0 {
		deadline = time.Now().Add(params.Timeout)
	}

	send := func(payload []byte) error {
		for {
			var err error
			if fr != nil {
				err = fr.WriteFrame(payload)
			} else {
				err = tx.WriteAll(payload)
			}
			if err == nil {
				return nil
			}
			if err != ErrWouldBlock && err != ErrMore {
				return err
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return ErrHandshakeTimeout
			}
			yieldOnce()
		}
	}

	recv := func(scratch []byte) ([]byte, error) {
		for {
			var msg []byte
			var err error
			if fr != nil {
				msg, err = fr.ReadFrame(scratch)
			} else {
				var n int
				n, err = rx.Read(scratch)
				msg = scratch[:n]
			}
			if err == nil {
				return msg, nil
			}
			if err != ErrWouldBlock && err != ErrMore {
				return nil, err
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return nil, ErrHandshakeTimeout
			}
			yieldOnce()
		}
	}

	// Step 1: SendInitSyn.
	synBuf := make([]byte, 256)
	w := buf.NewWriter(synBuf)
	synMsg := proto.Init{
		Ack:        false,
		Version:    MinVersion,
		WhatAmI:    params.WhatAmI,
		ZenohId:    params.ZenohId,
		Negotiated: true,
		Resolution: params.Resolution,
		BatchSize:  params.BatchSize,
		Ext:        params.Ext,
	}
	if err := proto.EncodeInit(w, synMsg); err != nil {
		return nil, err
	}
	if err := send(w.Bytes()); err != nil {
		return nil, err
	}

	// Step 2: AwaitInitAck.
	scratch := make([]byte, MaxFrameLen)
	ackBytes, err := recv(scratch)
	if err != nil {
		return nil, err
	}
	ackReader := buf.NewReader(ackBytes)
	h, err := ackReader.ReadU8()
	if err != nil {
		return nil, err
	}
	if wire.HeaderID(h) != proto.MidInit {
		return nil, ErrInvalidMessage
	}
	initAck, err := proto.DecodeInit(ackReader, h)
	if err != nil {
		return nil, err
	}
	if !initAck.Ack {
		return nil, ErrInvalidMessage
	}
	if initAck.Version < MinVersion {
		return nil, ErrVersionTooOld
	}
	// initAck.Cookie and initAck.ZenohId borrow scratch; the next recv
	// call below (for OpenAck) reuses scratch, so make an owned copy of
	// anything we still need past that point.
	if initAck.Cookie != nil {
		initAck.Cookie = append([]byte(nil), initAck.Cookie...)
	}

	resFinal := params.Resolution.Min(initAck.Resolution)
	batchFinal := params.BatchSize
	if initAck.BatchSize < batchFinal {
		batchFinal = initAck.BatchSize
	}

	// Step 3: SendOpenSyn.
	initialSNFn := params.InitialSN
	if initialSNFn == nil {
		initialSNFn = DefaultInitialSN
	}
	mineInitialSN := initialSNFn(params.ZenohId, initAck.ZenohId, resFinal)

	openBuf := make([]byte, 128+len(initAck.Cookie))
	ow := buf.NewWriter(openBuf)
	leaseSecs := params.Lease / time.Second
	openSyn := proto.Open{
		Ack:          false,
		LeaseSeconds: params.Lease%time.Second == 0,
		Lease:        uint64(leaseSecs),
		InitialSN:    mineInitialSN,
		Cookie:       initAck.Cookie,
	}
	if !openSyn.LeaseSeconds {
		openSyn.Lease = uint64(params.Lease / time.Millisecond)
	}
	if err := proto.EncodeOpen(ow, openSyn, resFinal.FrameSN); err != nil {
		return nil, err
	}
	if err := send(ow.Bytes()); err != nil {
		return nil, err
	}

	// Step 4: AwaitOpenAck.
	openAckBytes, err := recv(scratch)
	if err != nil {
		return nil, err
	}
	oaReader := buf.NewReader(openAckBytes)
	oh, err := oaReader.ReadU8()
	if err != nil {
		return nil, err
	}
	if wire.HeaderID(oh) != proto.MidOpen {
		return nil, ErrInvalidMessage
	}
	openAck, err := proto.DecodeOpen(oaReader, oh, resFinal.FrameSN)
	if err != nil {
		return nil, err
	}
	if !openAck.Ack {
		return nil, ErrInvalidMessage
	}

	otherLease := time.Duration(openAck.Lease) * time.Millisecond
	if openAck.LeaseSeconds {
		otherLease = time.Duration(openAck.Lease) * time.Second
	}

	return &Established{
		OtherZenohId:   initAck.ZenohId,
		OtherWhatAmI:   initAck.WhatAmI,
		Resolution:     resFinal,
		BatchSize:      batchFinal,
		MineInitialSN:  mineInitialSN,
		OtherInitialSN: openAck.InitialSN,
		OtherLease:     otherLease,
		Cookie:         initAck.Cookie,
		Compression:    params.Ext.Compression && initAck.Ext.Compression,
	}, nil
}
