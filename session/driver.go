package session

import (
	"context"
	"crypto/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/endpoint"
	"code.hybscloud.com/zlink/internal/zlog"
	"code.hybscloud.com/zlink/link"
	"code.hybscloud.com/zlink/proto"
)

// outboundKind tags which field of outboundItem is populated.
type outboundKind uint8

const (
	outPush outboundKind = iota
	outRequest
	outDeclare
)

// outboundItem is one user-submitted message waiting for the driver's
// single writer to encode and send it (§4.E.1's "single-writer SN
// invariant": SN is assigned inside the driver loop, never by the
// submitting caller).
type outboundItem struct {
	kind    outboundKind
	push    proto.Push
	request proto.Request
	declare proto.Declare
	done    chan error
}

// Session is the client side of one established link: the cooperative
// driver loop, its send queue, subscription/pending tables, and the
// negotiated handshake parameters (§4.E, §5). Grounded on
// original_source/crates/zenoh-nostd/src/io/driver.rs.
type Session struct {
	cfg      Config
	endpoint endpoint.Endpoint
	log      *zlog.Logger
	metrics  *Metrics

	l   link.Link
	tx  link.Tx
	rx  link.Rx
	fr  *link.StreamFramer

	resolution  proto.Resolution
	batchSize   uint16
	compression bool

	mineZenohId  proto.ZenohId
	otherZenohId proto.ZenohId
	otherWhatAmI proto.WhatAmI
	otherLease   time.Duration

	txSeq   SeqNum
	txSN    uint64
	nextRid uint64

	subs      *subscriptionTable
	pending   *pendingTable
	resources *resourceTable

	outboundCh chan outboundItem
	sem        *semaphore.Weighted

	lastReadNano atomic.Int64
	closed       atomic.Bool
	closeErr     atomic.Value // error
}

// Runner drives Session's cooperative loop until Disconnected (§6.4:
// "Runner.run() drives the loop until Disconnected").
type Runner struct {
	s *Session
}

// Open performs the initiator handshake over l and returns the resulting
// Session and its Runner (§6.4: "open(link, endpoint, params) ->
// (Session, Runner)"). The caller must invoke Runner.Run to actually
// service the link; Open itself only establishes it.
func Open(l link.Link, ep endpoint.Endpoint, cfg Config) (*Session, *Runner, error) {
	if !cfg.HasZenohId {
		cfg.ZenohId = randomZenohId()
	}
	batchSize := cfg.BatchSize
	if !l.IsStreamed() && batchSize > DatagramBatchSize {
		batchSize = DatagramBatchSize
	}

	est, err := link.Open(l, link.HandshakeParams{
		ZenohId:    cfg.ZenohId,
		WhatAmI:    cfg.WhatAmI,
		Resolution: cfg.Resolution,
		BatchSize:  batchSize,
		Lease:      cfg.MineLease,
		Timeout:    cfg.OpenTimeout,
		Ext:        proto.InitExtras{Compression: cfg.Compression},
	})
	if err != nil {
		return nil, nil, err
	}

	tx, rx := l.Split()
	var fr *link.StreamFramer
	if l.IsStreamed() {
		fr = link.NewStreamFramer(rx, tx)
	}

	s := &Session{
		cfg:          cfg,
		endpoint:     ep,
		log:          zlog.Discard,
		metrics:      NewMetrics(nil),
		l:            l,
		tx:           tx,
		rx:           rx,
		fr:           fr,
		resolution:   est.Resolution,
		batchSize:    est.BatchSize,
		compression:  est.Compression,
		mineZenohId:  cfg.ZenohId,
		otherZenohId: est.OtherZenohId,
		otherWhatAmI: est.OtherWhatAmI,
		otherLease:   est.OtherLease,
		txSeq:        NewSeqNum(est.Resolution.FrameSN, est.MineInitialSN),
		txSN:         est.MineInitialSN,
		subs:         newSubscriptionTable(cfg.MaxSubscribers),
		pending:      newPendingTable(cfg.MaxPendingRequests),
		resources:    newResourceTable(cfg.MaxSubscribers),
		outboundCh:   make(chan outboundItem, cfg.TxQueueDepth),
		sem:          semaphore.NewWeighted(int64(cfg.TxQueueDepth)),
	}
	s.lastReadNano.Store(time.Now().UnixNano())
	return s, &Runner{s: s}, nil
}

// SetLogger replaces the session's logger (default: discard).
func (s *Session) SetLogger(l *zlog.Logger) { s.log = l }

// SetMetrics attaches a Metrics collector (default: an unregistered one).
func (s *Session) SetMetrics(m *Metrics) { s.metrics = m }

func randomZenohId() proto.ZenohId {
	var b [8]byte
	_, _ = rand.Read(b[:])
	id, _ := proto.ZenohIdFromBytes(b[:])
	return id
}

// Run services the link until a fatal error or ctx cancellation (§6.4,
// §4.E.1). It supervises two cooperating tasks — an inbound reader and
// the scheduling loop — with errgroup, mirroring rockstar-0000-aistore's
// use of x/sync for coordinating concurrent I/O (fs/walkbck.go,
// SPEC_FULL §2).
func (r *Runner) Run(ctx context.Context) error {
	s := r.s
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inboundCh := make(chan []byte, 4)
	inboundErrCh := make(chan error, 1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(inboundCh)
		return s.readLoop(ctx, inboundCh, inboundErrCh)
	})
	g.Go(func() error {
		return s.scheduleLoop(ctx, inboundCh, inboundErrCh)
	})

	err := g.Wait()
	s.closed.Store(true)
	if err != nil {
		s.closeErr.Store(err)
	}
	return err
}

// readLoop continuously pulls one logical message at a time off the link
// and forwards its bytes to out. On ErrWouldBlock/ErrMore it retries
// at once, without yielding between attempts.
func (s *Session) readLoop(ctx context.Context, out chan<- []byte, errs chan<- error) error {
	scratch := make([]byte, s.cfg.RxBufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var msg []byte
		var err error
		if s.fr != nil {
			msg, err = s.fr.ReadFrame(scratch)
		} else {
			var n int
			n, err = s.rx.Read(scratch)
			msg = scratch[:n]
		}
		if err != nil {
			if err == link.ErrWouldBlock || err == link.ErrMore {
				continue
			}
			errs <- err
			return err
		}
		owned := append([]byte(nil), msg...)
		select {
		case out <- owned:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// scheduleLoop is §4.E.2's cooperative select: keepalive timer, inbound
// batches, and outbound user sends.
func (s *Session) scheduleLoop(ctx context.Context, inboundCh <-chan []byte, inboundErrCh <-chan error) error {
	interval := s.cfg.keepAliveInterval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-inboundErrCh:
			return err

		case batch, ok := <-inboundCh:
			if !ok {
				return ErrConnectionClosed
			}
			s.lastReadNano.Store(time.Now().UnixNano())
			if err := s.handleBatch(batch); err != nil {
				s.log.Warn("batch dropped", "err", err)
				s.metrics.BatchesDropped.Inc()
			}

		case <-ticker.C:
			// Keepalive and lease-expiry are checked on the same
			// periodic tick rather than per-entry timers (§4.E.2,
			// §4.E.5's pending-request sweep uses the same discipline).
			if s.otherLease > 0 && time.Since(time.Unix(0, s.lastReadNano.Load())) > s.otherLease {
				s.metrics.LeaseExpiries.Inc()
				return ErrConnectionClosed
			}
			now := time.Now()
			s.pending.SweepTimeouts(now, func(rid uint64) {
				s.log.Debug("request timed out", "rid", rid)
			})
			if err := s.sendKeepAlive(); err != nil {
				return err
			}

		case item := <-s.outboundCh:
			err := s.sendItem(item)
			item.done <- err
			s.sem.Release(1)
			if err != nil {
				return err
			}
			ticker.Reset(interval)
		}
	}
}

func (s *Session) sendKeepAlive() error {
	raw := make([]byte, 8)
	w := bufWriter(raw)
	if err := proto.EncodeKeepAlive(w); err != nil {
		return err
	}
	if err := s.writeFrame(w.Bytes()); err != nil {
		return err
	}
	s.metrics.KeepAlivesSent.Inc()
	return nil
}

func (s *Session) sendItem(item outboundItem) error {
	hw := bufWriter(make([]byte, 32))
	fh := proto.FrameHeader{Reliability: proto.Reliable, SN: s.txSN}
	if err := proto.EncodeFrameHeader(hw, fh, s.resolution.FrameSN); err != nil {
		return err
	}

	bw := bufWriter(make([]byte, s.batchSize))
	var err error
	switch item.kind {
	case outPush:
		err = proto.EncodePush(bw, item.push)
	case outRequest:
		err = proto.EncodeRequest(bw, item.request, s.resolution.RequestID)
	case outDeclare:
		err = proto.EncodeDeclare(bw, item.declare, s.resolution.RequestID)
	}
	if err != nil {
		return err
	}

	// The FrameHeader stays uncompressed so a receiver can read the
	// message id/SN without first decompressing; only the NetworkMessage
	// payload that follows is s2-compressed, and only once both peers
	// negotiated the compression extension (§4.C.1).
	body := bw.Bytes()
	if s.compression {
		body = proto.CompressFrame(nil, body)
	}
	out := make([]byte, 0, hw.Written()+len(body))
	out = append(out, hw.Bytes()...)
	out = append(out, body...)

	s.txSN = s.txSeq.Next(s.txSN)
	if err := s.writeFrame(out); err != nil {
		return err
	}
	s.metrics.FramesSent.Inc()
	return nil
}

func (s *Session) writeFrame(p []byte) error {
	for {
		var err error
		if s.fr != nil {
			err = s.fr.WriteFrame(p)
		} else {
			err = s.tx.WriteAll(p)
		}
		if err == nil {
			return nil
		}
		if err != link.ErrWouldBlock && err != link.ErrMore {
			return err
		}
	}
}

// enqueue submits item to the driver's send queue, awaiting capacity per
// §4.E.6 ("senders never silently drop").
func (s *Session) enqueue(ctx context.Context, item outboundItem) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	item.done = make(chan error, 1)
	select {
	case s.outboundCh <- item:
	case <-ctx.Done():
		s.sem.Release(1)
		return ctx.Err()
	}
	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextRequestID draws the next RequestID, modulated into the negotiated
// width (§4.C.2).
func (s *Session) nextRequestID() uint64 {
	s.nextRid++
	return s.nextRid & s.resolution.RequestID.Mask()
}

func bufWriter(b []byte) *buf.Writer { return buf.NewWriter(b) }
