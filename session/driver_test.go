package session

import (
	"context"
	"io"
	"testing"
	"time"

	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/endpoint"
	"code.hybscloud.com/zlink/link"
	"code.hybscloud.com/zlink/proto"
)

// respond plays the responder side of the handshake on l, then returns the
// StreamFramer so the test can keep reading/writing frames afterward, the
// same split-role pattern link/handshake_test.go uses for the handshake
// alone.
func respond(t *testing.T, l link.Link, myZid proto.ZenohId, cookie []byte, initialSN uint64) *link.StreamFramer {
	t.Helper()
	tx, rx := l.Split()
	fr := link.NewStreamFramer(rx, tx)
	scratch := make([]byte, link.MaxFrameLen)

	synBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(InitSyn): %v", err)
	}
	r := buf.NewReader(synBytes)
	h, _ := r.ReadU8()
	syn, err := proto.DecodeInit(r, h)
	if err != nil {
		t.Fatalf("responder DecodeInit: %v", err)
	}

	ackBuf := make([]byte, 256)
	w := buf.NewWriter(ackBuf)
	ack := proto.Init{
		Ack: true, Version: syn.Version, WhatAmI: proto.WhatAmIRouter, ZenohId: myZid,
		Negotiated: true, Resolution: syn.Resolution, BatchSize: syn.BatchSize, Cookie: cookie,
	}
	if err := proto.EncodeInit(w, ack); err != nil {
		t.Fatalf("EncodeInit(ack): %v", err)
	}
	if err := fr.WriteFrame(w.Bytes()); err != nil {
		t.Fatalf("responder WriteFrame(InitAck): %v", err)
	}

	openBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(OpenSyn): %v", err)
	}
	or := buf.NewReader(openBytes)
	oh, _ := or.ReadU8()
	if _, err := proto.DecodeOpen(or, oh, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("responder DecodeOpen: %v", err)
	}

	openAckBuf := make([]byte, 64)
	ow := buf.NewWriter(openAckBuf)
	openAck := proto.Open{Ack: true, LeaseSeconds: true, Lease: 20, InitialSN: initialSN}
	if err := proto.EncodeOpen(ow, openAck, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("EncodeOpen(ack): %v", err)
	}
	if err := fr.WriteFrame(ow.Bytes()); err != nil {
		t.Fatalf("responder WriteFrame(OpenAck): %v", err)
	}
	return fr
}

func mustZid(t *testing.T, b byte) proto.ZenohId {
	t.Helper()
	id, err := proto.ZenohIdFromBytes([]byte{b, b + 1, b + 2, b + 3})
	if err != nil {
		t.Fatalf("ZenohIdFromBytes: %v", err)
	}
	return id
}

func TestSessionPutRoundTrip(t *testing.T) {
	// Built from the same two io.Pipe pairing link.NewPipe uses
	// internally, so the test keeps a handle to the writer feeding the
	// session's read side and can force a clean EOF shutdown afterward
	// (PipeLink exposes no Close).
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := link.NewStream(ar, aw, 65535)
	b := link.NewStream(br, bw, 65535)
	ep, err := endpoint.Parse("pipe/test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	type openResult struct {
		s   *Session
		run *Runner
		err error
	}
	openCh := make(chan openResult, 1)
	go func() {
		s, run, err := Open(a, ep, NewConfig(
			WithZenohId(mustZid(t, 1)),
			WithOpenTimeout(2*time.Second),
		))
		openCh <- openResult{s, run, err}
	}()

	fr := respond(t, b, mustZid(t, 10), []byte("cookie"), 0)

	var res openResult
	select {
	case res = <-openCh:
	case <-time.After(3 * time.Second):
		t.Fatalf("Open did not complete")
	}
	if res.err != nil {
		t.Fatalf("Open: %v", res.err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- res.run.Run(ctx) }()

	// Put returns only after its frame is written, and the pipe write
	// blocks until this side reads it, so Put runs on its own goroutine.
	putErrCh := make(chan error, 1)
	go func() { putErrCh <- res.s.Put(context.Background(), "demo/a", []byte("hello")) }()

	scratch := make([]byte, link.MaxFrameLen)
	frameBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(frame): %v", err)
	}
	if err := <-putErrCh; err != nil {
		t.Fatalf("Put: %v", err)
	}
	r := buf.NewReader(frameBytes)
	fh, _ := r.ReadU8()
	if _, err := proto.DecodeFrameHeader(r, fh, proto.DefaultResolution.FrameSN); err != nil {
		t.Fatalf("DecodeFrameHeader: %v", err)
	}
	mh, err := r.ReadU8()
	if err != nil {
		t.Fatalf("ReadU8(msg header): %v", err)
	}
	push, err := proto.DecodePush(r, mh)
	if err != nil {
		t.Fatalf("DecodePush: %v", err)
	}
	if push.WireExpr.Suffix != "demo/a" {
		t.Fatalf("got keyexpr %q", push.WireExpr.Suffix)
	}
	if string(push.Body.Payload) != "hello" {
		t.Fatalf("got payload %q", push.Body.Payload)
	}

	// Closing the writer feeding the session's read side delivers a clean
	// EOF to readLoop, which is the only way this blocking-pipe transport
	// can unblock a pending Read (it has no cancellation support of its
	// own — ctx only gates the non-blocking paths).
	bw.Close()
	select {
	case err := <-runErrCh:
		if err != io.EOF {
			t.Fatalf("got Run err %v, want io.EOF", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop after the link closed")
	}
}

// TestSessionPutRoundTripWithCompression mirrors TestSessionPutRoundTrip
// but negotiates the compression extension on both sides, checking that
// sendItem compresses the NetworkMessage payload and that a responder
// (here, the test itself) can inflate it with proto.DecompressFrame.
func TestSessionPutRoundTripWithCompression(t *testing.T) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := link.NewStream(ar, aw, 65535)
	b := link.NewStream(br, bw, 65535)
	ep, err := endpoint.Parse("pipe/test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	type openResult struct {
		s   *Session
		run *Runner
		err error
	}
	openCh := make(chan openResult, 1)
	go func() {
		s, run, err := Open(a, ep, NewConfig(
			WithZenohId(mustZid(t, 1)),
			WithOpenTimeout(2*time.Second),
			WithCompression(true),
		))
		openCh <- openResult{s, run, err}
	}()

	// Script the responder side by hand instead of reusing respond(), so
	// the InitAck can also advertise Compression (mutual negotiation).
	tx, rx := b.Split()
	fr := link.NewStreamFramer(rx, tx)
	scratch := make([]byte, link.MaxFrameLen)

	synBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(InitSyn): %v", err)
	}
	sr := buf.NewReader(synBytes)
	sh, _ := sr.ReadU8()
	syn, err := proto.DecodeInit(sr, sh)
	if err != nil {
		t.Fatalf("responder DecodeInit: %v", err)
	}
	if !syn.Ext.Compression {
		t.Fatalf("InitSyn did not advertise compression")
	}

	ackBuf := make([]byte, 256)
	aw2 := buf.NewWriter(ackBuf)
	ack := proto.Init{
		Ack: true, Version: syn.Version, WhatAmI: proto.WhatAmIRouter, ZenohId: mustZid(t, 10),
		Negotiated: true, Resolution: syn.Resolution, BatchSize: syn.BatchSize, Cookie: []byte("cookie"),
		Ext: proto.InitExtras{Compression: true},
	}
	if err := proto.EncodeInit(aw2, ack); err != nil {
		t.Fatalf("EncodeInit(ack): %v", err)
	}
	if err := fr.WriteFrame(aw2.Bytes()); err != nil {
		t.Fatalf("responder WriteFrame(InitAck): %v", err)
	}

	openBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(OpenSyn): %v", err)
	}
	or := buf.NewReader(openBytes)
	oh, _ := or.ReadU8()
	if _, err := proto.DecodeOpen(or, oh, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("responder DecodeOpen: %v", err)
	}
	openAckBuf := make([]byte, 64)
	ow := buf.NewWriter(openAckBuf)
	openAck := proto.Open{Ack: true, LeaseSeconds: true, Lease: 20, InitialSN: 0}
	if err := proto.EncodeOpen(ow, openAck, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("EncodeOpen(ack): %v", err)
	}
	if err := fr.WriteFrame(ow.Bytes()); err != nil {
		t.Fatalf("responder WriteFrame(OpenAck): %v", err)
	}

	var res openResult
	select {
	case res = <-openCh:
	case <-time.After(3 * time.Second):
		t.Fatalf("Open did not complete")
	}
	if res.err != nil {
		t.Fatalf("Open: %v", res.err)
	}
	if !res.s.compression {
		t.Fatalf("session did not negotiate compression")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- res.run.Run(ctx) }()

	payload := []byte("hello, compressed world, compressed world, compressed world")
	putErrCh := make(chan error, 1)
	go func() { putErrCh <- res.s.Put(context.Background(), "demo/a", payload) }()

	frameBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("responder ReadFrame(frame): %v", err)
	}
	if err := <-putErrCh; err != nil {
		t.Fatalf("Put: %v", err)
	}
	fr2 := buf.NewReader(frameBytes)
	fh, _ := fr2.ReadU8()
	if _, err := proto.DecodeFrameHeader(fr2, fh, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("DecodeFrameHeader: %v", err)
	}
	compressed, err := fr2.ReadSlice(fr2.Remaining())
	if err != nil {
		t.Fatalf("ReadSlice: %v", err)
	}
	plain, err := proto.DecompressFrame(nil, compressed)
	if err != nil {
		t.Fatalf("DecompressFrame: %v", err)
	}
	pr := buf.NewReader(plain)
	mh, err := pr.ReadU8()
	if err != nil {
		t.Fatalf("ReadU8(msg header): %v", err)
	}
	push, err := proto.DecodePush(pr, mh)
	if err != nil {
		t.Fatalf("DecodePush: %v", err)
	}
	if push.WireExpr.Suffix != "demo/a" {
		t.Fatalf("got keyexpr %q", push.WireExpr.Suffix)
	}
	if string(push.Body.Payload) != string(payload) {
		t.Fatalf("got payload %q", push.Body.Payload)
	}

	bw.Close()
	select {
	case err := <-runErrCh:
		if err != io.EOF {
			t.Fatalf("got Run err %v, want io.EOF", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop after the link closed")
	}
}
