package zlink_test

import (
	"context"
	"io"
	"testing"
	"time"

	"code.hybscloud.com/zlink"
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/endpoint"
	"code.hybscloud.com/zlink/link"
	"code.hybscloud.com/zlink/proto"
)

func respondHandshake(t *testing.T, l link.Link, myZid proto.ZenohId) {
	t.Helper()
	tx, rx := l.Split()
	fr := link.NewStreamFramer(rx, tx)
	scratch := make([]byte, link.MaxFrameLen)

	synBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("ReadFrame(InitSyn): %v", err)
	}
	r := buf.NewReader(synBytes)
	h, _ := r.ReadU8()
	syn, err := proto.DecodeInit(r, h)
	if err != nil {
		t.Fatalf("DecodeInit: %v", err)
	}

	w := buf.NewWriter(make([]byte, 256))
	ack := proto.Init{
		Ack: true, Version: syn.Version, WhatAmI: proto.WhatAmIRouter, ZenohId: myZid,
		Negotiated: true, Resolution: syn.Resolution, BatchSize: syn.BatchSize, Cookie: []byte("c"),
	}
	if err := proto.EncodeInit(w, ack); err != nil {
		t.Fatalf("EncodeInit: %v", err)
	}
	if err := fr.WriteFrame(w.Bytes()); err != nil {
		t.Fatalf("WriteFrame(InitAck): %v", err)
	}

	openBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("ReadFrame(OpenSyn): %v", err)
	}
	or := buf.NewReader(openBytes)
	oh, _ := or.ReadU8()
	if _, err := proto.DecodeOpen(or, oh, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}

	ow := buf.NewWriter(make([]byte, 64))
	openAck := proto.Open{Ack: true, LeaseSeconds: true, Lease: 20, InitialSN: 0}
	if err := proto.EncodeOpen(ow, openAck, syn.Resolution.FrameSN); err != nil {
		t.Fatalf("EncodeOpen: %v", err)
	}
	if err := fr.WriteFrame(ow.Bytes()); err != nil {
		t.Fatalf("WriteFrame(OpenAck): %v", err)
	}
}

// TestOpenAndPutOverInMemoryLink exercises the root facade end to end: a
// handshake, Runner.Run servicing the link, and one Put delivered as a
// Frame to the peer.
func TestOpenAndPutOverInMemoryLink(t *testing.T) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := link.NewStream(ar, aw, 65535)
	b := link.NewStream(br, bw, 65535)

	ep, err := endpoint.Parse("pipe/test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	zid, err := proto.ZenohIdFromBytes([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("ZenohIdFromBytes: %v", err)
	}

	type openResult struct {
		s   *zlink.Session
		run *zlink.Runner
		err error
	}
	openCh := make(chan openResult, 1)
	go func() {
		s, run, err := zlink.Open(a, ep, zlink.NewConfig(
			zlink.WithZenohId(zid),
			zlink.WithOpenTimeout(2*time.Second),
		))
		openCh <- openResult{s, run, err}
	}()

	otherZid, err := proto.ZenohIdFromBytes([]byte{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("ZenohIdFromBytes: %v", err)
	}
	respondHandshake(t, b, otherZid)

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
	go res.run.Run(ctx)

	// Put returns only after its frame is written, and the pipe write
	// blocks until this side reads it, so Put runs on its own goroutine.
	putErrCh := make(chan error, 1)
	go func() { putErrCh <- res.s.Put(context.Background(), "demo/a", []byte("hi")) }()

	tx, rx := b.Split()
	fr := link.NewStreamFramer(rx, tx)
	scratch := make([]byte, link.MaxFrameLen)
	frameBytes, err := fr.ReadFrame(scratch)
	if err != nil {
		t.Fatalf("ReadFrame(frame): %v", err)
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
		t.Fatalf("ReadU8: %v", err)
	}
	push, err := proto.DecodePush(r, mh)
	if err != nil {
		t.Fatalf("DecodePush: %v", err)
	}
	if string(push.Body.Payload) != "hi" {
		t.Fatalf("got payload %q", push.Body.Payload)
	}
}
