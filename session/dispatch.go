package session

import (
	"code.hybscloud.com/zlink/buf"
	"code.hybscloud.com/zlink/proto"
	"code.hybscloud.com/zlink/wire"
)

// handleBatch decodes one logical link message as a Transport message and
// dispatches it (§4.E.3). A codec error here is logged and the rest of
// the batch discarded; the session itself stays alive (§7's propagation
// policy) — the one exception, a fatal handshake-message error, cannot
// occur here since handshake messages are only read by link.Open.
func (s *Session) handleBatch(batch []byte) error {
	r := buf.NewReader(batch)
	h, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch wire.HeaderID(h) {
	case proto.MidKeepAlive:
		return nil
	case proto.MidClose:
		_, err := proto.DecodeClose(r, h)
		if err != nil {
			return err
		}
		return ErrConnectionClosed
	case proto.MidFrame:
		return s.handleFrame(r, h)
	default:
		return proto.ErrUnknownID
	}
}

// handleFrame decodes a Frame's header then iterates its inner
// NetworkMessages until the reader is exhausted (§4.C.1, §4.E.3). When
// compression was mutually negotiated at handshake, the bytes following
// the header are s2-compressed and must be inflated before they can be
// parsed as NetworkMessages.
func (s *Session) handleFrame(r *buf.Reader, h byte) error {
	if _, err := proto.DecodeFrameHeader(r, h, s.resolution.FrameSN); err != nil {
		return err
	}
	s.metrics.FramesReceived.Inc()
	if s.compression {
		compressed, err := r.ReadSlice(r.Remaining())
		if err != nil {
			return err
		}
		plain, err := proto.DecompressFrame(nil, compressed)
		if err != nil {
			return err
		}
		r = buf.NewReader(plain)
	}
	for r.CanRead() {
		mh, err := r.ReadU8()
		if err != nil {
			return err
		}
		if err := s.handleNetworkMessage(r, mh); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleNetworkMessage(r *buf.Reader, mh byte) error {
	switch wire.HeaderID(mh) {
	case proto.MidPush:
		push, err := proto.DecodePush(r, mh)
		if err != nil {
			return err
		}
		return s.dispatchPush(push)

	case proto.MidRequest:
		// A client never receives a Request in this core's scope (no
		// server-mode acceptance, §1 Non-goals); decode and discard so
		// framing stays intact for the rest of the batch.
		_, err := proto.DecodeRequest(r, mh, s.resolution.RequestID)
		return err

	case proto.MidResponse:
		isErr, err := peekIsErrResponseBody(r, mh, s.resolution.RequestID)
		if err != nil {
			return err
		}
		resp, err := proto.DecodeResponse(r, mh, s.resolution.RequestID, isErr)
		if err != nil {
			return err
		}
		return s.dispatchResponse(resp)

	case proto.MidResponseFinal:
		rf, err := proto.DecodeResponseFinal(r, s.resolution.RequestID)
		if err != nil {
			return err
		}
		s.pending.Finalize(rf.ResponseID)
		return nil

	case proto.MidInterest:
		// Decoded but not interpreted further (§4.E.3: client-side
		// Interest/InterestFinal are out of scope beyond decode).
		_, err := proto.DecodeInterest(r, mh, s.resolution.RequestID)
		return err

	case proto.MidDeclare:
		decl, err := proto.DecodeDeclare(r, mh, s.resolution.RequestID)
		if err != nil {
			return err
		}
		return s.applyDeclare(decl)

	default:
		return proto.ErrUnknownID
	}
}

// peekIsErrResponseBody looks at a Response's nested body header (Reply
// or Err each self-identify via their own leading message-ID byte) without
// consuming it, since DecodeResponse needs to know which to decode. It
// skips the request id, WireExpr and extension chain that precede the
// body, reads the body header, then rewinds.
func peekIsErrResponseBody(r *buf.Reader, mh byte, ridWidth proto.FieldWidth) (bool, error) {
	mark := r.Mark()
	defer r.Rewind(mark)
	if _, err := proto.ReadSized(r, ridWidth); err != nil {
		return false, err
	}
	if _, err := proto.ReadWireExpr(r, wire.HeaderHasFlag(mh, wire.FlagN), proto.MappingReceiver); err != nil {
		return false, err
	}
	if wire.HeaderHasFlag(mh, wire.FlagZ) {
		if _, err := proto.ReadExtras(r, nil); err != nil {
			return false, err
		}
	}
	bh, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return wire.HeaderID(bh) == proto.MidErr, nil
}

func (s *Session) dispatchPush(push proto.Push) error {
	ke, err := s.resources.Resolve(push.WireExpr)
	if err != nil {
		return err
	}
	sample := Sample{
		KeyExpr:        ke,
		Payload:        push.Body.Payload,
		HasEncoding:    push.Body.Encoding != (proto.Encoding{}),
		EncodingID:     push.Body.Encoding.ID,
		EncodingSuffix: push.Body.Encoding.Suffix,
		HasTimestamp:   push.Body.HasTimestamp,
		Timestamp:      push.Body.Timestamp,
		Attachment:     push.Body.Ext.Attachment,
	}
	s.subs.Dispatch(ke, func(sub *subscription) {
		sub.callback(sample)
	})
	return nil
}

func (s *Session) dispatchResponse(resp proto.Response) error {
	ke, err := s.resources.Resolve(resp.WireExpr)
	if err != nil {
		return err
	}
	var body ResponseOrErr
	body.KeyExpr = ke
	if resp.Body.IsErr {
		body.IsErr = true
		body.Payload = resp.Body.Err.Payload
		body.HasEncoding = resp.Body.Err.Encoding != (proto.Encoding{})
		body.EncodingID = resp.Body.Err.Encoding.ID
		body.EncodingSuffix = resp.Body.Err.Encoding.Suffix
	} else {
		body.Payload = resp.Body.Reply.Payload
		body.HasEncoding = resp.Body.Reply.Encoding != (proto.Encoding{})
		body.EncodingID = resp.Body.Reply.Encoding.ID
		body.EncodingSuffix = resp.Body.Reply.Encoding.Suffix
	}
	s.pending.Deliver(resp.ResponseID, body)
	return nil
}

// applyDeclare applies a Declare body to the local name table (§4.E.3).
// Only the KeyExpr/Subscriber family feeds resolution or dispatch
// directly; Queryable/Token entries are recorded for completeness (the
// full Declare union must decode regardless, per SPEC_FULL §3) but this
// client never issues queries that depend on remote queryable state.
func (s *Session) applyDeclare(d proto.Declare) error {
	switch d.Which {
	case proto.DeclKeyExpr:
		return s.resources.Declare(d.Body.KeyExprID, d.Body.WireExpr.Suffix)
	case proto.DeclUndeclareKeyExpr:
		s.resources.Undeclare(d.Body.KeyExprID)
		return nil
	case proto.DeclSubscriber, proto.DeclQueryable, proto.DeclToken:
		ke, err := s.resources.Resolve(d.Body.WireExpr)
		if err != nil {
			return err
		}
		return s.resources.Declare(d.Body.KeyExprID, ke)
	case proto.DeclUndeclareSubscriber, proto.DeclUndeclareQueryable, proto.DeclUndeclareToken:
		s.resources.Undeclare(d.Body.KeyExprID)
		return nil
	case proto.DeclFinal:
		return nil
	default:
		return nil
	}
}
