// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rpc

import (
	"encoding/binary"
	"io"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/nunit/v2driver/errors"
)

// Before gRPC takes over the stream, the client and the engine exchange one
// handshake message each way. Every message is a protobuf preceded by its
// length as a little-endian uint32.
//
//	client -> engine: Int32Value   runner id
//	engine -> client: StringValue  error opening the runner; empty on success

// maxHandshakeSize bounds the length read from the stream so that a peer
// writing something other than a handshake is not mistaken for one asking
// for a huge buffer.
const maxHandshakeSize = 1 << 20

func sendRawMessage(w io.Writer, msg proto.Message) error {
	b, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	frame := binary.LittleEndian.AppendUint32(nil, uint32(len(b)))
	_, err = w.Write(append(frame, b...))
	return err
}

func receiveRawMessage(r io.Reader, msg proto.Message) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	if n > maxHandshakeSize {
		return errors.Errorf("message of %d bytes exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}
	return proto.Unmarshal(b, msg)
}

func sendHandshakeRequest(w io.Writer, runnerID int) error {
	if err := sendRawMessage(w, wrapperspb.Int32(int32(runnerID))); err != nil {
		return errors.Wrap(err, "failed to send handshake")
	}
	return nil
}

func receiveHandshakeRequest(r io.Reader) (runnerID int, err error) {
	req := &wrapperspb.Int32Value{}
	if err := receiveRawMessage(r, req); err != nil {
		return 0, errors.Wrap(err, "failed to receive handshake")
	}
	return int(req.GetValue()), nil
}

// sendHandshakeResponse reports openErr, the result of opening the runner,
// to the client.
func sendHandshakeResponse(w io.Writer, openErr error) error {
	res := &wrapperspb.StringValue{}
	if openErr != nil {
		res.Value = openErr.Error()
	}
	if err := sendRawMessage(w, res); err != nil {
		return errors.Wrap(err, "failed to send handshake response")
	}
	return nil
}

// receiveHandshakeResponse returns the error the engine hit opening the
// runner, if any.
func receiveHandshakeResponse(r io.Reader) error {
	res := &wrapperspb.StringValue{}
	if err := receiveRawMessage(r, res); err != nil {
		return errors.Wrap(err, "failed to receive handshake response")
	}
	if msg := res.GetValue(); msg != "" {
		return errors.Errorf("engine returned error: %s", msg)
	}
	return nil
}
