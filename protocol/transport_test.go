package protocol

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func encodeBlock(t *testing.T, seq uint8, cmdID uint16, args ...uint32) []byte {
	t.Helper()
	out := NewScratchOutput()
	err := EncodeFrame(out, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		for _, a := range args {
			EncodeVLQUint(output, a)
		}
	})
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return bytes.Clone(out.Result())
}

func TestParseFrameRoundTrip(t *testing.T) {
	block := encodeBlock(t, 0x13, CmdRampSpeed, 6000, 100)

	frame, n, err := ParseFrame(block)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if n != len(block) || frame.Sequence != 0x13 {
		t.Errorf("Expected %d bytes seq 0x13, got %d bytes seq 0x%02x", len(block), n, frame.Sequence)
	}

	payload := frame.Payload
	var id, rpm, ms uint32
	if err := DecodeArgs(&payload, &id, &rpm, &ms); err != nil {
		t.Fatalf("DecodeArgs failed: %v", err)
	}
	if uint16(id) != CmdRampSpeed || rpm != 6000 || ms != 100 {
		t.Errorf("Decoded %d %d %d", id, rpm, ms)
	}
}

func TestParseFrameErrors(t *testing.T) {
	block := encodeBlock(t, MessageDest, CmdGetStatus)

	if _, _, err := ParseFrame(block[:3]); err != ErrFrameIncomplete {
		t.Errorf("Short input: expected ErrFrameIncomplete, got %v", err)
	}
	if _, _, err := ParseFrame(block[:len(block)-1]); err != ErrFrameIncomplete {
		t.Errorf("Truncated block: expected ErrFrameIncomplete, got %v", err)
	}

	bad := bytes.Clone(block)
	bad[MessageHeaderSize] ^= 0x01
	if _, _, err := ParseFrame(bad); err != ErrFrameCorrupt {
		t.Errorf("Bad CRC: expected ErrFrameCorrupt, got %v", err)
	}

	bad = bytes.Clone(block)
	bad[0] = MessageLengthMax + 1
	if _, _, err := ParseFrame(bad); err != ErrFrameCorrupt {
		t.Errorf("Bad length: expected ErrFrameCorrupt, got %v", err)
	}
}

func TestEncodeFrameTooLong(t *testing.T) {
	out := NewScratchOutput()
	err := EncodeFrame(out, MessageDest, func(output OutputBuffer) {
		output.Output(make([]byte, MessageLengthMax))
	})
	if !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	in := Status{RPM: 6000, Target: 7000, Backlog: 3, Prescaler: 19, Crank: 1, Cam: 2, Running: true, Error: StatusBacklogFull}

	out := NewScratchOutput()
	EncodeStatus(out, &in)
	data := bytes.Clone(out.Result())

	got, err := DecodeStatus(&data)
	if err != nil {
		t.Fatalf("DecodeStatus failed: %v", err)
	}
	if got != in {
		t.Errorf("Expected %+v, got %+v", in, got)
	}
}

type recordedCommand struct {
	id   uint16
	args []uint32
}

func newRecordingTransport(out *ScratchOutput, calls *[]recordedCommand, nargs int) *Transport {
	return NewTransport(out, func(cmdID uint16, data *[]byte) error {
		args := make([]uint32, nargs)
		for i := range args {
			v, err := DecodeVLQUint(data)
			if err != nil {
				return err
			}
			args[i] = v
		}
		*calls = append(*calls, recordedCommand{cmdID, args})
		return nil
	})
}

func TestTransportAckAndDispatch(t *testing.T) {
	out := NewScratchOutput()
	var calls []recordedCommand
	tr := newRecordingTransport(out, &calls, 1)

	tr.Receive(NewSliceInputBuffer(encodeBlock(t, MessageDest, CmdSetSpeed, 3000)))

	if len(calls) != 1 || calls[0].id != CmdSetSpeed || calls[0].args[0] != 3000 {
		t.Fatalf("Expected one set_speed 3000, got %+v", calls)
	}
	if !bytes.Equal(out.Result(), EncodeAck(MessageDest+1)) {
		t.Errorf("Expected ACK for 0x11, got %v", out.Result())
	}
}

func TestTransportOutOfSequenceIsNaked(t *testing.T) {
	out := NewScratchOutput()
	var calls []recordedCommand
	tr := newRecordingTransport(out, &calls, 1)

	tr.Receive(NewSliceInputBuffer(encodeBlock(t, MessageDest, CmdSetSpeed, 1000)))
	out.Reset()

	// Skips 0x11
	tr.Receive(NewSliceInputBuffer(encodeBlock(t, MessageDest+2, CmdSetSpeed, 2000)))

	if len(calls) != 1 {
		t.Errorf("Out-of-sequence block was executed: %+v", calls)
	}
	if !bytes.Equal(out.Result(), EncodeAck(MessageDest+1)) {
		t.Errorf("Expected NAK carrying 0x11, got %v", out.Result())
	}
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	out := NewScratchOutput()
	var calls []recordedCommand
	tr := newRecordingTransport(out, &calls, 1)

	bad := encodeBlock(t, MessageDest, CmdSetSpeed, 1000)
	bad[MessageHeaderSize+1] ^= 0x40
	good := encodeBlock(t, MessageDest, CmdSetSpeed, 2000)

	stream := append(append([]byte{0x55, 0xAA}, bad...), good...)
	in := NewSliceInputBuffer(stream)
	tr.Receive(in)

	if len(calls) != 1 || calls[0].args[0] != 2000 {
		t.Errorf("Expected only the intact block to run, got %+v", calls)
	}
	if in.Available() != 0 {
		t.Errorf("Expected all input consumed, %d bytes left", in.Available())
	}
	if !tr.Synchronized() {
		t.Error("Transport should be synchronized again")
	}
}

func TestTransportPartialBlock(t *testing.T) {
	out := NewScratchOutput()
	var calls []recordedCommand
	tr := newRecordingTransport(out, &calls, 1)

	block := encodeBlock(t, MessageDest, CmdSetSpeed, 4000)
	fifo := NewFifoBuffer(128)

	fifo.Write(block[:4])
	tr.Receive(fifo)
	if len(calls) != 0 || fifo.Available() != 4 {
		t.Fatalf("Partial block should wait for more input")
	}

	fifo.Write(block[4:])
	tr.Receive(fifo)
	if len(calls) != 1 || fifo.Available() != 0 {
		t.Errorf("Expected block to run once complete, calls=%d left=%d", len(calls), fifo.Available())
	}
}

// fakeFirmware serves a Transport over one end of a pipe, answering every
// command with a status carrying the command id in RPM.
func fakeFirmware(conn net.Conn) {
	out := NewScratchOutput()
	fifo := NewFifoBuffer(512)
	var tr *Transport
	tr = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		*data = (*data)[:0]
		tr.SendCommand(RespStatus, func(output OutputBuffer) {
			EncodeStatus(output, &Status{RPM: uint32(cmdID)})
		})
		return nil
	})

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		fifo.Write(buf[:n])
		tr.Receive(fifo)
		if len(out.Result()) > 0 {
			if _, err := conn.Write(out.Result()); err != nil {
				return
			}
			out.Reset()
		}
	}
}

func TestHostTransportRequest(t *testing.T) {
	host, fw := net.Pipe()
	go fakeFirmware(fw)
	defer fw.Close()

	ht := NewHostTransport(host)
	defer ht.Close()

	for i := 0; i < 20; i++ {
		resp, err := ht.Request(CmdSetSpeed, func(output OutputBuffer) {
			EncodeVLQUint(output, 1000)
		}, time.Second)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}

		payload := resp.Payload
		id, err := DecodeVLQUint(&payload)
		if err != nil || uint16(id) != RespStatus {
			t.Fatalf("Request %d: expected status response, got id %d err %v", i, id, err)
		}
		st, err := DecodeStatus(&payload)
		if err != nil || st.RPM != uint32(CmdSetSpeed) {
			t.Fatalf("Request %d: bad status %+v err %v", i, st, err)
		}
	}

	// 20 blocks sent from 0x10 wraps the sequence: 0x10 + 20 mod 16
	if seq := ht.CurrentSequence(); seq != MessageDest|4 {
		t.Errorf("Expected sequence 0x14, got 0x%02x", seq)
	}
}

func TestHostTransportAdoptsFirmwareSequence(t *testing.T) {
	host, fw := net.Pipe()
	go fakeFirmware(fw)
	defer fw.Close()

	ht := NewHostTransport(host)
	defer ht.Close()

	if _, err := ht.Request(CmdGetStatus, nil, time.Second); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	// Host forgets its sequence; the firmware's NAK sets it straight
	ht.Reset()
	ht.currentSeq = MessageDest | 7
	if _, err := ht.Request(CmdGetStatus, nil, time.Second); err != nil {
		t.Fatalf("Request after sequence loss failed: %v", err)
	}
}
