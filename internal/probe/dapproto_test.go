package probe

import (
	"context"
	"strings"
	"testing"
)

func TestTransferStatusClassification(t *testing.T) {
	cases := []struct {
		status          TransferStatus
		ok, wait, fault bool
	}{
		{ackOK, true, false, false},
		{ackWait, false, true, false},
		{ackFault, false, false, true},
	}
	for _, c := range cases {
		if got := c.status.Ok(); got != c.ok {
			t.Errorf("status %v: Ok() = %v, want %v", c.status, got, c.ok)
		}
		if got := c.status.Wait(); got != c.wait {
			t.Errorf("status %v: Wait() = %v, want %v", c.status, got, c.wait)
		}
		if got := c.status.Fault(); got != c.fault {
			t.Errorf("status %v: Fault() = %v, want %v", c.status, got, c.fault)
		}
	}
}

func TestTransferStatusStringUnknownAck(t *testing.T) {
	s := TransferStatus(0x07) // all three ack bits set: matches none of OK/WAIT/FAULT
	if !strings.HasPrefix(s.String(), "unknown") {
		t.Errorf("String() = %q, want an unknown(...) rendering", s.String())
	}
}

func TestTransferBlockMaxWordsFitsPacketMinusHeader(t *testing.T) {
	h := &Handle{}
	want := (packetSize - blockTransferHeaderLen) / 4
	if got := h.TransferBlockMaxWords(); got != want {
		t.Fatalf("TransferBlockMaxWords() = %d, want %d", got, want)
	}
}

func TestSWJSequenceRejectsOutOfRangeBitCounts(t *testing.T) {
	h := &Handle{}
	if err := h.SWJSequence(context.Background(), 0, []byte{0}); err == nil {
		t.Fatal("want error for 0 bits")
	}
	if err := h.SWJSequence(context.Background(), 257, make([]byte, 33)); err == nil {
		t.Fatal("want error for 257 bits")
	}
}

func TestTransferBlockReadRejectsMisalignedRegister(t *testing.T) {
	h := &Handle{}
	if _, err := h.TransferBlockRead(context.Background(), 0, true, 0x1, 4); err == nil {
		t.Fatal("want error for misaligned register")
	}
}

func TestTransferBlockWriteRejectsMisalignedRegister(t *testing.T) {
	h := &Handle{}
	if err := h.TransferBlockWrite(context.Background(), 0, true, 0x2, []uint32{1, 2}); err == nil {
		t.Fatal("want error for misaligned register")
	}
}

func TestTransferBlockReadRejectsLengthOverCapacity(t *testing.T) {
	h := &Handle{}
	if _, err := h.TransferBlockRead(context.Background(), 0, true, 0x0, h.TransferBlockMaxWords()+1); err == nil {
		t.Fatal("want error when length exceeds packet capacity")
	}
}

func TestRegTransferRejectsMisalignedRequest(t *testing.T) {
	h := &Handle{}
	_, _, err := h.RegTransfer(context.Background(), 0, []TransferRequest{{AP: true, Reg: 0x1, Op: OpRead}})
	if err == nil {
		t.Fatal("want error for misaligned register in request")
	}
}
