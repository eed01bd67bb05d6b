package nrf52_test

import "context"

// fakeMem is a flat little-endian word store standing in for a real
// MEM-AP-backed *memio.Engine in nrf52 tests.
type fakeMem struct {
	words map[uint32]uint32
	fail  bool
}

func newFakeMem() *fakeMem {
	return &fakeMem{words: make(map[uint32]uint32)}
}

func (f *fakeMem) ReadU32(ctx context.Context, addr uint32) (uint32, error) {
	if f.fail {
		return 0, errInjected
	}
	return f.words[addr], nil
}

func (f *fakeMem) WriteU32(ctx context.Context, addr uint32, v uint32) error {
	if f.fail {
		return errInjected
	}
	f.words[addr] = v
	return nil
}

func (f *fakeMem) ReadBlock(ctx context.Context, addr uint32, count int) ([]uint32, error) {
	if f.fail {
		return nil, errInjected
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = f.words[addr+uint32(i*4)]
	}
	return out, nil
}

func (f *fakeMem) WriteBlock(ctx context.Context, addr uint32, data []uint32) error {
	if f.fail {
		return errInjected
	}
	for i, w := range data {
		f.words[addr+uint32(i*4)] = w
	}
	return nil
}

// fakeCtrlAP is a minimal CTRL-AP double covering the ERASEALL sequence.
type fakeCtrlAP struct {
	regs                 map[uint8]uint32
	clearCalls           int
	selectCalls          int
	statusReadsUntilZero int
	failStatusWith       error
}

func newFakeCtrlAP() *fakeCtrlAP {
	return &fakeCtrlAP{regs: map[uint8]uint32{0xFC: 0x0288_0000}}
}

func (f *fakeCtrlAP) ReadAP(ctx context.Context, apsel uint8, addr uint8) (uint32, error) {
	if addr == 0x08 && f.failStatusWith != nil {
		return 0, f.failStatusWith
	}
	if addr == 0x08 && f.statusReadsUntilZero > 0 {
		f.statusReadsUntilZero--
		return 1, nil
	}
	return f.regs[addr], nil
}

func (f *fakeCtrlAP) WriteAP(ctx context.Context, apsel uint8, addr uint8, v uint32) error {
	f.regs[addr] = v
	return nil
}

func (f *fakeCtrlAP) ClearErrors(ctx context.Context) error {
	f.clearCalls++
	return nil
}

func (f *fakeCtrlAP) SelectMemAP(ctx context.Context) error {
	f.selectCalls++
	return nil
}

var errInjected = fakeErr("injected failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
