package dap

import (
	"context"

	"github.com/reverse-bike/sdcfw/internal/probe"
)

// Transport is the subset of probe.Handle the DP/AP driver needs. Defined
// as an interface so tests can substitute a fake CMSIS-DAP device without
// touching real USB hardware.
type Transport interface {
	Connect(ctx context.Context, mode probe.ConnectMode) error
	Disconnect(ctx context.Context) error
	TransferConfigure(ctx context.Context, idleCycles uint8, waitRetry, matchRetry uint16) error
	SWDConfigure(ctx context.Context, cfg uint8) error
	SWJClock(ctx context.Context, hz uint32) error
	SWJSequence(ctx context.Context, numBits int, data []byte) error
	RegTransfer(ctx context.Context, dapIndex uint8, reqs []probe.TransferRequest) (probe.TransferStatus, []uint32, error)
	TransferBlockRead(ctx context.Context, dapIndex uint8, ap bool, reg uint8, length int) ([]uint32, error)
	TransferBlockWrite(ctx context.Context, dapIndex uint8, ap bool, reg uint8, data []uint32) error
	TransferBlockMaxWords() int
	ResetTarget(ctx context.Context) error
	Close()
}

var _ Transport = (*probe.Handle)(nil)
