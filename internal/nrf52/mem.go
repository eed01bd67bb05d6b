package nrf52

import (
	"context"

	"github.com/reverse-bike/sdcfw/internal/memio"
)

// Mem is the subset of *memio.Engine the NVM controller drives, seamed
// out for tests the way internal/memio seams out internal/dap.
type Mem interface {
	ReadU32(ctx context.Context, addr uint32) (uint32, error)
	WriteU32(ctx context.Context, addr uint32, v uint32) error
	ReadBlock(ctx context.Context, addr uint32, count int) ([]uint32, error)
	WriteBlock(ctx context.Context, addr uint32, data []uint32) error
}

var _ Mem = (*memio.Engine)(nil)
