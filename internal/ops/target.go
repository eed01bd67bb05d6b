// Package ops is the operations layer: backup, erase, and
// restore, composed from the DP/AP driver, the memory engine, and the
// nRF52 NVM controller, reporting through a progress.Sink and following
// a fixed per-error-code recoverability policy.
package ops

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/reverse-bike/sdcfw/internal/dap"
	"github.com/reverse-bike/sdcfw/internal/memio"
	"github.com/reverse-bike/sdcfw/internal/nrf52"
)

var logger = log.WithField("component", "ops")

// Session is the subset of *dap.Session the operations layer drives
// directly, alongside the memory engine it owns.
type Session interface {
	nrf52.CtrlAP
	ResetTarget(ctx context.Context) error
}

var _ Session = (*dap.Session)(nil)

// Target bundles an open ADIv5 session with the MEM-AP #0 memory engine
// built on top of it — the pair every operation in this package needs.
// It never closes the session; callers own that lifecycle.
type Target struct {
	Session Session
	Mem     *memio.Engine
}

// NewTarget wraps an already-connected session.
func NewTarget(s *dap.Session) *Target {
	return &Target{Session: s, Mem: memio.New(s, dap.MemAPSel)}
}
