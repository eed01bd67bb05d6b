// Package progress models operation progress as a write-only sink rather
// than a bare callback: a write-only channel of (percent, message) values
// owned by the caller, with the operation generic over any sink exposing
// a single report method. Grounded on
// moffa90-go-cyacd/bootloader.ProgressCallback, collapsed from a struct
// argument plus functional-option wiring into a single interface method.
package progress

// Sink receives progress updates from a running backup/erase/restore
// operation. Implementations must return quickly; the
// operation does not buffer updates on the caller's behalf.
type Sink interface {
	Report(percent uint8, message string)
}

// NopSink discards every update. Used as the default sink so operation
// code never has to nil-check.
type NopSink struct{}

func (NopSink) Report(percent uint8, message string) {}

// Update is one (percent, message) sample, the payload ChanSink carries.
type Update struct {
	Percent uint8
	Message string
}

// ChanSink reports progress by sending on a channel, letting the caller
// consume updates on its own schedule (a UI event loop, a log tailer)
// instead of running arbitrary code on the operation's goroutine.
type ChanSink struct {
	ch chan<- Update
}

// NewChanSink wraps a send-only channel as a Sink. The channel is never
// closed by ChanSink; the caller owns its lifetime.
func NewChanSink(ch chan<- Update) ChanSink {
	return ChanSink{ch: ch}
}

// Report sends the update, dropping it instead of blocking if the
// channel isn't being drained — a stalled UI must never stall a flash
// write in progress.
func (s ChanSink) Report(percent uint8, message string) {
	select {
	case s.ch <- Update{Percent: percent, Message: message}:
	default:
	}
}
