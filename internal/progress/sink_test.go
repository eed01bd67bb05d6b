package progress

import "testing"

func TestChanSinkDropsWhenUnread(t *testing.T) {
	ch := make(chan Update) // unbuffered, nobody reading
	s := NewChanSink(ch)

	// Must not block even though nothing drains the channel.
	s.Report(50, "halfway")
}

func TestChanSinkDeliversWhenRead(t *testing.T) {
	ch := make(chan Update, 1)
	s := NewChanSink(ch)

	s.Report(10, "starting")

	select {
	case u := <-ch:
		if u.Percent != 10 || u.Message != "starting" {
			t.Fatalf("got %+v", u)
		}
	default:
		t.Fatal("expected a buffered update")
	}
}

func TestNopSinkDoesNotPanic(t *testing.T) {
	var s Sink = NopSink{}
	s.Report(0, "")
	s.Report(100, "done")
}
