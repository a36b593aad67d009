package radioio

import "testing"

func TestFakeRadioRoundtrip(t *testing.T) {
	r := NewFakeRadio()
	r.Inbox = append(r.Inbox, FakeRx{Buf: []byte{1, 2, 3}, RSSI: -70, SNR: 5})

	buf := make([]byte, 8)
	n, ok := r.ReceiveOnce(buf)
	if !ok || n != 3 {
		t.Fatalf("got n=%d ok=%v, want 3/true", n, ok)
	}
	rssi, snr := r.PacketStatus()
	if rssi != -70 || snr != 5 {
		t.Fatalf("got rssi=%d snr=%d, want -70/5", rssi, snr)
	}

	if _, ok := r.ReceiveOnce(buf); ok {
		t.Fatal("empty inbox must report false")
	}
}

func TestFakeRadioTransmitRecorded(t *testing.T) {
	r := NewFakeRadio()
	if !r.Transmit([]byte{9, 9}) {
		t.Fatal("fake radio must report tx success by default")
	}
	if len(r.Sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(r.Sent))
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.NowUs()
	b := c.NowUs()
	if b < a {
		t.Fatal("clock must not go backward")
	}
}
