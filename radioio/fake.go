package radioio

// FakeRadio is an in-memory Radio used by scheduler and node tests: frames
// pushed onto Inbox are delivered one at a time by ReceiveOnce, and every
// Transmit call is recorded onto Sent instead of touching real hardware.
type FakeRadio struct {
	Inbox []FakeRx
	Sent  [][]byte

	TxOK      bool
	lastRSSI  int8
	lastSNR   int8
}

// FakeRx is one queued inbound packet with its radio-reported quality.
type FakeRx struct {
	Buf  []byte
	RSSI int8
	SNR  int8
}

// NewFakeRadio returns a FakeRadio whose Transmit always reports success.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{TxOK: true}
}

func (f *FakeRadio) Begin(freqHz uint32, txPowerDBm int8) error { return nil }
func (f *FakeRadio) Configure(cfg Config) error                 { return nil }

func (f *FakeRadio) Transmit(buf []byte) bool {
	f.Sent = append(f.Sent, append([]byte(nil), buf...))
	return f.TxOK
}

func (f *FakeRadio) ReceiveOnce(buf []byte) (int, bool) {
	if len(f.Inbox) == 0 {
		return 0, false
	}
	rx := f.Inbox[0]
	f.Inbox = f.Inbox[1:]
	f.lastRSSI, f.lastSNR = rx.RSSI, rx.SNR
	n := copy(buf, rx.Buf)
	return n, true
}

func (f *FakeRadio) PacketStatus() (int8, int8) {
	return f.lastRSSI, f.lastSNR
}
