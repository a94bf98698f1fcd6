package input

import "sync"

// Scancode identifies one of the eight mapped keys. The host input
// thread translates whatever native key event it receives into one
// of these before pushing it.
type Scancode uint8

const (
	ScanW Scancode = iota
	ScanA
	ScanS
	ScanD
	ScanI
	ScanJ
	ScanK
	ScanU
)

var scancodeButton = map[Scancode]Button{
	ScanW: ButtonUp,
	ScanA: ButtonLeft,
	ScanS: ButtonDown,
	ScanD: ButtonRight,
	ScanK: ButtonA,
	ScanJ: ButtonB,
	ScanU: ButtonSelect,
	ScanI: ButtonStart,
}

const (
	queueSize  = 32
	latchPolls = 30
)

// KeyboardSource is a ButtonSource fed by scancodes pushed from a
// host input thread through a bounded, lossy queue (drop-newest on
// full). Each button carries a latch that holds it "pressed" for
// about 30 subsequent polls after its scancode is seen, smoothing
// over a host that delivers key-down events more sparsely than the
// emulator polls.
type KeyboardSource struct {
	mu        sync.Mutex
	queue     []Scancode
	countdown [numButtons]int
}

func NewKeyboardSource() *KeyboardSource {
	return &KeyboardSource{}
}

// PushScancode is safe to call from a different goroutine than
// Pressed. If the queue is already full, the scancode is dropped.
func (k *KeyboardSource) PushScancode(s Scancode) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.queue) >= queueSize {
		return
	}
	k.queue = append(k.queue, s)
}

// Pressed drains any scancodes queued since the last call, refreshing
// the latch for every button they map to, then reports and decays the
// requested button's latch.
func (k *KeyboardSource) Pressed(b Button) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, s := range k.queue {
		if btn, ok := scancodeButton[s]; ok {
			k.countdown[btn] = latchPolls
		}
	}
	k.queue = k.queue[:0]

	if k.countdown[b] <= 0 {
		return false
	}
	k.countdown[b]--
	return true
}
