package goevent

// Flag is a bitset combining an event's kind, the conditions it was
// registered for, and (internally) which container currently holds
// it. TIMEOUT, SIGNAL, READ, WRITE and PERSIST occupy stable,
// independent bit positions so callers can OR them together freely
// when inspecting a callback's fired-conditions argument.
type Flag uint32

const (
	// Kind bits: exactly one is set for the lifetime of an
	// initialized event. The zero kind is IO, so it carries no bit of
	// its own.
	FlagTimeout Flag = 1 << 4
	FlagSignal  Flag = 1 << 5

	// Condition bits, combinable with each other and with a kind bit.
	FlagRead    Flag = 1 << 8
	FlagWrite   Flag = 1 << 9
	FlagPersist Flag = 1 << 10
)

const (
	// flagInitialized marks storage that has been through Set.
	flagInitialized Flag = 1 << 0
	// flagOnList is set iff the event sits in the I/O list or in a
	// per-signal list.
	flagOnList Flag = 1 << 1
	// flagOnFire is set iff the event is in the fire queue.
	flagOnFire Flag = 1 << 2
	// flagOnHeap is set iff the event is in the timeout heap.
	flagOnHeap Flag = 1 << 3
)

// kindMask isolates the kind bits from a flag set.
const kindMask = FlagTimeout | FlagSignal

// pendingMask is the subset of condition bits that Pending reports
// alongside TIMEOUT.
const pendingMask = FlagSignal | FlagRead | FlagWrite | FlagPersist

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// Has reports whether every bit set in mask is also set in f. It is
// the exported form of the same check callbacks use to inspect the
// fires value a Callback receives.
func (f Flag) Has(mask Flag) bool { return f&mask == mask }

func (f Flag) isTimer() bool  { return f&kindMask == FlagTimeout }
func (f Flag) isSignal() bool { return f&kindMask == FlagSignal }
func (f Flag) isIO() bool     { return f&kindMask == 0 }
