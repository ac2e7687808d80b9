package ledger

// Keyring resolves the wallet a shell generation lives in.
type Keyring interface {
	Current(generation int) Handle
	Next(generation int) Handle
}

// StaticKeyring keeps one wallet across every generation; a molt is a
// counter boundary, not a key rotation.
type StaticKeyring struct {
	handle Handle
}

// NewStaticKeyring wraps h.
func NewStaticKeyring(h Handle) *StaticKeyring {
	return &StaticKeyring{handle: h}
}

func (k *StaticKeyring) Current(int) Handle { return k.handle }

func (k *StaticKeyring) Next(int) Handle { return k.handle }
