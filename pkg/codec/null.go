package codec

// NullCodec is the identity codec: the "cover" is the base64 text
// itself, sent as the POST body verbatim. Useful for protocol testing
// without pulling in an image cover (spec.md §4.2, stego.py's
// "base64" entry in AVAILABLE_STEGOS).
type NullCodec struct{}

// nullCapacity mirrors config.py's hard per-algorithm size limit for the
// "null" entry.
const nullCapacity = 5_000_000

func (NullCodec) Name() string { return "null" }

func (NullCodec) Capacity(cover []byte) (int, error) {
	return nullCapacity, nil
}

func (NullCodec) Embed(cover []byte, payload []byte) ([]byte, error) {
	if len(payload) > nullCapacity {
		return nil, &ErrPayloadTooLarge{Payload: len(payload), Capacity: nullCapacity}
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (NullCodec) Extract(medium []byte) ([]byte, error) {
	out := make([]byte, len(medium))
	copy(out, medium)
	return out, nil
}
