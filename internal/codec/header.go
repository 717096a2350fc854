package codec

import "encoding/binary"

// innerMagic marks the small header serialized ahead of plaintext bytes,
// before encryption. It lets decode() sanity-check that the AEAD opened
// the buffer we expect, independent of the authentication tag.
var innerMagic = [4]byte{'D', 'M', 'P', 'L'}

const innerVersion = 1

// maxPlaintextLen is 2^32 - 1, the hard ceiling the specification places
// on a single file's plaintext size (original length must fit a u32).
const maxPlaintextLen = 1<<32 - 1

// encodeInnerHeader serializes magic ‖ version:u8 ‖ original_len:u32_be
// ahead of the plaintext, forming the buffer that gets AEAD-sealed.
func encodeInnerHeader(plaintext []byte) ([]byte, error) {
	if len(plaintext) > maxPlaintextLen {
		return nil, ErrFileTooLarge
	}
	buf := make([]byte, 4+1+4+len(plaintext))
	copy(buf[0:4], innerMagic[:])
	buf[4] = innerVersion
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(plaintext)))
	copy(buf[9:], plaintext)
	return buf, nil
}

// decodeInnerHeader parses the buffer produced by encodeInnerHeader and
// returns the original plaintext slice (a sub-slice of buf).
func decodeInnerHeader(buf []byte) ([]byte, error) {
	if len(buf) < 9 {
		return nil, ErrBadHeader
	}
	if buf[0] != innerMagic[0] || buf[1] != innerMagic[1] || buf[2] != innerMagic[2] || buf[3] != innerMagic[3] {
		return nil, ErrBadHeader
	}
	if buf[4] != innerVersion {
		return nil, ErrBadHeader
	}
	origLen := binary.BigEndian.Uint32(buf[5:9])
	body := buf[9:]
	if uint64(len(body)) < uint64(origLen) {
		return nil, ErrBadHeader
	}
	return body[:origLen], nil
}
