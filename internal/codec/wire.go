package codec

import "encoding/binary"

// shardMagic identifies a DataMesh shard payload on the wire, distinct
// from the inner plaintext header so a shard can be validated before it
// is ever handed to reedsolomon.
var shardMagic = [4]byte{'D', 'M', 'S', 'H'}

const shardVersion = 1

// shardHeaderLen is magic:4 ‖ version:u8 ‖ plan_k:u8 ‖ plan_m:u8 ‖ index:u8 ‖ length:u32_be.
const shardHeaderLen = 4 + 1 + 1 + 1 + 1 + 4

// encodeShardWire frames a single erasure-coded shard for network
// transport and storage, per the shard wire format.
func encodeShardWire(planK, planM, index uint8, payload []byte) []byte {
	buf := make([]byte, shardHeaderLen+len(payload))
	copy(buf[0:4], shardMagic[:])
	buf[4] = shardVersion
	buf[5] = planK
	buf[6] = planM
	buf[7] = index
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[shardHeaderLen:], payload)
	return buf
}

// decodeShardWire parses a frame produced by encodeShardWire, returning
// the plan (k, m), shard index, and payload slice (a sub-slice of buf).
func decodeShardWire(buf []byte) (planK, planM, index uint8, payload []byte, err error) {
	if len(buf) < shardHeaderLen {
		return 0, 0, 0, nil, ErrBadHeader
	}
	if buf[0] != shardMagic[0] || buf[1] != shardMagic[1] || buf[2] != shardMagic[2] || buf[3] != shardMagic[3] {
		return 0, 0, 0, nil, ErrBadHeader
	}
	if buf[4] != shardVersion {
		return 0, 0, 0, nil, ErrBadHeader
	}
	planK, planM, index = buf[5], buf[6], buf[7]
	length := binary.BigEndian.Uint32(buf[8:12])
	body := buf[shardHeaderLen:]
	if uint64(len(body)) < uint64(length) {
		return 0, 0, 0, nil, ErrBadHeader
	}
	return planK, planM, index, body[:length], nil
}
