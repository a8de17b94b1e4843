// Package hash provides the CRC32-Castagnoli checksums that guard snapshot
// payloads and object store uploads.
//
// One-shot:
//
//	sum := hash.CRC32C(payload)
//	if err := hash.Verify(payload, sum); err != nil { ... }
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when present.
package hash
