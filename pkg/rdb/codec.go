package rdb

import "github.com/pierrec/lz4/v4"

// Compress returns an LZ4 block encoding of src, or nil if src did not
// compress (pierrec/lz4's CompressBlock reports this by returning a
// zero count rather than an error). This is the concrete codec behind
// spec.md's abstract "LZF compression codec" collaborator — callers
// only see Compress/Decompress, never which block format backs them.
func Compress(src []byte) []byte {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil || n == 0 {
		return nil
	}
	return dst[:n]
}

// Decompress reverses Compress, given the original uncompressed length
// (stored alongside the compressed length in the on-disk encoding).
func Decompress(compressed []byte, uncompressedLen int) ([]byte, error) {
	dst := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
