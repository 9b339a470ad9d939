package sample

import (
	"encoding/binary"
	"math/bits"
)

var nativeEndian = func() Endian {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return Little
	}
	return Big
}()

// NativeEndian reports the byte order of the host.
func NativeEndian() Endian {
	return nativeEndian
}

// Integer samples stored in driver memory are read and written in host order,
// then normalised with the functions below. A sample whose hardware byte order
// matches the host passes through unchanged.

func ToHardwareEndian16(sample int16, target Endian) int16 {
	if target == nativeEndian {
		return sample
	}
	return int16(bits.ReverseBytes16(uint16(sample)))
}

func FromHardwareEndian16(sample int16, source Endian) int16 {
	if source == nativeEndian {
		return sample
	}
	return int16(bits.ReverseBytes16(uint16(sample)))
}

func ToHardwareEndian32(sample int32, target Endian) int32 {
	if target == nativeEndian {
		return sample
	}
	return int32(bits.ReverseBytes32(uint32(sample)))
}

func FromHardwareEndian32(sample int32, source Endian) int32 {
	if source == nativeEndian {
		return sample
	}
	return int32(bits.ReverseBytes32(uint32(sample)))
}
