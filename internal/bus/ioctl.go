package bus

import "unsafe"

// Linux ioctl request-number encoding (see asm-generic/ioctl.h): a
// direction, a magic type byte, a sequence number, and the payload
// size are packed into a single 32-bit value. x/sys/unix does not
// expose the _IOC/_IOWR macros directly, so the three requests this
// driver issues are built by hand, using the same magic byte ('r') and
// sequence numbers as the character device they target.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNoneDir  = 0
	iocWriteDir = 1
	iocReadDir  = 2

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	ioctlMagic = 'r'
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func iowr(nr, size uintptr) uintptr {
	return ioc(iocReadDir|iocWriteDir, ioctlMagic, nr, size)
}

func iow(nr, size uintptr) uintptr {
	return ioc(iocWriteDir, ioctlMagic, nr, size)
}

// rawSpiInfo mirrors the device's vd628x_spi_info payload.
type rawSpiInfo struct {
	ChunkSize       uint32
	SpiMaxFrequency uint32
}

// rawSpiParams mirrors the device's vd628x_spi_params payload.
type rawSpiParams struct {
	SpeedHz         uint32
	SamplesPerChunk uint16
	PDMSampleWidth  uint16
}

var (
	iocGetSPIInfo   = iowr(0x01, unsafe.Sizeof(rawSpiInfo{}))
	iocSetSPIParams = iow(0x02, unsafe.Sizeof(rawSpiParams{}))
	// GET_CHUNK_SAMPLES takes the destination buffer's address as its
	// argument; the encoded payload size is that of one int16 sample,
	// not of the whole chunk.
	iocGetChunkSamples = iowr(0x03, unsafe.Sizeof(int16(0)))
)
