package loader

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296

	typeShort    = 3
	typeRational = 5

	unitCentimeter = 3
)

// extractTIFFDPI reads the resolution tags of the first IFD. Scanned
// paintings usually carry them; phone photos converted to TIFF often don't.
func extractTIFFDPI(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return readTIFFDPI(file)
}

func readTIFFDPI(r io.ReadSeeker) (float64, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a TIFF file")
	}

	if _, err := r.Seek(int64(order.Uint32(header[4:8])), io.SeekStart); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(r, order, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var unit uint16 = 2 // inches
	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}
		tag := order.Uint16(entry[0:2])
		fieldType := order.Uint16(entry[2:4])
		value := order.Uint32(entry[8:12])

		switch {
		case tag == tagXResolution && fieldType == typeRational:
			xRes = readRational(r, int64(value), order)
		case tag == tagYResolution && fieldType == typeRational:
			yRes = readRational(r, int64(value), order)
		case tag == tagResolutionUnit && fieldType == typeShort:
			unit = order.Uint16(entry[8:10])
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if dpi == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}
	if unit == unitCentimeter {
		dpi *= 2.54
	}
	return dpi, nil
}

// readRational reads a RATIONAL at offset and restores the read position.
func readRational(r io.ReadSeeker, offset int64, order binary.ByteOrder) float64 {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	defer r.Seek(pos, io.SeekStart)

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0
	}
	var num, denom uint32
	if binary.Read(r, order, &num) != nil || binary.Read(r, order, &denom) != nil || denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
