package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Header is the subset of the first TIFF image file directory needed to
// address pixels of a code raster.
type Header struct {
	ByteOrder       binary.ByteOrder
	Width, Height   int
	SamplesPerPixel int
	BitsPerSample   []int
	Photometric     int
	Compression     int
	PlanarConfig    int

	// Strip layout
	RowsPerStrip    int
	StripOffsets    []int
	StripByteCounts []int

	// Tile layout
	TileWidth      int
	TileHeight     int
	TileOffsets    []int
	TileByteCounts []int
}

// Tiled reports whether pixels are stored in tiles rather than strips.
func (h Header) Tiled() bool { return len(h.TileOffsets) > 0 }

// https://www.loc.gov/preservation/digital/formats/content/tiff_tags.shtml
const (
	TagImageWidth                = 256
	TagImageLength               = 257
	TagBitsPerSample             = 258
	TagCompression               = 259
	TagPhotometricInterpretation = 262
	TagStripOffsets              = 273
	TagSamplesPerPixel           = 277
	TagRowsPerStrip              = 278
	TagStripByteCounts           = 279
	TagPlanarConfiguration       = 284
	TagTileWidth                 = 322
	TagTileLength                = 323
	TagTileOffsets               = 324
	TagTileByteCounts            = 325
)

// Compression schemes understood by the native reader.
const (
	CompressionNone         = 1
	CompressionDeflate      = 8
	CompressionDeflateAdobe = 32946
)

// Photometric interpretations accepted for single band codes.
const (
	PhotometricWhiteIsZero = 0
	PhotometricBlackIsZero = 1
	PhotometricPalette     = 3
)

// field types
const (
	typeByte  = 1
	typeShort = 3
	typeLong  = 4
)

var (
	// ErrInvalidHeader means the file is not a TIFF at all.
	ErrInvalidHeader = errors.New("invalid TIFF header")
	// ErrUnsupported means the file is a TIFF the native reader cannot address.
	ErrUnsupported = errors.New("unsupported TIFF layout")
)

func parseHeader(reader io.ReaderAt) (Header, error) {
	read := func(offset int64, size int) ([]byte, error) {
		buf := make([]byte, size)
		_, err := reader.ReadAt(buf, offset)
		return buf, err
	}

	header, err := read(0, 8)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	var bo binary.ByteOrder
	switch string(header[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return Header{}, ErrInvalidHeader
	}
	if bo.Uint16(header[2:4]) != 42 {
		return Header{}, ErrInvalidHeader
	}
	ifdOffset := int64(bo.Uint32(header[4:8]))

	entryCountRaw, err := read(ifdOffset, 2)
	if err != nil {
		return Header{}, err
	}
	numEntries := int(bo.Uint16(entryCountRaw))
	entriesRaw, err := read(ifdOffset+2, numEntries*12)
	if err != nil {
		return Header{}, err
	}

	hdr := Header{
		ByteOrder:       bo,
		SamplesPerPixel: 1,
		Photometric:     -1,
		Compression:     CompressionNone,
		PlanarConfig:    1,
	}

	for i := 0; i < numEntries; i++ {
		entry := entriesRaw[i*12 : (i+1)*12]
		tag := bo.Uint16(entry[0:2])

		vals, err := fieldValues(bo, entry, read)
		if err != nil {
			return Header{}, fmt.Errorf("tag %d: %w", tag, err)
		}
		if len(vals) == 0 {
			continue
		}
		first := vals[0]

		switch tag {
		case TagImageWidth:
			hdr.Width = first
		case TagImageLength:
			hdr.Height = first
		case TagBitsPerSample:
			hdr.BitsPerSample = vals
		case TagCompression:
			hdr.Compression = first
		case TagPhotometricInterpretation:
			hdr.Photometric = first
		case TagStripOffsets:
			hdr.StripOffsets = vals
		case TagSamplesPerPixel:
			hdr.SamplesPerPixel = first
		case TagRowsPerStrip:
			hdr.RowsPerStrip = first
		case TagStripByteCounts:
			hdr.StripByteCounts = vals
		case TagPlanarConfiguration:
			hdr.PlanarConfig = first
		case TagTileWidth:
			hdr.TileWidth = first
		case TagTileLength:
			hdr.TileHeight = first
		case TagTileOffsets:
			hdr.TileOffsets = vals
		case TagTileByteCounts:
			hdr.TileByteCounts = vals
		}
	}

	if hdr.Width <= 0 || hdr.Height <= 0 {
		return Header{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidHeader, hdr.Width, hdr.Height)
	}
	if hdr.RowsPerStrip <= 0 || hdr.RowsPerStrip > hdr.Height {
		hdr.RowsPerStrip = hdr.Height
	}
	return hdr, nil
}

// fieldValues decodes an IFD entry. Values of four bytes or less are stored
// inline in the offset slot.
func fieldValues(bo binary.ByteOrder, entry []byte, read func(int64, int) ([]byte, error)) ([]int, error) {
	typ := bo.Uint16(entry[2:4])
	count := int(bo.Uint32(entry[4:8]))

	var size int
	switch typ {
	case typeByte:
		size = 1
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil, nil
	}

	n := count * size
	var buf []byte
	if n <= 4 {
		buf = entry[8 : 8+n]
	} else {
		var err error
		buf, err = read(int64(bo.Uint32(entry[8:12])), n)
		if err != nil {
			return nil, err
		}
	}

	out := make([]int, count)
	for i := range out {
		switch size {
		case 1:
			out[i] = int(buf[i])
		case 2:
			out[i] = int(bo.Uint16(buf[i*2:]))
		case 4:
			out[i] = int(bo.Uint32(buf[i*4:]))
		}
	}
	return out, nil
}

// validate checks that the header describes one 8-bit band the native
// reader can address.
func (h Header) validate() error {
	switch h.Compression {
	case CompressionNone, CompressionDeflate, CompressionDeflateAdobe:
	default:
		return fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	switch h.Photometric {
	case PhotometricWhiteIsZero, PhotometricBlackIsZero, PhotometricPalette:
	default:
		return fmt.Errorf("%w: photometric %d", ErrUnsupported, h.Photometric)
	}
	if h.SamplesPerPixel != 1 || len(h.BitsPerSample) == 0 || h.BitsPerSample[0] != 8 {
		return fmt.Errorf("%w: expected one 8-bit sample, got %d x %v", ErrUnsupported, h.SamplesPerPixel, h.BitsPerSample)
	}
	if h.Tiled() {
		if h.TileWidth <= 0 || h.TileHeight <= 0 || len(h.TileOffsets) != len(h.TileByteCounts) {
			return fmt.Errorf("%w: invalid tile offset/length", ErrUnsupported)
		}
		across := (h.Width + h.TileWidth - 1) / h.TileWidth
		down := (h.Height + h.TileHeight - 1) / h.TileHeight
		if len(h.TileOffsets) < across*down {
			return fmt.Errorf("%w: %d tiles for a %dx%d grid", ErrUnsupported, len(h.TileOffsets), across, down)
		}
		return nil
	}
	if len(h.StripOffsets) == 0 || len(h.StripOffsets) != len(h.StripByteCounts) {
		return fmt.Errorf("%w: invalid strip offset/length", ErrUnsupported)
	}
	if strips := (h.Height + h.RowsPerStrip - 1) / h.RowsPerStrip; len(h.StripOffsets) < strips {
		return fmt.Errorf("%w: %d strips for %d rows", ErrUnsupported, len(h.StripOffsets), h.Height)
	}
	return nil
}
