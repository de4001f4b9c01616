// Package raster reads single band land cover code grids.
//
// Striped and tiled 8-bit TIFFs, uncompressed or deflated, are read in place
// through a memory map with decoded blocks kept in an LRU cache. Anything
// else falls back to a full decode.
package raster

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png" // register PNG format with image.Decode
	"io"
	"log/slog"
	"os"

	"github.com/echoflaresat/tiff"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/mmap"
)

// DefaultCacheBlocks is the number of decoded strips or tiles kept in memory.
const DefaultCacheBlocks = 64

// ErrOutOfBounds is returned for pixel coordinates outside the grid.
var ErrOutOfBounds = errors.New("pixel outside raster")

// Raster is a grid of 8-bit land cover codes.
type Raster interface {
	Size() (width, height int)
	CodeAt(x, y int) (uint8, error)
	Close() error
}

// Open reads a code raster from path, preferring the native memory mapped
// reader.
func Open(path string) (Raster, error) {
	return OpenCached(path, DefaultCacheBlocks)
}

// OpenCached is Open with a bound on the number of decoded blocks kept.
func OpenCached(path string, cacheBlocks int) (Raster, error) {
	if cacheBlocks <= 0 {
		cacheBlocks = DefaultCacheBlocks
	}
	g, err := openGrid(path, cacheBlocks)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrInvalidHeader) {
		slog.Warn("native TIFF reader declined raster", "path", path, "error", err)
	}
	return decodeImage(path)
}

type grid struct {
	header Header
	reader *mmap.ReaderAt
	cache  *lru.Cache // block index -> []byte
}

func openGrid(path string, cacheBlocks int) (*grid, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	header, err := parseHeader(reader)
	if err == nil {
		err = header.validate()
	}
	if err != nil {
		reader.Close()
		return nil, err
	}

	cache, err := lru.New(cacheBlocks)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return &grid{header: header, reader: reader, cache: cache}, nil
}

func (g *grid) Size() (int, int) { return g.header.Width, g.header.Height }

func (g *grid) Close() error { return g.reader.Close() }

func (g *grid) CodeAt(x, y int) (uint8, error) {
	h := g.header
	if x < 0 || y < 0 || x >= h.Width || y >= h.Height {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}

	var index, stride, localX, localY int
	if h.Tiled() {
		tilesAcross := (h.Width + h.TileWidth - 1) / h.TileWidth
		index = (y/h.TileHeight)*tilesAcross + x/h.TileWidth
		stride = h.TileWidth
		localX, localY = x%h.TileWidth, y%h.TileHeight
	} else {
		index = y / h.RowsPerStrip
		stride = h.Width
		localX, localY = x, y%h.RowsPerStrip
	}

	block, err := g.block(index)
	if err != nil {
		return 0, err
	}
	off := localY*stride + localX
	if off >= len(block) {
		return 0, fmt.Errorf("block %d truncated: need byte %d of %d", index, off, len(block))
	}
	v := block[off]
	if h.Photometric == PhotometricWhiteIsZero {
		v = 255 - v
	}
	return v, nil
}

func (g *grid) block(index int) ([]byte, error) {
	if val, ok := g.cache.Get(index); ok {
		return val.([]byte), nil
	}
	b, err := g.loadBlock(index)
	if err != nil {
		return nil, err
	}
	g.cache.Add(index, b)
	return b, nil
}

func (g *grid) loadBlock(index int) ([]byte, error) {
	h := g.header
	offsets, counts := h.StripOffsets, h.StripByteCounts
	if h.Tiled() {
		offsets, counts = h.TileOffsets, h.TileByteCounts
	}

	buf := make([]byte, counts[index])
	if _, err := g.reader.ReadAt(buf, int64(offsets[index])); err != nil {
		return nil, fmt.Errorf("read block %d: %w", index, err)
	}
	if h.Compression == CompressionNone {
		return buf, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("inflate block %d: %w", index, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate block %d: %w", index, err)
	}
	return out, nil
}

type imageRaster struct {
	img image.Image
}

func decodeImage(path string) (Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, serr
		}
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &imageRaster{img: img}, nil
}

// FromImage wraps a decoded image as a code raster. Paletted images yield
// palette indices and everything else its gray level.
func FromImage(img image.Image) Raster { return &imageRaster{img: img} }

func (r *imageRaster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *imageRaster) Close() error { return nil }

func (r *imageRaster) CodeAt(x, y int) (uint8, error) {
	b := r.img.Bounds()
	px, py := b.Min.X+x, b.Min.Y+y
	if !(image.Point{X: px, Y: py}).In(b) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	switch img := r.img.(type) {
	case *image.Paletted:
		return img.ColorIndexAt(px, py), nil
	case *image.Gray:
		return img.GrayAt(px, py).Y, nil
	}
	return color.GrayModel.Convert(r.img.At(px, py)).(color.Gray).Y, nil
}
