package coord

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ddsFilenamePattern matches "<row>_<col>_<MAPTYPE><ZZ>.dds", case
// insensitive on the extension, with the map type upper-cased on parse.
//
//	(\d+)        row
//	_
//	(\d+)        col
//	_
//	([A-Za-z]+)  map type, one or more letters
//	(\d{2})      zoom, exactly two digits
//	\.dds        extension
var ddsFilenamePattern = regexp.MustCompile(`^(\d+)_(\d+)_([A-Za-z]+)(\d{2})\.dds$`)

// Filename is a parsed DDS texture filename.
type Filename struct {
	Row     uint32
	Col     uint32
	Zoom    uint8
	MapType string // upper-cased provider identifier (letters only), e.g. "BI", "GO"
}

// ParseFilename parses a DDS filename of the form
// "{row}_{col}_{MAPTYPE}{ZZ}.dds" into its components. The match is
// case-insensitive on the extension; the returned MapType is always
// upper-cased. Mismatches return an error (the filesystem façade maps
// this to ENOENT).
func ParseFilename(name string) (Filename, error) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".dds") {
		return Filename{}, fmt.Errorf("coord: %q does not end in .dds", name)
	}
	m := ddsFilenamePattern.FindStringSubmatch(matchableName(name))
	if m == nil {
		return Filename{}, fmt.Errorf("coord: %q does not match <row>_<col>_<MAPTYPE><ZZ>.dds", name)
	}

	row, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return Filename{}, fmt.Errorf("coord: invalid row in %q: %w", name, err)
	}
	col, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return Filename{}, fmt.Errorf("coord: invalid col in %q: %w", name, err)
	}
	zoom, err := strconv.ParseUint(m[4], 10, 8)
	if err != nil {
		return Filename{}, fmt.Errorf("coord: invalid zoom in %q: %w", name, err)
	}

	f := Filename{
		Row:     uint32(row),
		Col:     uint32(col),
		Zoom:    uint8(zoom),
		MapType: strings.ToUpper(m[3]),
	}
	if !f.TileCoord().Valid() {
		return Filename{}, fmt.Errorf("coord: %q decodes to an out-of-range tile %s", name, f.TileCoord())
	}
	return f, nil
}

// matchableName normalizes only the extension case so MAPTYPE letter case
// is still captured verbatim by the regex before upper-casing.
func matchableName(name string) string {
	if len(name) < 4 {
		return name
	}
	ext := name[len(name)-4:]
	if strings.EqualFold(ext, ".dds") {
		return name[:len(name)-4] + ".dds"
	}
	return name
}

// TileCoord returns the TileCoord encoded by the filename.
func (f Filename) TileCoord() TileCoord {
	return TileCoord{Row: f.Row, Col: f.Col, Zoom: f.Zoom}
}

// Format reproduces the canonical filename for the parsed coordinates,
// with MapType upper-cased and zoom zero-padded to two digits.
func (f Filename) Format() string {
	return fmt.Sprintf("%d_%d_%s%02d.dds", f.Row, f.Col, f.MapType, f.Zoom)
}

// FilenameFor builds the canonical filename for a tile coordinate and
// provider map-type identifier.
func FilenameFor(t TileCoord, mapType string) string {
	return Filename{Row: t.Row, Col: t.Col, Zoom: t.Zoom, MapType: strings.ToUpper(mapType)}.Format()
}
