package catalog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	npyMagic   = []byte("\x93NUMPY")
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPY reads a 2-D little-endian float32 or float64 matrix stored in NumPy .npy format
// and returns it as float32 rows.
func ReadNPY(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vectors: %w", err)
	}
	defer f.Close()
	out, err := DecodeNPY(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// DecodeNPY decodes an .npy stream; see ReadNPY.
func DecodeNPY(r io.Reader) ([][]float32, error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(prefix[:6], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}

	var headerLen int
	switch prefix[6] {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", prefix[6])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	descr, rows, cols, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}

	out := make([][]float32, rows)
	switch descr {
	case "<f4":
		buf := make([]byte, 4*cols)
		for i := 0; i < rows; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read row %d: %w", i, err)
			}
			row := make([]float32, cols)
			for j := range row {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
			}
			out[i] = row
		}
	case "<f8":
		buf := make([]byte, 8*cols)
		for i := 0; i < rows; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read row %d: %w", i, err)
			}
			row := make([]float32, cols)
			for j := range row {
				row[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[8*j:])))
			}
			out[i] = row
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr)
	}
	return out, nil
}

func parseNPYHeader(h string) (descr string, rows, cols int, err error) {
	m := npyDescr.FindStringSubmatch(h)
	if m == nil {
		return "", 0, 0, fmt.Errorf("npy header missing descr")
	}
	descr = m[1]
	if m := npyFortran.FindStringSubmatch(h); m != nil && m[1] == "True" {
		return "", 0, 0, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}
	m = npyShape.FindStringSubmatch(h)
	if m == nil {
		return "", 0, 0, fmt.Errorf("npy header missing shape")
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", 0, 0, fmt.Errorf("invalid npy shape %q", m[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return "", 0, 0, fmt.Errorf("expected 2-D npy array, got shape (%s)", m[1])
	}
	return descr, dims[0], dims[1], nil
}

// EncodeNPY writes rows as a version 1.0 '<f4' .npy stream. All rows must share one length.
func EncodeNPY(w io.Writer, rows [][]float32) error {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), cols)
	// total preamble must be a multiple of 64 and end in a newline
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(append(append([]byte{}, npyMagic...), 1, 0)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for i, row := range rows {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}
