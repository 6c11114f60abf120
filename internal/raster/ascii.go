package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteASCII encodes g as an ESRI ASCII grid.
func WriteASCII(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	yll := g.OriginY - float64(g.Rows)*g.CellSize
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", fmtFloat(g.OriginX), fmtFloat(yll))
	fmt.Fprintf(bw, "cellsize %s\nNODATA_value %s\n", fmtFloat(g.CellSize), fmtFloat(g.NoData))
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			v := g.At(r, c)
			if g.IsNoData(v) {
				v = g.NoData
			}
			bw.WriteString(fmtFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadASCII decodes an ESRI ASCII grid. Both corner and center
// registration headers are accepted.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var pending string
	for len(header) < 6 && sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
			if !sc.Scan() {
				return nil, fmt.Errorf("ascii grid: missing value for %s", tok)
			}
			v, err := strconv.ParseFloat(sc.Text(), 64)
			if err != nil {
				return nil, fmt.Errorf("ascii grid: %s: %w", tok, err)
			}
			header[key] = v
		default:
			// nodata_value is optional; the first data value ends the header.
			pending = tok
		}
		if pending != "" {
			break
		}
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	cell := header["cellsize"]
	if cols <= 0 || rows <= 0 || cell <= 0 {
		return nil, fmt.Errorf("ascii grid: incomplete header %v", header)
	}
	xll, yll := header["xllcorner"], header["yllcorner"]
	if v, ok := header["xllcenter"]; ok {
		xll = v - cell/2
	}
	if v, ok := header["yllcenter"]; ok {
		yll = v - cell/2
	}

	g := New(rows, cols, xll, yll+float64(rows)*cell, cell)
	if v, ok := header["nodata_value"]; ok {
		g.NoData = v
	}

	i := 0
	parse := func(tok string) error {
		if i >= len(g.Data) {
			return fmt.Errorf("ascii grid: more than %d values", len(g.Data))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("ascii grid: value %d: %w", i, err)
		}
		g.Data[i] = v
		i++
		return nil
	}
	if pending != "" {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}
	if i != len(g.Data) {
		return nil, fmt.Errorf("ascii grid: got %d values, want %d", i, len(g.Data))
	}
	return g, nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
