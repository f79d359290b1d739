// Package exrinfo reads image dimensions from OpenEXR headers.
package exrinfo

import (
	"fmt"
	"os"

	"github.com/mrjoshuak/go-openexr/exr"
)

// Info describes the first part of an OpenEXR file.
type Info struct {
	Width  int
	Height int
}

// Read opens path and decodes its header. Pixel data is not read.
func Read(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	file, err := exr.OpenReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("reading EXR header of %s: %w", path, err)
	}

	if file.NumParts() == 0 {
		return nil, fmt.Errorf("%s has no image parts", path)
	}

	h := file.Header(0)
	if h == nil {
		return nil, fmt.Errorf("%s has no header for part 0", path)
	}

	dw := h.DataWindow()
	return &Info{
		Width:  int(dw.Width()),
		Height: int(dw.Height()),
	}, nil
}

// CheckSquare verifies that path is a size x size image.
func CheckSquare(path string, size int) error {
	info, err := Read(path)
	if err != nil {
		return err
	}
	if info.Width != size || info.Height != size {
		return fmt.Errorf("%s is %dx%d, expected %dx%d", path, info.Width, info.Height, size, size)
	}
	return nil
}
