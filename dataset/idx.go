package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

const (
	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801
)

// ImageSet is a labelled set of fixed-size grayscale images. Images[i] holds
// Rows*Cols intensities in row-major order.
type ImageSet struct {
	Source string
	Images [][]uint8
	Labels []int
	Rows   int
	Cols   int
}

// Len returns the number of samples.
func (s *ImageSet) Len() int {
	return len(s.Images)
}

// Subset returns a copy holding only the samples at idx.
func (s *ImageSet) Subset(idx []int) *ImageSet {
	out := &ImageSet{
		Source: s.Source,
		Images: make([][]uint8, len(idx)),
		Labels: make([]int, len(idx)),
		Rows:   s.Rows,
		Cols:   s.Cols,
	}
	for i, j := range idx {
		out.Images[i] = append([]uint8(nil), s.Images[j]...)
		out.Labels[i] = s.Labels[j]
	}
	return out
}

// LoadIDX reads an image file and its label file in IDX format. Paths ending
// in ".gz" are decompressed on the fly.
func LoadIDX(imagesPath, labelsPath string) (*ImageSet, error) {
	images, rows, cols, err := readIDXImages(imagesPath)
	if err != nil {
		return nil, err
	}
	labels, err := readIDXLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, errors.NewDataSourceError(labelsPath, "image and label counts differ",
			errors.Newf("%d images, %d labels", len(images), len(labels)))
	}
	return &ImageSet{Source: imagesPath, Images: images, Labels: labels, Rows: rows, Cols: cols}, nil
}

// LoadMNIST loads the train and test sets from dir using the canonical file
// names, with or without a ".gz" suffix.
func LoadMNIST(dir string) (train, test *ImageSet, err error) {
	resolve := func(name string) (string, error) {
		for _, candidate := range []string{name, name + ".gz"} {
			p := filepath.Join(dir, candidate)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
		return "", errors.NewDataSourceError(filepath.Join(dir, name), "file not found", os.ErrNotExist)
	}

	paths := make(map[string]string, 4)
	for _, name := range []string{
		"train-images-idx3-ubyte", "train-labels-idx1-ubyte",
		"t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte",
	} {
		p, err := resolve(name)
		if err != nil {
			return nil, nil, err
		}
		paths[name] = p
	}

	train, err = LoadIDX(paths["train-images-idx3-ubyte"], paths["train-labels-idx1-ubyte"])
	if err != nil {
		return nil, nil, err
	}
	test, err = LoadIDX(paths["t10k-images-idx3-ubyte"], paths["t10k-labels-idx1-ubyte"])
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// maxIDXPixels bounds a single image when the payload size is unknown.
const maxIDXPixels = 1 << 24

// openIDX returns a reader over path and the number of bytes on disk, or -1
// when the file is compressed and the decoded size is unknown.
func openIDX(path string) (io.Reader, func() error, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, errors.NewDataSourceError(path, "cannot open", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, 0, errors.NewDataSourceError(path, "cannot stat", err)
		}
		return bufio.NewReader(f), f.Close, info.Size(), nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, 0, errors.NewDataSourceError(path, "invalid gzip stream", err)
	}
	closer := func() error {
		gz.Close()
		return f.Close()
	}
	return bufio.NewReader(gz), closer, -1, nil
}

func readHeader(r io.Reader, path string, want uint32, dims int) ([]int, error) {
	header := make([]uint32, 1+dims)
	if err := binary.Read(r, binary.BigEndian, header); err != nil {
		return nil, errors.NewDataSourceError(path, "truncated header", err)
	}
	if header[0] != want {
		return nil, errors.NewDataSourceError(path, "bad magic number",
			errors.Newf("expected 0x%08x, got 0x%08x", want, header[0]))
	}
	out := make([]int, dims)
	for i := range out {
		out[i] = int(header[i+1])
	}
	return out, nil
}

// checkPayload fails when count items of itemSize bytes cannot fit in the
// payload that follows a header of headerLen bytes. size < 0 skips the check.
func checkPayload(path string, size, headerLen int64, count, itemSize int) error {
	if size < 0 {
		return nil
	}
	payload := uint64(size - headerLen)
	if uint64(itemSize) > payload || (itemSize > 0 && uint64(count) > payload/uint64(itemSize)) {
		return errors.NewDataSourceError(path, "header declares more data than the file holds",
			errors.Newf("%d items of %d bytes, %d payload bytes", count, itemSize, payload))
	}
	return nil
}

// initialCap keeps the first allocation independent of the declared count.
func initialCap(n int) int {
	return min(n, 4096)
}

func readIDXImages(path string) ([][]uint8, int, int, error) {
	r, closeFn, size, err := openIDX(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closeFn()

	dims, err := readHeader(r, path, idxImageMagic, 3)
	if err != nil {
		return nil, 0, 0, err
	}
	n, rows, cols := dims[0], dims[1], dims[2]
	if rows == 0 || cols == 0 {
		return nil, 0, 0, errors.NewDataSourceError(path, "zero image dimension", nil)
	}
	pixels := uint64(rows) * uint64(cols)
	if size < 0 && pixels > maxIDXPixels {
		return nil, 0, 0, errors.NewDataSourceError(path, "image dimensions too large",
			errors.Newf("%dx%d", rows, cols))
	}
	if size >= 0 && pixels > uint64(size) {
		return nil, 0, 0, errors.NewDataSourceError(path, "header declares more data than the file holds",
			errors.Newf("%dx%d image, %d bytes on disk", rows, cols, size))
	}
	if err := checkPayload(path, size, 16, n, int(pixels)); err != nil {
		return nil, 0, 0, err
	}

	images := make([][]uint8, 0, initialCap(n))
	for i := 0; i < n; i++ {
		img := make([]uint8, pixels)
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, 0, 0, errors.NewDataSourceError(path, "truncated image data",
				errors.Wrapf(err, "image %d of %d", i, n))
		}
		images = append(images, img)
	}
	return images, rows, cols, nil
}

func readIDXLabels(path string) ([]int, error) {
	r, closeFn, size, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	dims, err := readHeader(r, path, idxLabelMagic, 1)
	if err != nil {
		return nil, err
	}
	n := dims[0]
	if err := checkPayload(path, size, 8, n, 1); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, errors.NewDataSourceError(path, "cannot read label data", err)
	}
	if len(raw) < n {
		return nil, errors.NewDataSourceError(path, "truncated label data",
			errors.Newf("%d of %d labels", len(raw), n))
	}
	labels := make([]int, len(raw))
	for i, v := range raw {
		labels[i] = int(v)
	}
	return labels, nil
}
