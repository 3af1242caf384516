package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mlprep/pkg/errors"
)

type fittedChecker interface {
	IsFitted() bool
}

type named interface {
	Name() string
}

// SaveModel gob-encodes a fitted artifact or transformer to filename,
// creating missing parent directories. The bytes land in a sibling temp
// file first and are renamed into place, so a failed encode never leaves a
// truncated model behind.
//
//	if err := model.SaveModel(artifact, "out/buoy.gob"); err != nil { ... }
func SaveModel(m interface{}, filename string) error {
	if fc, ok := m.(fittedChecker); ok && !fc.IsFitted() {
		name := "model"
		if n, ok := m.(named); ok {
			name = n.Name()
		}
		return errors.NewNotFittedError(name, "SaveModel")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create model directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer os.Remove(tmp.Name())

	if err := SaveModelToWriter(m, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "flush %s", filename)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), filename), "write %s", filename)
}

// LoadModel decodes filename into m, which must be a pointer.
func LoadModel(m interface{}, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open %s", filename)
	}
	defer f.Close()
	return LoadModelFromReader(m, f)
}

// SaveModelToWriter gob-encodes m to w without the fitted check.
func SaveModelToWriter(m interface{}, w io.Writer) error {
	return errors.Wrap(gob.NewEncoder(w).Encode(m), "encode model")
}

// LoadModelFromReader decodes m from r.
func LoadModelFromReader(m interface{}, r io.Reader) error {
	return errors.Wrap(gob.NewDecoder(r).Decode(m), "decode model")
}
