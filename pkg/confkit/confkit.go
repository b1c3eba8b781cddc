package confkit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ResolvePath expands environment references in file and anchors relative
// results at base.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) || base == "" {
		return file
	}
	return filepath.Join(base, file)
}

// Section is a block of the main config that lives in its own yaml file.
// Only File is read from the main config; Value is filled by Hydrate.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Loaded reports whether Hydrate produced a value.
func (s *Section[T]) Loaded() bool {
	return s.Value != nil
}

// Hydrate runs loader on File resolved against base. An empty File leaves
// the section unset.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("confkit: %s produced no value", p)
	}
	s.File, s.Value = p, v
	return nil
}

// LoadYAML decodes the yaml file at path into a fresh T and hands it to
// prepare for defaults and validation. prepare may be nil.
func LoadYAML[T any](path string, prepare func(*T) error) (*T, error) {
	LoadDotenvOnce()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeYAML(f, prepare)
}

// DecodeYAML is LoadYAML for an already open reader. An empty document
// decodes to the zero T.
func DecodeYAML[T any](r io.Reader, prepare func(*T) error) (*T, error) {
	var v T
	if err := yaml.NewDecoder(r).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if prepare != nil {
		if err := prepare(&v); err != nil {
			return nil, err
		}
	}
	return &v, nil
}
