// Package filewriter writes build output files along with
// their precompressed variants.
package filewriter

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
)

// minibundle.yml -> precompress:
type CompressConfig struct {
	Methods    []string `yaml:"methods"`
	Extensions []string `yaml:"extensions"`
}

type Compressor struct {
	Ext string
	New func(w io.Writer) io.WriteCloser
}

var gzipCompressor = &Compressor{
	Ext: "gz",
	New: func(w io.Writer) io.WriteCloser {
		z, err := gzip.NewWriterLevel(w, gzipLevel)
		if err != nil {
			panic(err.Error()) // shouldn't happen
		}
		return z
	},
}

var brotliCompressor = &Compressor{
	Ext: "br",
	New: func(w io.Writer) io.WriteCloser {
		return brotli.NewWriterLevel(w, brotliLevel)
	},
}

const (
	gzipLevel   = 9
	brotliLevel = 11
)

type FileWriter struct {
	compressedExtensions map[string]struct{}
	compressors          []*Compressor
}

func New(c *CompressConfig) (*FileWriter, error) {
	extensions := make(map[string]struct{})
	compressors := make([]*Compressor, 0)
	if c != nil {
		for _, v := range c.Extensions {
			extensions["."+v] = struct{}{}
		}
		for _, v := range c.Methods {
			switch v {
			case "gzip":
				compressors = append(compressors, gzipCompressor)
			case "br":
				compressors = append(compressors, brotliCompressor)
			default:
				return nil, fmt.Errorf("unknown compression method: %q", v)
			}
		}
	}
	return &FileWriter{
		compressedExtensions: extensions,
		compressors:          compressors,
	}, nil
}

func (f *FileWriter) numberOfCompressors(ext string) int {
	if _, ok := f.compressedExtensions[ext]; ok {
		return len(f.compressors)
	}
	return 0
}

// CompressedNames returns names of precompressed files
// written for filename.
func (f *FileWriter) CompressedNames(filename string) []string {
	if f.numberOfCompressors(filepath.Ext(filename)) == 0 {
		return nil
	}
	names := make([]string, len(f.compressors))
	for i, c := range f.compressors {
		names[i] = filename + "." + c.Ext
	}
	return names
}

// WriteFile writes data to filename, creating directories if needed,
// and concurrently writes compressed copies for configured extensions.
func (f *FileWriter) WriteFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	nwriters := 1 + f.numberOfCompressors(filepath.Ext(filename))
	done := make(chan error, nwriters)
	go func() {
		done <- os.WriteFile(filename, data, 0644)
	}()
	if nwriters > 1 {
		for _, c := range f.compressors {
			c := c
			go func() {
				done <- writeCompressed(c, filename+"."+c.Ext, data)
			}()
		}
	}
	var lastErr error
	for i := 0; i < nwriters; i++ {
		err := <-done
		if err != nil && lastErr == nil {
			lastErr = err
		}
	}
	return lastErr
}

func writeCompressed(c *Compressor, outfile string, data []byte) (err error) {
	out, err := os.OpenFile(outfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(outfile)
		}
	}()
	z := c.New(out)
	if _, err = z.Write(data); err != nil {
		z.Close()
		return err
	}
	return z.Close()
}
