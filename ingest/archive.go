package ingest

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// maxRecordBytes bounds a single decompressed record file.
const maxRecordBytes = 16 << 20

// dataDir is the archive directory record files are read from.
const dataDir = "data"

var errNoRecords = errors.New("no record files under a data/ directory")

// recordFile is a record file extracted from an archive.
type recordFile struct {
	Name string
	Data []byte
}

// readArchive extracts the record files of a zip or (gzipped) tar archive,
// sorted by path.
func readArchive(data []byte) ([]recordFile, error) {
	var (
		files []recordFile
		err   error
	)
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		files, err = readZip(data)
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		files, err = readTarGz(data)
	case len(data) > 262 && string(data[257:262]) == "ustar":
		files, err = readTar(bytes.NewReader(data))
	default:
		return nil, errors.New("not a zip or tar archive")
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoRecords
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func readZip(data []byte) ([]recordFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var files []recordFile
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isRecordFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		b, err := readRecord(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		files = append(files, recordFile{Name: f.Name, Data: b})
	}
	return files, nil
}

func readTarGz(data []byte) ([]recordFile, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return readTar(zr)
}

func readTar(r io.Reader) ([]recordFile, error) {
	tr := tar.NewReader(r)
	var files []recordFile
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || !isRecordFile(hdr.Name) {
			continue
		}
		b, err := readRecord(tr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", hdr.Name, err)
		}
		files = append(files, recordFile{Name: hdr.Name, Data: b})
	}
}

func readRecord(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxRecordBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxRecordBytes {
		return nil, fmt.Errorf("record file exceeds %d bytes", maxRecordBytes)
	}
	return b, nil
}

// isRecordFile reports whether name is a .yaml, .yml or .json file below a
// data/ directory. Archives of a repository usually nest everything under
// one top-level directory, so data/ may appear at any depth.
func isRecordFile(name string) bool {
	switch path.Ext(name) {
	case ".yaml", ".yml", ".json":
	default:
		return false
	}
	dirs := strings.Split(path.Dir(path.Clean(name)), "/")
	for _, d := range dirs {
		if d == dataDir {
			return true
		}
	}
	return false
}
