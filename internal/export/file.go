/*
Package export writes findings to CSV and plain-text files.

Files are written to "<path>.tmp" and renamed into place only after every byte has been
flushed, so an interrupted run never leaves a half-written export behind. A ".gz" suffix on
the destination enables gzip compression.
*/
package export

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBufferSize is the write buffer in front of each output file.
const DefaultBufferSize = 64 * 1024

// fileWriter buffers writes to a temporary file and renames it on Commit.
type fileWriter struct {
	writer    *bufio.Writer
	gzWriter  *gzip.Writer
	file      *os.File
	filePath  string
	finalPath string
}

func create(path string) (*fileWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}

	fw := &fileWriter{file: file, filePath: tmp, finalPath: path}
	if strings.HasSuffix(path, ".gz") {
		fw.gzWriter, _ = gzip.NewWriterLevel(file, gzip.BestSpeed)
		fw.writer = bufio.NewWriterSize(fw.gzWriter, DefaultBufferSize)
	} else {
		fw.writer = bufio.NewWriterSize(file, DefaultBufferSize)
	}
	return fw, nil
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	return fw.writer.Write(p)
}

// Commit flushes every layer, closes the file and renames it to its final path.
func (fw *fileWriter) Commit() error {
	err := fw.writer.Flush()
	if fw.gzWriter != nil {
		err = errors.Join(err, fw.gzWriter.Close())
	}
	err = errors.Join(err, fw.file.Close())
	if err != nil {
		_ = os.Remove(fw.filePath)
		return fmt.Errorf("finish %s: %w", fw.finalPath, err)
	}
	if err := os.Rename(fw.filePath, fw.finalPath); err != nil {
		_ = os.Remove(fw.filePath)
		return fmt.Errorf("rename %s: %w", fw.filePath, err)
	}
	return nil
}

// Abort discards the temporary file.
func (fw *fileWriter) Abort() {
	if fw.gzWriter != nil {
		_ = fw.gzWriter.Close()
	}
	_ = fw.file.Close()
	_ = os.Remove(fw.filePath)
}

// save runs write against a fresh temporary file and commits it.
func save(path string, write func(io.Writer) error) error {
	fw, err := create(path)
	if err != nil {
		return err
	}
	if err := write(fw); err != nil {
		fw.Abort()
		return err
	}
	return fw.Commit()
}
