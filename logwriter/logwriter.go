// Package logwriter wraps an io.Writer for alias-hunter logging.
//
package logwriter // "github.com/nickng/alias-hunter/logwriter"

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/fatih/color"
)

// Writer is a log writer and its configurations.
type Writer struct {
	io.Writer

	LogFile       string
	EnableLogging bool
	EnableColour  bool
	Cleanup       func()
}

// NewFile creates a new file writer. An empty logfile name means stdout.
func NewFile(logfile string, enableLogging, enableColour bool) *Writer {
	return &Writer{
		LogFile:       logfile,
		EnableLogging: enableLogging,
		EnableColour:  enableColour,
	}
}

// New creates a new log writer over an existing io.Writer.
func New(w io.Writer, enableLogging, enableColour bool) *Writer {
	return &Writer{
		Writer:        w,
		EnableLogging: enableLogging,
		EnableColour:  enableColour,
	}
}

// Create initialises the writer. Cleanup must be called after use to flush
// and close the underlying file, if any.
func (w *Writer) Create() error {
	color.NoColor = !w.EnableColour
	w.Cleanup = func() {}
	if !w.EnableLogging {
		w.Writer = ioutil.Discard
		return nil
	}
	if w.Writer != nil {
		return nil
	}
	if w.LogFile == "" {
		w.Writer = os.Stdout
		return nil
	}
	f, err := os.Create(w.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create log file: %s", err)
	}
	bufWriter := bufio.NewWriter(f)
	w.Writer = bufWriter
	w.Cleanup = func() {
		if err := bufWriter.Flush(); err != nil {
			log.Printf("flush: %s", err)
		}
		if err := f.Close(); err != nil {
			log.Printf("close: %s", err)
		}
	}
	return nil
}
