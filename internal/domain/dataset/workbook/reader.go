package workbook

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnreadable is returned (wrapped in *ReadError) when no engine can parse a file
var ErrUnreadable = errors.New("workbook could not be read by any engine")

// Engine names, in the order they are reported
const (
	EngineExcelizeStream = "excelize-stream"
	EngineExcelize       = "excelize"
	EngineCSV            = "csv"
)

// ReadOptions selects what to load from a workbook
type ReadOptions struct {
	// Sheet to load; the first sheet in file order when empty
	Sheet string
}

// EngineAttempt is the outcome of one engine that failed
type EngineAttempt struct {
	Engine string
	Err    error
}

// ReadError lists every engine failure for a file
type ReadError struct {
	Path      string
	Ext       string
	Signature Signature
	Attempts  []EngineAttempt
}

func (e *ReadError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("[%s] %v", a.Engine, a.Err))
	}
	return fmt.Sprintf("failed to read workbook %s (ext=%q, signature=%s): %s",
		e.Path, e.Ext, e.Signature, strings.Join(parts, "; "))
}

// Unwrap exposes ErrUnreadable and each engine error to errors.Is/As
func (e *ReadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrUnreadable)
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

type engineFunc func(path string, opts ReadOptions) (*Workbook, error)

type engine struct {
	name string
	read engineFunc
}

var engines = map[string]engine{
	EngineExcelizeStream: {EngineExcelizeStream, readExcelStream},
	EngineExcelize:       {EngineExcelize, readExcelRows},
	EngineCSV:            {EngineCSV, readDelimited},
}

// EngineOrder returns the engines to try for a file, most likely first. A
// conclusive signature takes precedence over the extension.
func EngineOrder(ext string, sig Signature) []string {
	switch sig {
	case SignatureZip:
		return []string{EngineExcelizeStream, EngineExcelize, EngineCSV}
	case SignatureOLE:
		return []string{EngineExcelize, EngineCSV}
	}

	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm":
		return []string{EngineExcelizeStream, EngineExcelize, EngineCSV}
	case ".csv", ".txt":
		return []string{EngineCSV, EngineExcelize}
	default:
		return []string{EngineExcelize, EngineCSV}
	}
}

// Read loads one sheet of the workbook at path. Engines are tried in
// EngineOrder; the first success wins.
func Read(path string, opts ReadOptions) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(path))
	sig := SniffFile(path)

	rerr := &ReadError{Path: path, Ext: ext, Signature: sig}
	for _, name := range EngineOrder(ext, sig) {
		eng := engines[name]
		wb, err := eng.read(path, opts)
		if err != nil {
			rerr.Attempts = append(rerr.Attempts, EngineAttempt{Engine: eng.name, Err: err})
			continue
		}
		wb.Engine = eng.name
		wb.Signature = sig
		wb.Failed = rerr.Attempts
		return wb, nil
	}

	return nil, rerr
}
