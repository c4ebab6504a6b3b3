// Package source holds the source model shared by the whole pipeline:
// locations, diagnostics and literal values.
package source

import "fmt"

// Location identifies a point in a source file. Lines and columns are
// 1-based.
type Location struct {
	Filename string
	Line     int
	Column   int
}

func (l Location) String() string {
	if l.Filename == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}
