package diagfmt

import (
	"io"

	"refbind/internal/diag"
	"refbind/internal/source"
)

// Short prints one line per diagnostic in the golden form
// "severity CODE path:line:col message".
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, withNotes bool) error {
	out := diag.FormatGoldenDiagnostics(bag.Items(), fs, withNotes)
	if out == "" {
		return nil
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
