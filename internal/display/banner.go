package display

import (
	"fmt"
	"io"

	"github.com/backmassage/planemux/internal/term"
)

const banner = `       _
 _ __ | | __ _ _ __   ___ _ __ ___  _   ___  __
| '_ \| |/ _` + "`" + ` | '_ \ / _ \ '_ ` + "`" + ` _ \| | | \ \/ /
| |_) | | (_| | | | |  __/ | | | | | |_| |>  <
| .__/|_|\__,_|_| |_|\___|_| |_| |_|\__,_/_/\_\
|_|
`

// PrintBanner writes the ASCII art banner to w in magenta when colors are
// enabled.
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, term.Paint(term.Magenta, banner))
	if term.Enabled() {
		fmt.Fprintln(w)
	}
}
