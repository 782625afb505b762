package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner prints the startup banner. Skipped when stdout is not a
// terminal so JSON log consumers never see it.
func PrintBanner(name, version string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	width := termWidth()
	if width > 72 {
		width = 72
	}
	line := strings.Repeat("─", width)
	fmt.Println(colorCyan + line + colorReset)
	fmt.Printf("%s%s %s%s  (%s/%s, %s)\n",
		colorBold, strings.ToUpper(name), version, colorReset,
		runtime.GOOS, runtime.GOARCH, runtime.Version())
	fmt.Println(colorCyan + line + colorReset)
}
