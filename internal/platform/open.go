package platform

import (
	"fmt"
	"os"

	"github.com/skratchdot/open-golang/open"
)

// startOpener hands a path to the desktop's default handler without waiting.
var startOpener = open.Start

// OpenFolder opens path in the desktop file manager without waiting for it.
func OpenFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := startOpener(path); err != nil {
		return fmt.Errorf("failed to start file manager: %w", err)
	}
	return nil
}
