package bus

import (
	"fmt"
	"os"
)

// syncDir fsyncs a directory so a rename/append inside it survives a crash,
// the same belt-and-suspenders durability step the teacher's
// cmd/ao/rpi_ledger.go applies after every ledger append.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("bus: open dir for fsync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("bus: fsync dir: %w", err)
	}
	return nil
}
