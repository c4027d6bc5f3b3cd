package scanner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

// ReadMbox calls fn with the raw bytes of every message in an mbox archive,
// numbering messages from 1. Returning an error from fn stops the read.
func ReadMbox(path string, fn func(index int, raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open mbox: %w", err)
	}
	defer f.Close()

	r := mbox.NewReader(f)
	for i := 1; ; i++ {
		msg, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read mbox message %d: %w", i, err)
		}

		raw, err := io.ReadAll(msg)
		if err != nil {
			return fmt.Errorf("failed to read mbox message %d: %w", i, err)
		}
		if err := fn(i, raw); err != nil {
			return err
		}
	}
}
