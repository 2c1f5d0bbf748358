// Package snapshot persists a VM execution snapshot to and from CBOR, for
// offline inspection of a run after it halts (most usefully, after it halts
// with an error). It is strictly a debugging aid: the VM core has no
// resumption story, and loading a snapshot back does not create a runnable
// VM, only the data a tool needs to show what the VM's state was.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/slotvm/pkg/bytecode"
)

// Encode serializes a VM snapshot to CBOR bytes.
func Encode(s bytecode.Snapshot) ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses CBOR bytes produced by Encode.
func Decode(data []byte) (bytecode.Snapshot, error) {
	var s bytecode.Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return bytecode.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// WriteFile encodes s and writes it to path.
func WriteFile(path string, s bytecode.Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes a snapshot previously written by WriteFile.
func ReadFile(path string) (bytecode.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bytecode.Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return Decode(data)
}
