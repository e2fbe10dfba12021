// SPDX-License-Identifier: MPL-2.0

package keg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReceiptFile is the receipt's name inside a keg.
const ReceiptFile = "INSTALL_RECEIPT.json"

// Receipt records how a keg was installed.
type Receipt struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	SHA256        string    `json:"sha256"`
	URL           string    `json:"url"`
	Files         []string  `json:"files"`
	InstalledAt   time.Time `json:"installed_at"`
	TapkitVersion string    `json:"tapkit_version"`
}

// ReceiptPath returns the receipt location for a keg rooted at dir.
func ReceiptPath(dir string) string { return filepath.Join(dir, ReceiptFile) }

// WriteReceipt stores r in the directory dir, which is either a keg or a
// staging directory about to become one.
func WriteReceipt(dir string, r *Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	if err := os.WriteFile(ReceiptPath(dir), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}

// Receipt reads the keg's install receipt.
func (k Keg) Receipt() (*Receipt, error) {
	data, err := os.ReadFile(ReceiptPath(k.Path))
	if err != nil {
		return nil, fmt.Errorf("reading receipt for %s %s: %w", k.Name, k.Version, err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ReceiptPath(k.Path), err)
	}
	return &r, nil
}
