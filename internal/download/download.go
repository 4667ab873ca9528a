// Package download keeps the offline library in step with the remote export:
// it tracks one archive per title, queues stale ones and transfers them one at
// a time.
package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"sefaria/internal/entity"
)

var (
	ErrTransferFailed       = errors.New("transfer failed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrUnknownPackage       = errors.New("unknown package")
	ErrDownloadInProgress   = errors.New("download in progress")
)

// CompleteLibrary is the root package covering every title.
const CompleteLibrary = "COMPLETE LIBRARY"

// Package is a downloadable group of titles: every book whose category path
// starts with Categories.
type Package struct {
	Name       string   `json:"en"`
	HeName     string   `json:"he,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Categories []string `json:"categories"`
}

type UpdateResult struct {
	TotalNewOrChanged int      `json:"total_new_or_changed"`
	NewPackages       []string `json:"new_packages"`
}

// FailureAction is the user's answer to a failed transfer.
type FailureAction int

const (
	Pause FailureAction = iota
	Retry
)

// FailureHandler decides what happens to the queue after a transfer fails.
type FailureHandler interface {
	OnTransferFailed(title string, err error) FailureAction
}

type FailureHandlerFunc func(title string, err error) FailureAction

func (f FailureHandlerFunc) OnTransferFailed(title string, err error) FailureAction {
	return f(title, err)
}

// ProgressFunc receives byte counts of the running transfer.
type ProgressFunc func(p entity.Progress)

// DefaultPackages derives packages from the table of contents: the complete
// library plus one package per top level category.
func DefaultPackages(toc []entity.TOCNode) []Package {
	out := []Package{{Name: CompleteLibrary, HeName: "כל הספרייה"}}
	seen := make(map[string]bool)
	for _, node := range toc {
		if node.Category == "" || seen[node.Category] {
			continue
		}
		seen[node.Category] = true
		out = append(out, Package{
			Name:       node.Category,
			HeName:     node.HeCategory,
			Parent:     CompleteLibrary,
			Categories: []string{node.Category},
		})
	}
	return out
}

// LoadPackages reads a package list written as a JSON array.
func LoadPackages(path string) ([]Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pkgs []Package
	if err := json.NewDecoder(f).Decode(&pkgs); err != nil {
		return nil, fmt.Errorf("decode packages: %w", err)
	}
	return pkgs, nil
}
