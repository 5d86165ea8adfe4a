package domain

import (
	"fmt"
	"path/filepath"
)

// Paths holds the output locations for one root directory.
type Paths struct {
	RootDir string
}

// NewPaths creates a new Paths instance rooted under rootDir.
func NewPaths(rootDir string) *Paths {
	return &Paths{RootDir: filepath.Join(rootDir, "animatch")}
}

// MatchedPath is the JSON output file for one anime's reconciled roster.
func (p *Paths) MatchedPath(anilistID int) string {
	return filepath.Join(p.RootDir, fmt.Sprintf("matched-%d.json", anilistID))
}

// ReportPath is the YAML review file for characters left unmatched.
func (p *Paths) ReportPath(anilistID int) string {
	return filepath.Join(p.RootDir, fmt.Sprintf("unmatched-%d.yaml", anilistID))
}
