package dataset

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dictd/dictd/internal/errdef"
)

// MainVolumeCoverage reports, for one merge-volume number, whether the
// dataset ships that volume as a single merge{NN}.chm file, as one or
// more merge{NN}-*.chm split files, or is missing it entirely.
type MainVolumeCoverage struct {
	Volume         int  `json:"volume"`
	HasMainFile    bool `json:"hasMainFile"`
	SplitFileCount int  `json:"splitFileCount"`
	Covered        bool `json:"covered"`
}

// Summary is the diagnostic report produced by `dictd dataset
// summary`: file/directory counts, byte totals, per-extension counts,
// merge-volume coverage, and a handful of flags a caller can use to
// sanity-check a dataset before building it.
type Summary struct {
	ZipPath                string               `json:"zipPath"`
	TotalEntries           int                  `json:"totalEntries"`
	TotalFiles             int                  `json:"totalFiles"`
	TotalDirs              int                  `json:"totalDirs"`
	CHMCount               int                  `json:"chmCount"`
	LNKCount               int                  `json:"lnkCount"`
	TXTCount               int                  `json:"txtCount"`
	UncompressedBytes      uint64               `json:"uncompressedBytes"`
	CompressedBytes        uint64               `json:"compressedBytes"`
	CompressionRatio       float64              `json:"compressionRatio"`
	HasMasterCHM           bool                 `json:"hasMasterChm"`
	HasReadmeTXT           bool                 `json:"hasReadmeTxt"`
	MissingMainVolumes     []int                `json:"missingMainVolumes"`
	MissingMainFilesOnly   []int                `json:"missingMainFilesOnly"`
	MainVolumeCoverage     []MainVolumeCoverage `json:"mainVolumeCoverage"`
	ExtensionCounts        map[string]int       `json:"extensionCounts"`
	SampleCHMFiles         []string             `json:"sampleChmFiles"`
}

const maxMergeVolume = 36

// BuildMainVolumeCoverage checks, for merge volumes 1 through 36,
// whether the dataset has an exact merge{NN}.chm file and/or one or
// more merge{NN}-*.chm split parts.
func BuildMainVolumeCoverage(names []string) []MainVolumeCoverage {
	lowerNames := make([]string, len(names))
	for i, n := range names {
		lowerNames[i] = strings.ToLower(basename(n))
	}

	out := make([]MainVolumeCoverage, 0, maxMergeVolume)
	for n := 1; n <= maxMergeVolume; n++ {
		mainFile := fmt.Sprintf("merge%02d.chm", n)
		splitPrefix := fmt.Sprintf("merge%02d-", n)
		hasMain := false
		splitCount := 0
		for _, ln := range lowerNames {
			if ln == mainFile {
				hasMain = true
			} else if strings.HasPrefix(ln, splitPrefix) && strings.HasSuffix(ln, ".chm") {
				splitCount++
			}
		}
		out = append(out, MainVolumeCoverage{
			Volume:         n,
			HasMainFile:    hasMain,
			SplitFileCount: splitCount,
			Covered:        hasMain || splitCount > 0,
		})
	}
	return out
}

// SummarizeZip walks every entry of zipPath and produces a Summary.
func SummarizeZip(zipPath string) (*Summary, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errdef.NewResourceError("SummarizeZip", zipPath, err)
	}
	defer zr.Close()

	s := &Summary{
		ZipPath:         zipPath,
		ExtensionCounts: make(map[string]int),
	}

	var names []string
	var sampleCHM []string

	for _, f := range zr.File {
		s.TotalEntries++
		if f.FileInfo().IsDir() {
			s.TotalDirs++
			continue
		}
		s.TotalFiles++
		s.UncompressedBytes += f.UncompressedSize64
		s.CompressedBytes += f.CompressedSize64

		names = append(names, f.Name)
		base := basename(f.Name)
		lowerBase := strings.ToLower(base)
		ext := ""
		if idx := strings.LastIndexByte(lowerBase, '.'); idx >= 0 {
			ext = lowerBase[idx+1:]
		}
		s.ExtensionCounts[ext]++

		switch ext {
		case "chm":
			s.CHMCount++
			if len(sampleCHM) < 8 {
				sampleCHM = append(sampleCHM, f.Name)
			}
		case "lnk":
			s.LNKCount++
		case "txt":
			s.TXTCount++
		}

		if lowerBase == "master.chm" {
			s.HasMasterCHM = true
		}
		if lowerBase == "readme.txt" {
			s.HasReadmeTXT = true
		}
	}

	s.SampleCHMFiles = sampleCHM
	s.MainVolumeCoverage = BuildMainVolumeCoverage(names)
	for _, c := range s.MainVolumeCoverage {
		if !c.Covered {
			s.MissingMainVolumes = append(s.MissingMainVolumes, c.Volume)
		} else if !c.HasMainFile && c.SplitFileCount > 0 {
			s.MissingMainFilesOnly = append(s.MissingMainFilesOnly, c.Volume)
		}
	}
	sort.Ints(s.MissingMainVolumes)
	sort.Ints(s.MissingMainFilesOnly)

	if s.UncompressedBytes > 0 {
		s.CompressionRatio = float64(s.CompressedBytes) / float64(s.UncompressedBytes)
	}

	return s, nil
}

// ResolveZipPath resolves a user-supplied dataset path: it is returned
// as-is if absolute and present, and made absolute if present relative
// to the current directory; otherwise each ancestor of the working directory is
// tried in turn. Returns the attempted candidates in the error when
// none exist.
func ResolveZipPath(input string) (string, error) {
	if filepath.IsAbs(input) {
		if _, err := os.Stat(input); err == nil {
			return input, nil
		}
	}
	if _, err := os.Stat(input); err == nil {
		abs, err := filepath.Abs(input)
		if err == nil {
			return abs, nil
		}
		return input, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errdef.NewResourceError("ResolveZipPath", input, err)
	}

	var attempted []string
	dir := cwd
	for {
		candidate := filepath.Join(dir, input)
		attempted = append(attempted, candidate)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errdef.NewResourceError("ResolveZipPath", input,
		fmt.Errorf("not found, tried: %s", strings.Join(attempted, ", ")))
}
