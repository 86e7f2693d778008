package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/planemux/internal/session"
)

// Discovery is the result of walking the input tree.
type Discovery struct {
	Files   []session.ChannelFile // Parsed channel files, sorted by path.
	Ignored []string              // Files with the extension whose names did not parse.
}

// Discover walks inputDir and collects files ending in ext (case-insensitive)
// whose names parse as channel files. Hidden directories are pruned.
func Discover(inputDir, ext string) (Discovery, error) {
	var d Discovery
	err := filepath.WalkDir(inputDir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if path != inputDir && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		if f, ok := session.ParseChannelFile(path, info.Size()); ok {
			d.Files = append(d.Files, f)
		} else {
			d.Ignored = append(d.Ignored, path)
		}
		return nil
	})
	if err != nil {
		return Discovery{}, err
	}
	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
	sort.Strings(d.Ignored)
	return d, nil
}
