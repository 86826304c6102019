// Package playlist walks a root directory into a flat, index-addressed
// collection of folders and audio files, replacing the original
// firmware's linked-list file list with contiguous slices (spec.md §9:
// "replaced by contiguous vectors with index-based next/prev
// navigation"). This is ambient filesystem plumbing around the core
// (spec.md §1 calls playlist filesystem walk an external collaborator);
// it exists so the Rig has something real to drive the deck navigation
// actions with.
package playlist

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.Intn(n)
}

// File is one audio file entry.
type File struct {
	FullPath    string
	GlobalIndex int
}

// Folder is a directory containing files, in load order.
type Folder struct {
	FullPath string
	Files    []File
}

var audioExt = map[string]bool{
	".wav": true, ".aiff": true, ".aif": true, ".flac": true,
	".mp3": true, ".ogg": true, ".m4a": true,
}

// Playlist is an immutable, index-addressed view of a directory tree
// built once at load time.
type Playlist struct {
	folders    []Folder
	allFiles   []*File
	totalFiles int
}

// Load scans base for subdirectories containing audio files (".cue"
// sidecars are excluded). Folders and files within a folder are sorted
// for a stable, reproducible navigation order.
func Load(base string) (*Playlist, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	p := &Playlist{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folderPath := filepath.Join(base, e.Name())
		files, ferr := os.ReadDir(folderPath)
		if ferr != nil {
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		var folder Folder
		for _, fe := range files {
			if fe.IsDir() {
				continue
			}
			if !audioExt[strings.ToLower(filepath.Ext(fe.Name()))] {
				continue
			}
			folder.Files = append(folder.Files, File{
				FullPath:    filepath.Join(folderPath, fe.Name()),
				GlobalIndex: p.totalFiles,
			})
			p.totalFiles++
		}
		if len(folder.Files) == 0 {
			continue
		}
		folder.FullPath = folderPath
		p.folders = append(p.folders, folder)
	}
	for fi := range p.folders {
		for i := range p.folders[fi].Files {
			p.allFiles = append(p.allFiles, &p.folders[fi].Files[i])
		}
	}
	return p, nil
}

// FolderCount returns the number of loaded folders.
func (p *Playlist) FolderCount() int { return len(p.folders) }

// TotalFiles returns the total number of files across all folders.
func (p *Playlist) TotalFiles() int { return p.totalFiles }

// FileCountInFolder returns the number of files within folderIdx, or 0
// if out of range.
func (p *Playlist) FileCountInFolder(folderIdx int) int {
	if folderIdx < 0 || folderIdx >= len(p.folders) {
		return 0
	}
	return len(p.folders[folderIdx].Files)
}

// FileAt returns the file entry at (folderIdx, fileIdx), or ok=false if
// out of range.
func (p *Playlist) FileAt(folderIdx, fileIdx int) (File, bool) {
	if folderIdx < 0 || folderIdx >= len(p.folders) {
		return File{}, false
	}
	f := p.folders[folderIdx].Files
	if fileIdx < 0 || fileIdx >= len(f) {
		return File{}, false
	}
	return f[fileIdx], true
}

// GetFile implements deck.PlaylistSource: it returns just the path,
// which is all a Deck needs to request a track import.
func (p *Playlist) GetFile(folderIdx, fileIdx int) (path string, ok bool) {
	f, ok := p.FileAt(folderIdx, fileIdx)
	if !ok {
		return "", false
	}
	return f.FullPath, true
}

// GetFileAtIndex returns the file at a global index, for random/shuffle
// access, or ok=false if index is out of range.
func (p *Playlist) GetFileAtIndex(index int) (File, bool) {
	if index < 0 || index >= len(p.allFiles) {
		return File{}, false
	}
	return *p.allFiles[index], true
}

// GetRandomFile implements deck.PlaylistSource: picks a uniformly random
// file across the whole playlist and reports its (folderIdx, fileIdx).
func (p *Playlist) GetRandomFile() (folderIdx, fileIdx int, path string, ok bool) {
	if p.totalFiles == 0 {
		return 0, 0, "", false
	}
	idx := randIntn(p.totalFiles)
	target := p.allFiles[idx]
	for fi, folder := range p.folders {
		for fileI, f := range folder.Files {
			if f.GlobalIndex == target.GlobalIndex {
				return fi, fileI, f.FullPath, true
			}
		}
	}
	return 0, 0, "", false
}

// HasNextFile reports whether fileIdx+1 exists within folderIdx.
func (p *Playlist) HasNextFile(folderIdx, fileIdx int) bool {
	return fileIdx+1 < p.FileCountInFolder(folderIdx)
}

// HasPrevFile reports whether fileIdx-1 exists within folderIdx.
func (p *Playlist) HasPrevFile(folderIdx, fileIdx int) bool {
	return fileIdx-1 >= 0 && fileIdx-1 < p.FileCountInFolder(folderIdx)
}

// HasNextFolder reports whether folderIdx+1 exists.
func (p *Playlist) HasNextFolder(folderIdx int) bool {
	return folderIdx+1 < len(p.folders)
}

// HasPrevFolder reports whether folderIdx-1 exists.
func (p *Playlist) HasPrevFolder(folderIdx int) bool {
	return folderIdx-1 >= 0
}
