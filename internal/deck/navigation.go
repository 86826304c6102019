package deck

// LoopSentinel is the NavigationState.FileIdx value meaning "at the
// deck's recorded loop" rather than any playlist file (spec.md §4.2).
const LoopSentinel = -1

// NavigationState tracks the deck's position within the playlist.
type NavigationState struct {
	FolderIdx int
	FileIdx   int
}

// EncoderState is the input-thread-local view of the platter encoder:
// filtered angle, raw angle, and the offset rebased on every touch/track
// load event (spec.md §4.5).
type EncoderState struct {
	FilteredAngle int32
	RawAngle      int32
	Offset        int32

	// NumBlips counts consecutive rejected glitch readings (spec.md
	// §4.5 step 5): a spike is dropped while NumBlips < 2, accepted
	// (and the counter reset) on the third consecutive one.
	NumBlips int
}

// PlaylistSource is the minimal navigation surface a Deck needs; backed
// in practice by *playlist.Playlist, kept as an interface here so the
// deck package (core, spec.md dependency order: ... -> DeckRuntime ->
// ...) does not depend on the filesystem-walking playlist package
// (spec.md §1 lists playlist filesystem walk as an external
// collaborator).
type PlaylistSource interface {
	FolderCount() int
	FileCountInFolder(folderIdx int) int
	GetFile(folderIdx, fileIdx int) (path string, ok bool)
	GetRandomFile() (folderIdx, fileIdx int, path string, ok bool)
	HasNextFile(folderIdx, fileIdx int) bool
	HasPrevFile(folderIdx, fileIdx int) bool
	HasNextFolder(folderIdx int) bool
	HasPrevFolder(folderIdx int) bool
}
