package source

type (
	// FileID uniquely identifies a unit file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a unit file.
	FileFlags uint8
)

const (
	// FileVirtual marks a unit added from memory (tests, stdin, the resolve command).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single unit file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of '\n'
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a unit file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
