package object

// Hash is a 64-character hex-encoded SHA-256 digest. The hash of an
// object is computed over its canonical envelope "type len\0payload",
// so two objects with identical content always share a hash.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. ChildHash names a blob for
// file modes and a subtree for the directory mode.
type TreeEntry struct {
	Name      string
	Mode      string
	ChildHash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == TreeModeDir }

// TreeObj holds a list of tree entries sorted by Name.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj represents a commit pointing to a tree with metadata.
// Parents are ordered; merge commits carry two or more.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Committer string
	Timestamp int64
	Signature string
	Message   string
}

// TagObj is an annotated tag pointing at another stored object.
type TagObj struct {
	TargetHash Hash
	TargetType ObjectType
	Name       string
	Tagger     string
	Timestamp  int64
	Message    string
}
