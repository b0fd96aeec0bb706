package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Serialization is the identity of an object: identical structures must
// always produce identical bytes, and decoding enforces the structural
// invariants so a digest can never name a malformed object.

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	mode hash name
//
// where mode is a Git-compatible mode string (40000, 100644, 100755).
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s %s\n", mode, string(e.ChildHash), e.Name)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj from its serialized form. Entries out
// of sorted order, duplicate names, unknown modes, and malformed hashes
// are corruption: re-marshaling a decoded tree must reproduce the input
// byte for byte.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	prevName := ""
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, corruptf(TypeTree, "malformed entry %q", line)
		}
		mode, hash, name := parts[0], Hash(parts[1]), parts[2]
		switch mode {
		case TreeModeDir, TreeModeFile, TreeModeExecutable:
		default:
			return nil, corruptf(TypeTree, "unknown mode %q in entry %q", mode, line)
		}
		if !ValidHash(hash) {
			return nil, corruptf(TypeTree, "invalid hash in entry %q", line)
		}
		if name == "" || strings.Contains(name, "/") {
			return nil, corruptf(TypeTree, "invalid entry name %q", name)
		}
		if len(tr.Entries) > 0 {
			if name == prevName {
				return nil, corruptf(TypeTree, "duplicate entry name %q", name)
			}
			if name < prevName {
				return nil, corruptf(TypeTree, "entries not sorted: %q after %q", name, prevName)
			}
		}
		prevName = name
		tr.Entries = append(tr.Entries, TreeEntry{
			Name:      name,
			Mode:      mode,
			ChildHash: hash,
		})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more, in order)
//	author A
//	committer C  (omitted when equal to author)
//	timestamp T
//	signature S  (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	if c.Committer != "" && c.Committer != c.Author {
		fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	}
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form. A commit
// without a tree digest is corrupt.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, corruptf(TypeCommit, "missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, corruptf(TypeCommit, "malformed header line %q", line)
		}
		switch key {
		case "tree":
			if !ValidHash(Hash(val)) {
				return nil, corruptf(TypeCommit, "invalid tree hash %q", val)
			}
			c.TreeHash = Hash(val)
		case "parent":
			if !ValidHash(Hash(val)) {
				return nil, corruptf(TypeCommit, "invalid parent hash %q", val)
			}
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "committer":
			c.Committer = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, corruptf(TypeCommit, "bad timestamp %q", val)
			}
			c.Timestamp = ts
		case "signature":
			c.Signature = val
		default:
			return nil, corruptf(TypeCommit, "unknown header key %q", key)
		}
	}
	if c.TreeHash == "" {
		return nil, corruptf(TypeCommit, "missing tree digest")
	}
	if c.Committer == "" {
		c.Committer = c.Author
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated TagObj:
//
//	object H
//	type T
//	tag NAME
//	tagger A
//	timestamp T
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", string(t.TargetHash))
	fmt.Fprintf(&buf, "type %s\n", string(t.TargetType))
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	fmt.Fprintf(&buf, "timestamp %d\n", t.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a TagObj from its serialized form.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, corruptf(TypeTag, "missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	t := &TagObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, corruptf(TypeTag, "malformed header line %q", line)
		}
		switch key {
		case "object":
			if !ValidHash(Hash(val)) {
				return nil, corruptf(TypeTag, "invalid target hash %q", val)
			}
			t.TargetHash = Hash(val)
		case "type":
			switch ObjectType(val) {
			case TypeBlob, TypeTree, TypeCommit, TypeTag:
				t.TargetType = ObjectType(val)
			default:
				return nil, corruptf(TypeTag, "unknown target type %q", val)
			}
		case "tag":
			t.Name = val
		case "tagger":
			t.Tagger = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, corruptf(TypeTag, "bad timestamp %q", val)
			}
			t.Timestamp = ts
		default:
			return nil, corruptf(TypeTag, "unknown header key %q", key)
		}
	}
	if t.TargetHash == "" {
		return nil, corruptf(TypeTag, "missing target digest")
	}
	return t, nil
}
