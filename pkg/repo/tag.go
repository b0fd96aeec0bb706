package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
)

// ErrTagExists reports creation of a tag name already in use.
var ErrTagExists = errors.New("tag already exists")

const tagsPrefix = "refs/tags/"

// TagInfo is one tag in a listing. Hash is what the ref holds: the
// commit for a lightweight tag, the tag object for an annotated one.
type TagInfo struct {
	Name      string
	Hash      object.Hash
	Annotated bool
}

// CreateTag creates a lightweight tag: a ref under refs/tags/ holding
// the target commit directly. Empty target means the current HEAD.
func (r *Repo) CreateTag(name string, target object.Hash) error {
	commitHash, err := r.tagTarget(name, target)
	if err != nil {
		return err
	}
	return r.createTagRef(name, commitHash)
}

// CreateAnnotatedTag writes a tag object carrying tagger, timestamp,
// and message, and points the ref at the tag object rather than the
// commit.
func (r *Repo) CreateAnnotatedTag(name string, target object.Hash, tagger, message string) error {
	commitHash, err := r.tagTarget(name, target)
	if err != nil {
		return err
	}

	tagHash, err := r.Store.WriteTag(&object.TagObj{
		TargetHash: commitHash,
		TargetType: object.TypeCommit,
		Name:       name,
		Tagger:     tagger,
		Timestamp:  time.Now().Unix(),
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	return r.createTagRef(name, tagHash)
}

// DeleteTag removes a tag ref. The tag object of an annotated tag
// stays in the store until GC collects it.
func (r *Repo) DeleteTag(name string) error {
	if err := r.DeleteRef(tagsPrefix + name); err != nil {
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ListTags returns all tags sorted by name.
func (r *Repo) ListTags() ([]TagInfo, error) {
	refs, err := r.ListRefs(tagsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags := make([]TagInfo, 0, len(refs))
	for name, h := range refs {
		objType, _, err := r.Store.Read(h)
		if err != nil {
			return nil, fmt.Errorf("list tags: read %s: %w", h, err)
		}
		tags = append(tags, TagInfo{
			Name:      strings.TrimPrefix(name, tagsPrefix),
			Hash:      h,
			Annotated: objType == object.TypeTag,
		})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (r *Repo) tagTarget(name string, target object.Hash) (object.Hash, error) {
	if target == "" {
		h, err := r.ResolveRef("HEAD")
		if err != nil {
			return "", fmt.Errorf("create tag %q: %w", name, err)
		}
		target = h
	}
	if _, err := r.Store.ReadCommit(target); err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	return target, nil
}

func (r *Repo) createTagRef(name string, h object.Hash) error {
	if name == "" {
		return errors.New("tag name is empty")
	}
	if err := r.UpdateRefCAS(tagsPrefix+name, h, ""); err != nil {
		if errors.Is(err, ErrRefConflict) {
			return fmt.Errorf("create tag %q: %w", name, ErrTagExists)
		}
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	return nil
}
