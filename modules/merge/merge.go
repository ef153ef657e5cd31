// Package merge implements the server-side three-way merge: reconciling a
// base, source, and target tree path-by-path, delegating textual conflicts
// to modules/diferenco, and rebuilding the resulting tree. Rename detection
// is intentionally absent: a rename is observed as an unrelated delete at
// the old path and add at the new one, exactly as if two independent edits
// had occurred.
package merge

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antgroup/forgecore/modules/diferenco"
	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/modules/plumbing/filemode"
)

// mergeLimit is the per-side size above which a file is merged as if it
// were binary, regardless of its detected content type: diffing huge blobs
// line-by-line is never worth the cost for a conflict-marker merge.
const mergeLimit = 50 << 20

// Kind classifies why a path could not be reconciled automatically.
type Kind int

const (
	// ContentConflict: both sides changed the file's text differently.
	ContentConflict Kind = iota
	// BinaryConflict: at least one side's content isn't text, or either
	// side exceeds mergeLimit.
	BinaryConflict
	// DistinctModesConflict: the content is identical but the two sides
	// recorded different file modes.
	DistinctModesConflict
	// ModifyDeleteConflict: one side deleted the path while the other
	// modified it.
	ModifyDeleteConflict
)

func (k Kind) String() string {
	switch k {
	case ContentConflict:
		return "content"
	case BinaryConflict:
		return "binary"
	case DistinctModesConflict:
		return "distinct modes"
	case ModifyDeleteConflict:
		return "modify/delete"
	default:
		return "unknown"
	}
}

// Entry describes one side of a Conflict.
type Entry struct {
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// Conflict records a single path that step 6 could not reconcile
// automatically.
type Conflict struct {
	Path                     string
	Kind                     Kind
	Ancestor, Source, Target *Entry
}

// Database is the subset of odb.Database the merge engine needs: reading
// the blobs it compares and writing the blobs/trees it invents.
type Database interface {
	Blob(oid plumbing.Hash) (*object.Blob, error)
	Tree(oid plumbing.Hash) (*object.Tree, error)
	WriteBlob(b *object.Blob) (plumbing.Hash, error)
	WriteTree(t *object.Tree) (plumbing.Hash, error)
}

// Options configures a merge. SourceLabel/TargetLabel are used only in
// conflict-marker text; they default to "source"/"target".
type Options struct {
	SourceLabel string
	TargetLabel string
}

func (o *Options) sourceLabel() string {
	if o.SourceLabel != "" {
		return o.SourceLabel
	}
	return "source"
}

func (o *Options) targetLabel() string {
	if o.TargetLabel != "" {
		return o.TargetLabel
	}
	return "target"
}

// Result is the outcome of MergeTrees: the reconciled tree hash (valid even
// when Conflicts is non-empty — callers that must not persist a conflicted
// merge should check len(Conflicts) before advancing any ref) and the list
// of paths that needed a conflict marker or could not be resolved.
type Result struct {
	Tree      plumbing.Hash
	Conflicts []*Conflict
	Messages  []string
}

// MergeTrees reconciles the source and target trees against their common
// base, path by path (spec §4.G steps 5-7), and writes the resulting tree.
// It never touches refs; the caller decides what to do with a non-empty
// Conflicts list.
func MergeTrees(db Database, base, source, target plumbing.Hash, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	baseMap, err := object.Flatten(base, db.Tree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten base tree: %w", err)
	}
	sourceMap, err := object.Flatten(source, db.Tree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten source tree: %w", err)
	}
	targetMap, err := object.Flatten(target, db.Tree)
	if err != nil {
		return nil, fmt.Errorf("merge: flatten target tree: %w", err)
	}

	paths := unionPaths(baseMap, sourceMap, targetMap)
	result := &Result{}
	merged := object.NewPathMap()

	for _, p := range paths {
		b, _ := baseMap.Get(p)
		s, _ := sourceMap.Get(p)
		t, _ := targetMap.Get(p)

		entry, conflict, messages, err := reconcile(db, p, b, s, t, opts)
		if err != nil {
			return nil, fmt.Errorf("merge: reconcile %q: %w", p, err)
		}
		result.Messages = append(result.Messages, messages...)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, conflict)
		}
		if entry != nil {
			merged.Put(p, entry)
		}
	}

	tree, err := object.Build(merged, db.WriteTree)
	if err != nil {
		return nil, fmt.Errorf("merge: build merged tree: %w", err)
	}
	result.Tree = tree
	return result, nil
}

func unionPaths(maps ...*object.PathMap) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range maps {
		it := m.Iterator()
		for it.Next() {
			p := it.Key().(string)
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}

func entryEqual(a, b *object.PathEntry) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

// reconcile applies spec §4.G step 6's classification to a single path's
// three-way state, returning the entry to keep in the merged tree (nil
// meaning "deleted"), a conflict record if one applies, and any
// informational messages.
func reconcile(db Database, path string, b, s, t *object.PathEntry, opts *Options) (*object.PathEntry, *Conflict, []string, error) {
	switch {
	case entryEqual(s, t):
		return s, nil, nil, nil
	case entryEqual(s, b):
		return t, nil, nil, nil
	case entryEqual(t, b):
		return s, nil, nil, nil
	}

	// From here, source and target disagree with each other and with
	// base: deletions, additions, and genuine modifications all land
	// here.
	switch {
	case s == nil && t != nil:
		return nil, conflictEntry(path, ModifyDeleteConflict, b, nil, t), []string{
			fmt.Sprintf("CONFLICT (modify/delete): %s deleted in %s and modified in %s", path, opts.sourceLabel(), opts.targetLabel()),
		}, nil
	case t == nil && s != nil:
		return nil, conflictEntry(path, ModifyDeleteConflict, b, s, nil), []string{
			fmt.Sprintf("CONFLICT (modify/delete): %s deleted in %s and modified in %s", path, opts.targetLabel(), opts.sourceLabel()),
		}, nil
	case s == nil && t == nil:
		return nil, nil, nil, nil
	}

	if s.Hash == t.Hash {
		// Content identical; only the recorded mode diverges.
		if s.Mode == t.Mode {
			return s, nil, nil, nil
		}
		return &object.PathEntry{Hash: s.Hash, Mode: t.Mode}, conflictEntry(path, DistinctModesConflict, b, s, t),
			[]string{fmt.Sprintf("CONFLICT (distinct modes): %s had different modes on each side", path)}, nil
	}

	return mergeText(db, path, b, s, t, opts)
}

func conflictEntry(path string, kind Kind, b, s, t *object.PathEntry) *Conflict {
	c := &Conflict{Path: path, Kind: kind}
	if b != nil {
		c.Ancestor = &Entry{Mode: b.Mode, Hash: b.Hash}
	}
	if s != nil {
		c.Source = &Entry{Mode: s.Mode, Hash: s.Hash}
	}
	if t != nil {
		c.Target = &Entry{Mode: t.Mode, Hash: t.Hash}
	}
	return c
}

// errTooLarge signals a blob past mergeLimit; callers fall back to a binary
// conflict the same as for actual binary content.
var errTooLarge = fmt.Errorf("merge: blob exceeds merge size limit")

func readBlobText(db Database, hash plumbing.Hash) (string, error) {
	blob, err := db.Blob(hash)
	if err != nil {
		return "", err
	}
	defer blob.Close()
	if blob.Size > mergeLimit {
		return "", errTooLarge
	}
	content, err := io.ReadAll(blob.Contents)
	if err != nil {
		return "", err
	}
	if diferenco.IsBinaryContent(content) {
		return "", diferenco.ErrBinaryData
	}
	return string(content), nil
}

func isBinaryLike(err error) bool {
	return err == diferenco.ErrBinaryData || err == errTooLarge
}

// mergeText implements spec §4.G.a: a three-way text merge between s and t
// against their common ancestor b (b may be nil, meaning both sides added
// the path independently).
func mergeText(db Database, path string, b, s, t *object.PathEntry, opts *Options) (*object.PathEntry, *Conflict, []string, error) {
	sourceText, sourceErr := readBlobText(db, s.Hash)
	targetText, targetErr := readBlobText(db, t.Hash)
	if isBinaryLike(sourceErr) || isBinaryLike(targetErr) {
		return binaryConflict(path, b, s, t, opts)
	}
	if sourceErr != nil {
		return nil, nil, nil, sourceErr
	}
	if targetErr != nil {
		return nil, nil, nil, targetErr
	}

	baseText := ""
	if b != nil {
		var err error
		baseText, err = readBlobText(db, b.Hash)
		if isBinaryLike(err) {
			return binaryConflict(path, b, s, t, opts)
		}
		if err != nil {
			return nil, nil, nil, err
		}
	}

	merged, hasConflict := threeWayMerge(baseText, sourceText, targetText, opts)

	mode, modeConflict := reconcileMode(b, s, t)

	hash, err := db.WriteBlob(&object.Blob{Size: int64(len(merged)), Contents: strings.NewReader(merged)})
	if err != nil {
		return nil, nil, nil, err
	}
	entry := &object.PathEntry{Hash: hash, Mode: mode}

	switch {
	case hasConflict:
		return entry, conflictEntry(path, ContentConflict, b, s, t), []string{
			fmt.Sprintf("CONFLICT (content): merge conflict in %s", path),
		}, nil
	case modeConflict:
		return entry, conflictEntry(path, DistinctModesConflict, b, s, t), []string{
			fmt.Sprintf("CONFLICT (distinct modes): %s had different modes on each side", path),
		}, nil
	default:
		return entry, nil, []string{fmt.Sprintf("Auto-merging %s", path)}, nil
	}
}

func binaryConflict(path string, b, s, t *object.PathEntry, opts *Options) (*object.PathEntry, *Conflict, []string, error) {
	return &object.PathEntry{Hash: s.Hash, Mode: s.Mode}, conflictEntry(path, BinaryConflict, b, s, t),
		[]string{fmt.Sprintf("warning: cannot merge binary file %s (%s vs. %s)", path, opts.sourceLabel(), opts.targetLabel())}, nil
}

func reconcileMode(b, s, t *object.PathEntry) (filemode.FileMode, bool) {
	if b != nil && b.Mode == s.Mode {
		return t.Mode, false
	}
	if b != nil && b.Mode == t.Mode {
		return s.Mode, false
	}
	return t.Mode, s.Mode != t.Mode
}

// threeWayMerge computes source-vs-base and target-vs-base edit scripts and
// groups overlapping changed regions into conflict markers, matching spec
// §4.G.a: non-overlapping edits compose silently, overlapping ones get a
// two-section <<<<<<< / ======= / >>>>>>> marker (no base section, unlike
// classic diff3 output).
func threeWayMerge(base, source, target string, opts *Options) (string, bool) {
	sink := diferenco.NewSink(diferenco.NEWLINE_LF)
	baseIdx := sink.SplitLines(base)
	sourceIdx := sink.SplitLines(source)
	targetIdx := sink.SplitLines(target)

	sourceChanges := diferenco.MyersDiff(baseIdx, sourceIdx)
	targetChanges := diferenco.MyersDiff(baseIdx, targetIdx)

	regions := diferenco.FindMergeRegions(sourceChanges, targetChanges, sink, sourceIdx, targetIdx)

	var out bytes.Buffer
	conflict := false
	pos := 0
	for _, region := range regions {
		if pos < region.Start {
			sink.WriteLine(&out, baseIdx[pos:region.Start]...)
		}
		if region.IsConflict {
			conflict = true
			writeConflictMarkers(sink, &out, baseIdx, sourceIdx, targetIdx, region, opts)
		} else {
			writeNonConflict(sink, &out, sourceIdx, targetIdx, region)
		}
		pos = region.End
	}
	if pos < len(baseIdx) {
		sink.WriteLine(&out, baseIdx[pos:]...)
	}
	return out.String(), conflict
}

func writeNonConflict(sink *diferenco.Sink, out io.Writer, sourceIdx, targetIdx []int, region diferenco.MergeRegion) {
	if len(region.SourceChanges) > 0 {
		writeChangeContent(sink, out, sourceIdx, region.SourceChanges)
		return
	}
	if len(region.TargetChanges) > 0 {
		writeChangeContent(sink, out, targetIdx, region.TargetChanges)
	}
}

func writeChangeContent(sink *diferenco.Sink, out io.Writer, idx []int, changes []diferenco.Change) {
	for _, ch := range changes {
		if ch.Ins > 0 {
			sink.WriteLine(out, idx[ch.P2:ch.P2+ch.Ins]...)
		}
	}
}

// writeConflictMarkers borrows merge.go's Sep1/Sep2 marker constants, but
// emits only the two sections (target, then source) the spec's marker
// format calls for — no base/"|||||||" section.
func writeConflictMarkers(sink *diferenco.Sink, out io.Writer, baseIdx, sourceIdx, targetIdx []int, region diferenco.MergeRegion, opts *Options) {
	sourceLhs, sourceRhs := diferenco.CalculateRange(region.SourceChanges, sourceIdx, region.Start, region.End)
	targetLhs, targetRhs := diferenco.CalculateRange(region.TargetChanges, targetIdx, region.Start, region.End)

	fmt.Fprintf(out, "%s %s\n", diferenco.Sep1, opts.targetLabel())
	sink.WriteLine(out, targetIdx[targetLhs:targetRhs]...)
	fmt.Fprintf(out, "%s\n", diferenco.Sep2)
	sink.WriteLine(out, sourceIdx[sourceLhs:sourceRhs]...)
	fmt.Fprintf(out, "%s %s\n", diferenco.Sep3, opts.sourceLabel())
}
