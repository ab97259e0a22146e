package crdt

import (
	"sort"
	"strconv"
	"strings"
)

// maxDigit bounds the digit range at every position depth.
const maxDigit = 1 << 16

// Ident is one element of a Logoot position identifier. Ordering is digit
// first, then site, then the per-site sequence number. The sequence number
// makes authored positions globally unique so a delete can never hit a later,
// unrelated insertion that landed between the same neighbors.
type Ident struct {
	Digit uint32 `cbor:"d" json:"digit"`
	Site  string `cbor:"s" json:"site"`
	Seq   uint64 `cbor:"q,omitempty" json:"seq,omitempty"`
}

// Position is a dense, totally ordered identifier for one atom in a text
// sequence. Positions generated by concurrent sites between the same
// neighbors differ at least in their site, so both atoms survive a merge and
// every replica orders them identically.
type Position []Ident

func compareIdent(a, b Ident) int {
	switch {
	case a.Digit != b.Digit:
		if a.Digit < b.Digit {
			return -1
		}
		return 1
	case a.Site != b.Site:
		return strings.Compare(a.Site, b.Site)
	case a.Seq != b.Seq:
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	return 0
}

// ComparePositions orders positions lexicographically; a strict prefix sorts
// before its extensions.
func ComparePositions(a, b Position) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareIdent(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Atom is one character of a replicated text sequence.
type Atom struct {
	Pos   Position `cbor:"p" json:"pos"`
	Value string   `cbor:"v" json:"value"`
}

// Text is a tombstone-free sequence CRDT for one component's text content.
// Concurrent insertions at different offsets are both retained; insert and
// delete interleave without corrupting surrounding characters. All access
// goes through the owning Document, which holds the lock.
type Text struct {
	site  string
	seq   uint64
	atoms []Atom
	// removed remembers every position ever deleted so that a delete and its
	// insert commute regardless of arrival order, and so state transfer can
	// carry deletions. Positions are never reused, so an entry here is final.
	removed map[string]Position
}

func newText(site string) *Text {
	return &Text{site: site, removed: make(map[string]Position)}
}

// key renders a position as a map key.
func (p Position) key() string {
	var sb strings.Builder
	for i, id := range p {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatUint(uint64(id.Digit), 36))
		sb.WriteByte('.')
		sb.WriteString(id.Site)
		sb.WriteByte('.')
		sb.WriteString(strconv.FormatUint(id.Seq, 36))
	}
	return sb.String()
}

func (t *Text) Len() int {
	return len(t.atoms)
}

func (t *Text) String() string {
	var sb strings.Builder
	for i := range t.atoms {
		sb.WriteString(t.atoms[i].Value)
	}
	return sb.String()
}

// search returns the index of pos in the atom slice and whether it is present.
func (t *Text) search(pos Position) (int, bool) {
	i := sort.Search(len(t.atoms), func(i int) bool {
		return ComparePositions(t.atoms[i].Pos, pos) >= 0
	})
	if i < len(t.atoms) && ComparePositions(t.atoms[i].Pos, pos) == 0 {
		return i, true
	}
	return i, false
}

// between generates a fresh position strictly between l and r. Either bound
// may be nil, meaning the start or end of the sequence.
func (t *Text) between(l, r Position) Position {
	t.seq++
	var out Position
	for depth := 0; ; depth++ {
		var lo uint32
		if depth < len(l) {
			lo = l[depth].Digit
		}
		hi := uint32(maxDigit)
		if depth < len(r) {
			hi = r[depth].Digit
		}
		if hi-lo > 1 {
			return append(out, Ident{Digit: lo + (hi-lo)/2, Site: t.site, Seq: t.seq})
		}
		// No room at this depth; keep the left bound's ident and descend.
		id := Ident{Digit: lo, Site: t.site, Seq: t.seq}
		if depth < len(l) {
			id = l[depth]
		}
		out = append(out, id)
	}
}

// insertAt generates and locally applies atoms for s at the rune offset.
// Offsets beyond the current length clamp to the end.
func (t *Text) insertAt(offset int, s string) []Atom {
	if offset < 0 {
		offset = 0
	}
	if offset > len(t.atoms) {
		offset = len(t.atoms)
	}
	runes := []rune(s)
	atoms := make([]Atom, 0, len(runes))
	var left Position
	if offset > 0 {
		left = t.atoms[offset-1].Pos
	}
	var right Position
	if offset < len(t.atoms) {
		right = t.atoms[offset].Pos
	}
	for _, r := range runes {
		a := Atom{Pos: t.between(left, right), Value: string(r)}
		t.applyInsert(a)
		atoms = append(atoms, a)
		left = a.Pos
	}
	return atoms
}

// deleteAt removes n atoms starting at the rune offset and returns the
// positions of the removed atoms. Ranges beyond the end are truncated.
func (t *Text) deleteAt(offset, n int) []Position {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(t.atoms) || n <= 0 {
		return nil
	}
	if offset+n > len(t.atoms) {
		n = len(t.atoms) - offset
	}
	positions := make([]Position, n)
	for i := 0; i < n; i++ {
		positions[i] = t.atoms[offset+i].Pos
		t.removed[positions[i].key()] = positions[i]
	}
	t.atoms = append(t.atoms[:offset], t.atoms[offset+n:]...)
	return positions
}

// applyInsert merges one atom. Re-applying an atom already present, or one
// whose deletion has already been observed, is a no-op.
func (t *Text) applyInsert(a Atom) bool {
	if _, gone := t.removed[a.Pos.key()]; gone {
		return false
	}
	i, found := t.search(a.Pos)
	if found {
		return false
	}
	t.atoms = append(t.atoms, Atom{})
	copy(t.atoms[i+1:], t.atoms[i:])
	t.atoms[i] = a
	return true
}

// applyDelete merges one deletion. The position is remembered even when the
// matching insert has not arrived yet, so the pair converges either way.
func (t *Text) applyDelete(pos Position) bool {
	t.removed[pos.key()] = pos
	i, found := t.search(pos)
	if !found {
		return false
	}
	t.atoms = append(t.atoms[:i], t.atoms[i+1:]...)
	return true
}

// snapshotAtoms returns the atoms in order for full-state transfer.
func (t *Text) snapshotAtoms() []Atom {
	out := make([]Atom, len(t.atoms))
	copy(out, t.atoms)
	return out
}

// removedPositions returns every deletion observed so far, so state transfer
// propagates deletes as well as surviving atoms.
func (t *Text) removedPositions() []Position {
	out := make([]Position, 0, len(t.removed))
	for _, pos := range t.removed {
		out = append(out, pos)
	}
	return out
}
