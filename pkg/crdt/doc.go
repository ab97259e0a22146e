// Package crdt implements the replicated canvas document: a map of positioned
// components whose scalar fields are last-writer-wins registers and whose
// text content is a sequence CRDT. Merging is commutative, associative and
// idempotent, so any two replicas that have observed the same set of ops hold
// identical observable state regardless of arrival order.
package crdt

import (
	"sort"
	"sync"

	"github.com/canvaspad/canvaspad/pkg/models"
)

// componentState is the internal replicated record for one component. The
// presence register decides whether the component is observable; a deleted
// component keeps its state as an internal tombstone but is never reported
// again.
type componentState struct {
	id       models.ComponentID
	kind     models.ComponentKind
	seq      uint64
	presence register
	fields   map[string]register
	text     *Text
}

func (cs *componentState) exists() bool {
	v, _ := cs.presence.value.(bool)
	return v
}

func (cs *componentState) num(field string) float64 {
	if r, ok := cs.fields[field]; ok {
		if v, ok := r.value.(float64); ok {
			return v
		}
	}
	return 0
}

func (cs *componentState) intField(field string) int {
	if r, ok := cs.fields[field]; ok {
		if v, ok := r.value.(int); ok {
			return v
		}
	}
	return 0
}

func (cs *componentState) boolField(field string) bool {
	if r, ok := cs.fields[field]; ok {
		if v, ok := r.value.(bool); ok {
			return v
		}
	}
	return false
}

func (cs *componentState) mapField(field string) models.JSONMap {
	if r, ok := cs.fields[field]; ok {
		if v, ok := r.value.(models.JSONMap); ok {
			return v
		}
	}
	return nil
}

// FieldPatch is a partial update of a component's scalar fields. Nil slots
// are left untouched, so a concurrent x/y write never clobbers a concurrent
// width/height write.
type FieldPatch struct {
	X         *float64
	Y         *float64
	Width     *float64
	Height    *float64
	ZIndex    *int
	HasImage  *bool
	ShapeData models.JSONMap
}

// Document is one page's replicated canvas document. It is safe for
// concurrent use; all mutation goes through the merge path under an internal
// lock, and change callbacks fire after the lock is released.
type Document struct {
	mu    sync.Mutex
	actor string
	clock uint64
	order uint64

	components map[models.ComponentID]*componentState

	nextSub  int
	setSubs  map[int]func()
	compSubs map[models.ComponentID]map[int]func()
	textSubs map[models.ComponentID]map[int]func()
}

// NewDocument creates an empty document replica. The actor ID identifies this
// replica in version tie-breaks and text positions; it must be unique among
// the replicas of one page.
func NewDocument(actor string) *Document {
	return &Document{
		actor:      actor,
		components: make(map[models.ComponentID]*componentState),
		setSubs:    make(map[int]func()),
		compSubs:   make(map[models.ComponentID]map[int]func()),
		textSubs:   make(map[models.ComponentID]map[int]func()),
	}
}

func (d *Document) Actor() string { return d.actor }

// nextVersion advances the Lamport clock for a locally authored write.
func (d *Document) nextVersion() Version {
	d.clock++
	return Version{Counter: d.clock, Actor: d.actor}
}

// observe merges a remote version into the local clock.
func (d *Document) observe(ver Version) {
	if ver.Counter > d.clock {
		d.clock = ver.Counter
	}
}

func (d *Document) ensure(id models.ComponentID) *componentState {
	cs, ok := d.components[id]
	if !ok {
		d.order++
		cs = &componentState{
			id:     id,
			seq:    d.order,
			fields: make(map[string]register),
		}
		d.components[id] = cs
	}
	return cs
}

func (d *Document) ensureText(cs *componentState) *Text {
	if cs.text == nil {
		cs.text = newText(d.actor)
	}
	return cs.text
}

// changeSet accumulates which subscription grains an operation batch touched.
type changeSet struct {
	structural bool
	comps      map[models.ComponentID]struct{}
	texts      map[models.ComponentID]struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		comps: make(map[models.ComponentID]struct{}),
		texts: make(map[models.ComponentID]struct{}),
	}
}

// Apply merges a batch of ops into the document. It is the single merge path
// for remote updates and snapshot transfer; re-applying ops already observed
// leaves the state unchanged.
func (d *Document) Apply(ops []Op) {
	d.mu.Lock()
	changes := newChangeSet()
	for i := range ops {
		d.applyOne(&ops[i], changes)
	}
	d.mu.Unlock()
	d.notify(changes)
}

func (d *Document) applyOne(op *Op, changes *changeSet) {
	d.observe(op.Ver)
	cs := d.ensure(op.Component)
	switch op.Type {
	case OpPut:
		if cs.kind == "" {
			cs.kind = op.Kind
		}
		if cs.presence.set(true, op.Ver) {
			changes.structural = true
			changes.comps[cs.id] = struct{}{}
		}
	case OpDelete:
		if cs.presence.set(false, op.Ver) {
			changes.structural = true
		}
	case OpSet:
		v, ok := op.fieldValue()
		if !ok {
			return
		}
		r := cs.fields[op.Field]
		if r.set(v, op.Ver) {
			cs.fields[op.Field] = r
			changes.comps[cs.id] = struct{}{}
		}
	case OpTextInsert:
		if op.Atom == nil {
			return
		}
		if d.ensureText(cs).applyInsert(*op.Atom) {
			changes.texts[cs.id] = struct{}{}
		}
	case OpTextDelete:
		if op.Pos == nil {
			return
		}
		if d.ensureText(cs).applyDelete(op.Pos) {
			changes.texts[cs.id] = struct{}{}
		}
	}
}

// PutComponent inserts a component authored on this replica and returns the
// ops to propagate. The component's text, if any, seeds the embedded
// sequence.
func (d *Document) PutComponent(c *models.Component) []Op {
	d.mu.Lock()
	changes := newChangeSet()
	cs := d.ensure(c.ID)
	cs.kind = c.Kind

	ops := make([]Op, 0, 8)
	ver := d.nextVersion()
	cs.presence.set(true, ver)
	ops = append(ops, Op{Type: OpPut, Component: c.ID, Ver: ver, Kind: c.Kind})

	set := func(field string, op Op, value any) {
		r := cs.fields[field]
		r.set(value, op.Ver)
		cs.fields[field] = r
		ops = append(ops, op)
	}
	set(FieldX, numOp(c.ID, d.nextVersion(), FieldX, c.X), c.X)
	set(FieldY, numOp(c.ID, d.nextVersion(), FieldY, c.Y), c.Y)
	set(FieldWidth, numOp(c.ID, d.nextVersion(), FieldWidth, c.Width), c.Width)
	set(FieldHeight, numOp(c.ID, d.nextVersion(), FieldHeight, c.Height), c.Height)
	set(FieldZIndex, intOp(c.ID, d.nextVersion(), FieldZIndex, c.ZIndex), c.ZIndex)
	if c.HasImage {
		set(FieldHasImage, boolOp(c.ID, d.nextVersion(), FieldHasImage, true), true)
	}
	if c.ShapeData != nil {
		set(FieldShapeData, mapOp(c.ID, d.nextVersion(), FieldShapeData, c.ShapeData), c.ShapeData)
	}
	if c.Kind == models.ComponentText && c.Text != "" {
		text := d.ensureText(cs)
		for _, atom := range text.insertAt(0, c.Text) {
			a := atom
			ops = append(ops, Op{Type: OpTextInsert, Component: c.ID, Ver: d.nextVersion(), Atom: &a})
		}
	}

	changes.structural = true
	changes.comps[c.ID] = struct{}{}
	d.mu.Unlock()
	d.notify(changes)
	return ops
}

// SetFields applies a partial scalar update. Unknown or deleted component IDs
// are silently ignored.
func (d *Document) SetFields(id models.ComponentID, patch FieldPatch) []Op {
	d.mu.Lock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() {
		d.mu.Unlock()
		return nil
	}
	changes := newChangeSet()
	var ops []Op
	set := func(field string, op Op, value any) {
		r := cs.fields[field]
		r.set(value, op.Ver)
		cs.fields[field] = r
		ops = append(ops, op)
	}
	if patch.X != nil {
		set(FieldX, numOp(id, d.nextVersion(), FieldX, *patch.X), *patch.X)
	}
	if patch.Y != nil {
		set(FieldY, numOp(id, d.nextVersion(), FieldY, *patch.Y), *patch.Y)
	}
	if patch.Width != nil {
		set(FieldWidth, numOp(id, d.nextVersion(), FieldWidth, *patch.Width), *patch.Width)
	}
	if patch.Height != nil {
		set(FieldHeight, numOp(id, d.nextVersion(), FieldHeight, *patch.Height), *patch.Height)
	}
	if patch.ZIndex != nil {
		set(FieldZIndex, intOp(id, d.nextVersion(), FieldZIndex, *patch.ZIndex), *patch.ZIndex)
	}
	if patch.HasImage != nil {
		set(FieldHasImage, boolOp(id, d.nextVersion(), FieldHasImage, *patch.HasImage), *patch.HasImage)
	}
	if patch.ShapeData != nil {
		set(FieldShapeData, mapOp(id, d.nextVersion(), FieldShapeData, patch.ShapeData), patch.ShapeData)
	}
	if len(ops) > 0 {
		changes.comps[id] = struct{}{}
	}
	d.mu.Unlock()
	d.notify(changes)
	return ops
}

// DeleteComponent removes a component authored on this replica. Deleting an
// absent or already deleted component is a no-op.
func (d *Document) DeleteComponent(id models.ComponentID) []Op {
	d.mu.Lock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() {
		d.mu.Unlock()
		return nil
	}
	ver := d.nextVersion()
	cs.presence.set(false, ver)
	changes := newChangeSet()
	changes.structural = true
	d.mu.Unlock()
	d.notify(changes)
	return []Op{{Type: OpDelete, Component: id, Ver: ver}}
}

// TextInsert inserts s at the rune offset of a text component's sequence and
// returns the ops to propagate. Non-text or absent components are ignored.
func (d *Document) TextInsert(id models.ComponentID, offset int, s string) []Op {
	d.mu.Lock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() || cs.kind != models.ComponentText || s == "" {
		d.mu.Unlock()
		return nil
	}
	text := d.ensureText(cs)
	var ops []Op
	for _, atom := range text.insertAt(offset, s) {
		a := atom
		ops = append(ops, Op{Type: OpTextInsert, Component: id, Ver: d.nextVersion(), Atom: &a})
	}
	changes := newChangeSet()
	changes.texts[id] = struct{}{}
	d.mu.Unlock()
	d.notify(changes)
	return ops
}

// TextDelete removes n runes starting at offset from a text component's
// sequence and returns the ops to propagate.
func (d *Document) TextDelete(id models.ComponentID, offset, n int) []Op {
	d.mu.Lock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() || cs.text == nil {
		d.mu.Unlock()
		return nil
	}
	var ops []Op
	for _, pos := range cs.text.deleteAt(offset, n) {
		ops = append(ops, Op{Type: OpTextDelete, Component: id, Ver: d.nextVersion(), Pos: pos})
	}
	changes := newChangeSet()
	if len(ops) > 0 {
		changes.texts[id] = struct{}{}
	}
	d.mu.Unlock()
	d.notify(changes)
	return ops
}

// TextContent returns the flattened text of a component, or false if the
// component is absent or not a text component.
func (d *Document) TextContent(id models.ComponentID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() || cs.kind != models.ComponentText {
		return "", false
	}
	if cs.text == nil {
		return "", true
	}
	return cs.text.String(), true
}

// TextLen returns the rune length of a component's text sequence.
func (d *Document) TextLen(id models.ComponentID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs, ok := d.components[id]
	if !ok || cs.text == nil {
		return 0
	}
	return cs.text.Len()
}

func (d *Document) snapshotLocked(cs *componentState) *models.Component {
	c := &models.Component{
		ID:        cs.id,
		Kind:      cs.kind,
		X:         cs.num(FieldX),
		Y:         cs.num(FieldY),
		Width:     cs.num(FieldWidth),
		Height:    cs.num(FieldHeight),
		ZIndex:    cs.intField(FieldZIndex),
		HasImage:  cs.boolField(FieldHasImage),
		ShapeData: cs.mapField(FieldShapeData),
	}
	if cs.text != nil {
		c.Text = cs.text.String()
	}
	return c
}

// Component returns a snapshot of one observable component.
func (d *Document) Component(id models.ComponentID) (*models.Component, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cs, ok := d.components[id]
	if !ok || !cs.exists() {
		return nil, false
	}
	return d.snapshotLocked(cs), true
}

// Components returns a snapshot of the observable component set as a
// rendering list: stable sort by zIndex, ties broken by insertion order.
// Deleted components are never included.
func (d *Document) Components() []*models.Component {
	d.mu.Lock()
	states := make([]*componentState, 0, len(d.components))
	for _, cs := range d.components {
		if cs.exists() {
			states = append(states, cs)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		zi := states[i].intField(FieldZIndex)
		zj := states[j].intField(FieldZIndex)
		if zi != zj {
			return zi < zj
		}
		return states[i].seq < states[j].seq
	})
	out := make([]*models.Component, len(states))
	for i, cs := range states {
		out[i] = d.snapshotLocked(cs)
	}
	d.mu.Unlock()
	return out
}

// MaxZIndex returns the highest zIndex among observable components, and false
// when the document is empty.
func (d *Document) MaxZIndex() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	max, any := 0, false
	for _, cs := range d.components {
		if !cs.exists() {
			continue
		}
		z := cs.intField(FieldZIndex)
		if !any || z > max {
			max = z
		}
		any = true
	}
	return max, any
}

// SnapshotOps renders the full document state, tombstones included, as an op
// list. Applying the result to any replica merges this document's state into
// it; this is the initial state transfer on session open.
func (d *Document) SnapshotOps() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ops []Op
	for _, cs := range d.components {
		if !cs.presence.ver.IsZero() {
			if cs.exists() {
				ops = append(ops, Op{Type: OpPut, Component: cs.id, Ver: cs.presence.ver, Kind: cs.kind})
			} else {
				ops = append(ops, Op{Type: OpDelete, Component: cs.id, Ver: cs.presence.ver})
			}
		}
		for field, r := range cs.fields {
			op := Op{Type: OpSet, Component: cs.id, Ver: r.ver, Field: field}
			switch v := r.value.(type) {
			case float64:
				op.Num = &v
			case int:
				op.Int = &v
			case bool:
				op.Bool = &v
			case models.JSONMap:
				op.Map = v
			default:
				continue
			}
			ops = append(ops, op)
		}
		if cs.text != nil {
			ver := Version{Counter: d.clock, Actor: d.actor}
			for _, atom := range cs.text.snapshotAtoms() {
				a := atom
				ops = append(ops, Op{Type: OpTextInsert, Component: cs.id, Ver: ver, Atom: &a})
			}
			for _, pos := range cs.text.removedPositions() {
				ops = append(ops, Op{Type: OpTextDelete, Component: cs.id, Ver: ver, Pos: pos})
			}
		}
	}
	return ops
}

// SubscribeComponents registers a callback for structural changes (component
// added or removed). The returned func unsubscribes.
func (d *Document) SubscribeComponents(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	id := d.nextSub
	d.setSubs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.setSubs, id)
	}
}

// SubscribeComponent registers a callback for scalar field changes on one
// component.
func (d *Document) SubscribeComponent(id models.ComponentID, fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	sub := d.nextSub
	subs, ok := d.compSubs[id]
	if !ok {
		subs = make(map[int]func())
		d.compSubs[id] = subs
	}
	subs[sub] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.compSubs[id], sub)
	}
}

// SubscribeText registers a callback for changes inside one component's text
// sequence.
func (d *Document) SubscribeText(id models.ComponentID, fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	sub := d.nextSub
	subs, ok := d.textSubs[id]
	if !ok {
		subs = make(map[int]func())
		d.textSubs[id] = subs
	}
	subs[sub] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.textSubs[id], sub)
	}
}

// notify fires the callbacks a change batch touched. Called without the lock
// held so callbacks may re-enter the document.
func (d *Document) notify(changes *changeSet) {
	d.mu.Lock()
	var fns []func()
	if changes.structural {
		for _, fn := range d.setSubs {
			fns = append(fns, fn)
		}
	}
	for id := range changes.comps {
		for _, fn := range d.compSubs[id] {
			fns = append(fns, fn)
		}
	}
	for id := range changes.texts {
		for _, fn := range d.textSubs[id] {
			fns = append(fns, fn)
		}
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
