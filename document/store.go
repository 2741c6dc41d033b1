package document

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Op identifies a tree mutation.
type Op string

const (
	OpAdd       Op = "add"
	OpRemove    Op = "remove"
	OpUpdate    Op = "update"
	OpMove      Op = "move"
	OpDuplicate Op = "duplicate"
	OpReplace   Op = "replace"
)

// MutationError reports a tree mutation that could not be applied. Mutations
// never fail silently; callers must handle the failure case explicitly.
type MutationError struct {
	Op     Op
	ID     string
	Reason string
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("document: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("document: %s %q: %s", e.Op, e.ID, e.Reason)
}

func mutationErr(op Op, id, format string, a ...any) *MutationError {
	return &MutationError{Op: op, ID: id, Reason: fmt.Sprintf(format, a...)}
}

// Snapshot is the full tree state delivered to subscribers after every
// successful mutation.
type Snapshot struct {
	SessionID uuid.UUID
	Revision  uint64
	Op        Op
	Elements  []Element
}

// Subscriber observes tree mutations. Subscribers are read-only observers;
// they must not feed mutations back into the store from the callback.
type Subscriber func(ctx context.Context, snapshot Snapshot)

// Store holds the canonical element tree for one editing session. Every
// mutation operates copy-on-write on the whole tree and, on success,
// broadcasts the new full tree to all subscribers.
type Store struct {
	mu          sync.RWMutex
	sessionID   uuid.UUID
	elements    []Element
	revision    uint64
	subscribers []Subscriber
}

type StoreOptions struct {
	SessionID   uuid.UUID
	Elements    []Element
	Subscribers []Subscriber
}

func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		SessionID: uuid.New(),
	}
}

type StoreOption func(*StoreOptions)

func WithSessionID(id uuid.UUID) StoreOption {
	return func(o *StoreOptions) {
		o.SessionID = id
	}
}

// WithElements seeds the store with a previously persisted tree.
func WithElements(elements []Element) StoreOption {
	return func(o *StoreOptions) {
		o.Elements = elements
	}
}

func WithSubscriber(subscriber Subscriber) StoreOption {
	return func(o *StoreOptions) {
		o.Subscribers = append(o.Subscribers, subscriber)
	}
}

func NewStore(opts ...StoreOption) *Store {
	options := DefaultStoreOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Store{
		sessionID:   options.SessionID,
		elements:    cloneElements(options.Elements),
		subscribers: options.Subscribers,
	}
}

func (s *Store) SessionID() uuid.UUID {
	return s.sessionID
}

// Subscribe registers an additional observer. Only snapshots of mutations
// applied after the call are delivered.
func (s *Store) Subscribe(subscriber Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, subscriber)
}

// Elements returns a deep copy of the current tree.
func (s *Store) Elements() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneElements(s.elements)
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Find returns a deep copy of the element with the given id.
func (s *Store) Find(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found Element
	ok := false
	for _, element := range s.elements {
		element.Walk(func(e Element) bool {
			if e.ID == id {
				found = e.Clone()
				ok = true
				return false
			}
			return true
		})
		if ok {
			break
		}
	}
	return found, ok
}

// Add inserts element under parentID at index. An empty parentID targets the
// root list; a negative index appends. Elements without an id are assigned
// one; an id already present anywhere in the tree is rejected.
func (s *Store) Add(ctx context.Context, element Element, parentID string, index int) error {
	if !element.Type.Valid() {
		return mutationErr(OpAdd, element.ID, "unknown element type %q", element.Type)
	}

	return s.mutate(ctx, OpAdd, element.ID, func(tree []Element) ([]Element, error) {
		incoming := element.Clone()
		if incoming.ID == "" {
			incoming.ID = uuid.NewString()
		}
		visitElements(incoming.Children, func(e *Element) bool {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			return true
		})

		seen := make(map[string]struct{})
		collectIDs(tree, seen)
		conflict := ""
		incoming.Walk(func(e Element) bool {
			if _, ok := seen[e.ID]; ok {
				conflict = e.ID
				return false
			}
			seen[e.ID] = struct{}{}
			return true
		})
		if conflict != "" {
			return nil, mutationErr(OpAdd, conflict, "id already present in tree")
		}

		return insertElement(tree, incoming, parentID, index, OpAdd)
	})
}

// Remove deletes the element and its entire subtree.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, OpRemove, id, func(tree []Element) ([]Element, error) {
		next, removed := detachElement(tree, id)
		if removed == nil {
			return nil, mutationErr(OpRemove, id, "element not found")
		}
		return next, nil
	})
}

// Update shallow-merges props into the element's existing props. Keys not
// named in props are preserved.
func (s *Store) Update(ctx context.Context, id string, props map[string]any) error {
	return s.mutate(ctx, OpUpdate, id, func(tree []Element) ([]Element, error) {
		updated := false
		visitElements(tree, func(e *Element) bool {
			if e.ID != id {
				return true
			}
			if e.Props == nil {
				e.Props = make(map[string]any, len(props))
			}
			maps.Copy(e.Props, props)
			updated = true
			return false
		})
		if !updated {
			return nil, mutationErr(OpUpdate, id, "element not found")
		}
		return tree, nil
	})
}

// Move relocates the subtree rooted at id under targetParentID at
// targetIndex, preserving the subtree's internal ids and structure exactly.
// An empty targetParentID targets the root list.
func (s *Store) Move(ctx context.Context, id, targetParentID string, targetIndex int) error {
	if id == targetParentID {
		return mutationErr(OpMove, id, "cannot move an element into itself")
	}

	return s.mutate(ctx, OpMove, id, func(tree []Element) ([]Element, error) {
		next, moved := detachElement(tree, id)
		if moved == nil {
			return nil, mutationErr(OpMove, id, "element not found")
		}

		// The target parent must not live inside the moved subtree.
		if targetParentID != "" {
			inSubtree := false
			moved.Walk(func(e Element) bool {
				if e.ID == targetParentID {
					inSubtree = true
					return false
				}
				return true
			})
			if inSubtree {
				return nil, mutationErr(OpMove, id, "target parent %q is inside the moved subtree", targetParentID)
			}
		}

		return insertElement(next, *moved, targetParentID, targetIndex, OpMove)
	})
}

// Duplicate deep-clones the subtree rooted at id with fresh ids on every
// node and inserts the clone immediately after the original among its
// siblings. It returns the id of the clone's root.
func (s *Store) Duplicate(ctx context.Context, id string) (string, error) {
	var cloneID string
	err := s.mutate(ctx, OpDuplicate, id, func(tree []Element) ([]Element, error) {
		parentID, index, original := locateElement(tree, id)
		if original == nil {
			return nil, mutationErr(OpDuplicate, id, "element not found")
		}

		clone := original.CloneWithFreshIDs()
		cloneID = clone.ID
		return insertElement(tree, clone, parentID, index+1, OpDuplicate)
	})
	if err != nil {
		return "", err
	}
	return cloneID, nil
}

// Replace swaps the whole tree, e.g. when restoring a cached snapshot. The
// incoming tree is validated for id uniqueness like any other mutation.
func (s *Store) Replace(ctx context.Context, elements []Element) error {
	return s.mutate(ctx, OpReplace, "", func([]Element) ([]Element, error) {
		next := cloneElements(elements)

		seen := make(map[string]struct{})
		conflict := ""
		for _, element := range next {
			element.Walk(func(e Element) bool {
				if _, ok := seen[e.ID]; ok {
					conflict = e.ID
					return false
				}
				seen[e.ID] = struct{}{}
				return true
			})
			if conflict != "" {
				return nil, mutationErr(OpReplace, conflict, "id already present in tree")
			}
		}

		return next, nil
	})
}

// mutate applies apply to a deep copy of the tree and swaps it in on
// success. Subscribers receive the new full tree synchronously, in
// registration order, keeping event application strictly ordered.
func (s *Store) mutate(ctx context.Context, op Op, id string, apply func([]Element) ([]Element, error)) error {
	s.mu.Lock()

	next, err := apply(cloneElements(s.elements))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.elements = next
	s.revision++

	snapshot := Snapshot{
		SessionID: s.sessionID,
		Revision:  s.revision,
		Op:        op,
		Elements:  cloneElements(next),
	}
	subscribers := make([]Subscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	slog.DebugContext(ctx, "document tree mutated",
		"session_id", snapshot.SessionID,
		"op", op,
		"element_id", id,
		"revision", snapshot.Revision,
	)

	for _, subscriber := range subscribers {
		subscriber(ctx, snapshot)
	}

	return nil
}

// insertElement places element under parentID at index, or into the root
// list when parentID is empty. A negative or out-of-range index appends.
func insertElement(tree []Element, element Element, parentID string, index int, op Op) ([]Element, error) {
	if parentID == "" {
		return insertAt(tree, element, index), nil
	}

	inserted := false
	visitElements(tree, func(e *Element) bool {
		if e.ID != parentID {
			return true
		}
		e.Children = insertAt(e.Children, element, index)
		inserted = true
		return false
	})
	if !inserted {
		return nil, mutationErr(op, element.ID, "parent %q not found", parentID)
	}
	return tree, nil
}

func insertAt(siblings []Element, element Element, index int) []Element {
	if index < 0 || index > len(siblings) {
		index = len(siblings)
	}
	siblings = append(siblings, Element{})
	copy(siblings[index+1:], siblings[index:])
	siblings[index] = element
	return siblings
}

// detachElement removes the element with the given id from the tree and
// returns the modified tree together with the detached subtree.
func detachElement(tree []Element, id string) ([]Element, *Element) {
	for i := range tree {
		if tree[i].ID == id {
			detached := tree[i]
			return append(tree[:i], tree[i+1:]...), &detached
		}
	}

	var detached *Element
	visitElements(tree, func(e *Element) bool {
		for i := range e.Children {
			if e.Children[i].ID == id {
				d := e.Children[i]
				e.Children = append(e.Children[:i], e.Children[i+1:]...)
				detached = &d
				return false
			}
		}
		return true
	})
	return tree, detached
}

// locateElement finds the element with the given id and reports its parent
// id ("" for root), its index among its siblings, and the element itself.
func locateElement(tree []Element, id string) (string, int, *Element) {
	for i := range tree {
		if tree[i].ID == id {
			return "", i, &tree[i]
		}
	}

	parentID := ""
	index := -1
	var found *Element
	visitElements(tree, func(e *Element) bool {
		for i := range e.Children {
			if e.Children[i].ID == id {
				parentID = e.ID
				index = i
				found = &e.Children[i]
				return false
			}
		}
		return true
	})
	return parentID, index, found
}

// visitElements walks every element depth-first with mutable access. The
// visitor returns false to stop.
func visitElements(tree []Element, visit func(*Element) bool) bool {
	for i := range tree {
		if !visit(&tree[i]) {
			return false
		}
		if !visitElements(tree[i].Children, visit) {
			return false
		}
	}
	return true
}
