package gramps

import (
	"context"
	"fmt"
	"sync"
)

// MemoryDB is an in-memory Database. It backs tests and embedding
// callers that already hold decoded objects.
type MemoryDB struct {
	mu      sync.RWMutex
	objects map[Class]map[string]Object
	order   map[Class][]string
}

// NewMemoryDB creates an empty store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		objects: make(map[Class]map[string]Object),
		order:   make(map[Class][]string),
	}
}

// Put inserts or replaces objects.
func (m *MemoryDB) Put(objs ...Object) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, obj := range objs {
		class := obj.ObjectClass()
		byHandle, ok := m.objects[class]
		if !ok {
			byHandle = make(map[string]Object)
			m.objects[class] = byHandle
		}
		if _, exists := byHandle[obj.ObjectHandle()]; !exists {
			m.order[class] = append(m.order[class], obj.ObjectHandle())
		}
		byHandle[obj.ObjectHandle()] = obj
	}
}

// Remove deletes an object; unknown handles are ignored.
func (m *MemoryDB) Remove(class Class, handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[class][handle]; !ok {
		return
	}
	delete(m.objects[class], handle)
	handles := m.order[class][:0]
	for _, h := range m.order[class] {
		if h != handle {
			handles = append(handles, h)
		}
	}
	m.order[class] = handles
}

// Opener returns an Opener whose handles share this store. Closing a
// handle does not discard the data.
func (m *MemoryDB) Opener() Opener {
	return OpenerFunc(func(context.Context) (Database, error) {
		return m, nil
	})
}

// Count implements Database.
func (m *MemoryDB) Count(_ context.Context, class Class) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects[class]), nil
}

// Handles implements Database.
func (m *MemoryDB) Handles(_ context.Context, class Class) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order[class]))
	copy(out, m.order[class])
	return out, nil
}

// Object implements Database.
func (m *MemoryDB) Object(_ context.Context, class Class, handle string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[class][handle]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", class.Lower(), handle, ErrHandleNotFound)
	}
	return obj, nil
}

// Timestamps implements Database.
func (m *MemoryDB) Timestamps(_ context.Context, class Class) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.objects[class]))
	for h, obj := range m.objects[class] {
		out[h] = obj.ChangeTime()
	}
	return out, nil
}

// Backlinks implements Database.
func (m *MemoryDB) Backlinks(_ context.Context, handle string, classes ...Class) ([]Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := classes
	if len(wanted) == 0 {
		wanted = Classes
	}
	var out []Ref
	for _, class := range wanted {
		for _, h := range m.order[class] {
			for _, ref := range References(m.objects[class][h]) {
				if ref.Handle == handle {
					out = append(out, Ref{Class: class, Handle: h})
					break
				}
			}
		}
	}
	return out, nil
}

// Close implements Database.
func (m *MemoryDB) Close() error {
	return nil
}

// References lists the objects an object points to. It mirrors the
// rows Gramps maintains in its reference table.
func References(obj Object) []Ref {
	var refs []Ref
	add := func(class Class, handle string) {
		if handle != "" {
			refs = append(refs, Ref{Class: class, Handle: handle})
		}
	}
	for _, t := range obj.Tags() {
		add(ClassTag, t)
	}

	switch o := obj.(type) {
	case *Person:
		for _, er := range o.EventRefs {
			add(ClassEvent, er.Ref)
		}
		for _, pr := range o.PersonRefs {
			add(ClassPerson, pr.Ref)
		}
	case *Family:
		add(ClassPerson, o.FatherHandle)
		add(ClassPerson, o.MotherHandle)
		for _, cr := range o.ChildRefs {
			add(ClassPerson, cr.Ref)
		}
		for _, er := range o.EventRefs {
			add(ClassEvent, er.Ref)
		}
	case *Event:
		add(ClassPlace, o.Place)
	case *Place:
		for _, pr := range o.PlaceRefs {
			add(ClassPlace, pr.Ref)
		}
	case *Citation:
		add(ClassSource, o.SourceHandle)
	case *Source:
		for _, rr := range o.RepoRefs {
			add(ClassRepository, rr.Ref)
		}
	}
	return refs
}

var _ Database = (*MemoryDB)(nil)
