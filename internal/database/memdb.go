package database

import (
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNoDocument  = errors.New("memdb: no document")
	ErrDuplicateID = errors.New("memdb: duplicate _id")
)

// MemDB is the in-memory stand-in for the Mongo database used in tests and in
// development when no MONGODB_URI is configured. Documents are stored as BSON so
// callers never share memory with the store and see the same encoding as Mongo.
type MemDB struct {
	mu    sync.RWMutex
	docs  map[string]map[primitive.ObjectID]bson.Raw
	order map[string][]primitive.ObjectID
}

func NewMemDB() *MemDB {
	return &MemDB{
		docs:  map[string]map[primitive.ObjectID]bson.Raw{},
		order: map[string][]primitive.ObjectID{},
	}
}

// MemCollection is a typed view of one MemDB collection.
type MemCollection[T any] struct {
	db   *MemDB
	name string
}

// Collection returns a typed handle on the named collection.
func Collection[T any](db *MemDB, name string) *MemCollection[T] {
	return &MemCollection[T]{db: db, name: name}
}

func decode[T any](raw bson.Raw) (*T, error) {
	var v T
	if err := bson.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Insert stores v under id.
func (c *MemCollection[T]) Insert(id primitive.ObjectID, v *T) error {
	raw, err := bson.Marshal(v)
	if err != nil {
		return err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	col := c.db.docs[c.name]
	if col == nil {
		col = map[primitive.ObjectID]bson.Raw{}
		c.db.docs[c.name] = col
	}
	if _, ok := col[id]; ok {
		return ErrDuplicateID
	}
	col[id] = raw
	c.db.order[c.name] = append(c.db.order[c.name], id)
	return nil
}

// Get returns a copy of the document with id.
func (c *MemCollection[T]) Get(id primitive.ObjectID) (*T, error) {
	c.db.mu.RLock()
	raw, ok := c.db.docs[c.name][id]
	c.db.mu.RUnlock()
	if !ok {
		return nil, ErrNoDocument
	}
	return decode[T](raw)
}

// Update applies fn to a copy of the document and stores the result atomically.
// fn must not call back into the MemDB.
func (c *MemCollection[T]) Update(id primitive.ObjectID, fn func(*T) error) (*T, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	raw, ok := c.db.docs[c.name][id]
	if !ok {
		return nil, ErrNoDocument
	}
	v, err := decode[T](raw)
	if err != nil {
		return nil, err
	}
	if err := fn(v); err != nil {
		return nil, err
	}
	out, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.db.docs[c.name][id] = out
	return v, nil
}

// Replace overwrites the document with id.
func (c *MemCollection[T]) Replace(id primitive.ObjectID, v *T) error {
	_, err := c.Update(id, func(cur *T) error {
		*cur = *v
		return nil
	})
	return err
}

// Delete removes the document with id.
func (c *MemCollection[T]) Delete(id primitive.ObjectID) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if _, ok := c.db.docs[c.name][id]; !ok {
		return ErrNoDocument
	}
	delete(c.db.docs[c.name], id)
	ids := c.db.order[c.name]
	for i, x := range ids {
		if x == id {
			c.db.order[c.name] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Find returns copies of every document matching pred (nil matches all), in insertion order.
func (c *MemCollection[T]) Find(pred func(*T) bool) ([]*T, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	out := []*T{}
	for _, id := range c.db.order[c.name] {
		v, err := decode[T](c.db.docs[c.name][id])
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// FindOne returns the first document matching pred.
func (c *MemCollection[T]) FindOne(pred func(*T) bool) (*T, error) {
	all, err := c.Find(pred)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoDocument
	}
	return all[0], nil
}
