package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type item struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
	Tags []string           `bson:"tags"`
}

func TestMemCollectionCRUD(t *testing.T) {
	db := NewMemDB()
	col := Collection[item](db, "items")

	a := &item{ID: primitive.NewObjectID(), Name: "a", Tags: []string{"x"}}
	b := &item{ID: primitive.NewObjectID(), Name: "b"}
	require.NoError(t, col.Insert(a.ID, a))
	require.NoError(t, col.Insert(b.ID, b))
	require.ErrorIs(t, col.Insert(a.ID, a), ErrDuplicateID)

	got, err := col.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, "a", got.Name)

	// copies are detached from the store
	got.Tags[0] = "mutated"
	again, _ := col.Get(a.ID)
	require.Equal(t, "x", again.Tags[0])

	_, err = col.Update(a.ID, func(it *item) error {
		it.Name = "a2"
		return nil
	})
	require.NoError(t, err)
	got, _ = col.Get(a.ID)
	require.Equal(t, "a2", got.Name)

	all, err := col.Find(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a2", all[0].Name)

	one, err := col.FindOne(func(it *item) bool { return it.Name == "b" })
	require.NoError(t, err)
	require.Equal(t, b.ID, one.ID)

	require.NoError(t, col.Delete(a.ID))
	_, err = col.Get(a.ID)
	require.ErrorIs(t, err, ErrNoDocument)
	require.ErrorIs(t, col.Delete(a.ID), ErrNoDocument)
	_, err = col.FindOne(func(it *item) bool { return it.Name == "zzz" })
	require.ErrorIs(t, err, ErrNoDocument)
}
