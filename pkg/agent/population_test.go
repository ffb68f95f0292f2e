package agent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPopulationKeepsInsertionOrder(t *testing.T) {
	p := NewPopulation()
	p.Add(New("c"), New("a"), New("b"))
	p.Add(New("a"))

	require.Equal(t, []string{"c", "a", "b"}, p.IDs())
	require.Equal(t, 3, p.Len())
}

func TestPopulationActiveAt(t *testing.T) {
	p := NewPopulation()
	alive := New("alive")
	alive.SetAttribute("age", "30", day("2024-01-01"))
	dead := New("dead")
	dead.Die(day("2024-01-15"))
	unborn := New("unborn")
	unborn.Born(day("2024-03-01"))
	p.Add(alive, dead, unborn)

	views := p.ActiveAt(day("2024-02-01"))
	require.Len(t, views, 1)
	require.Equal(t, "alive", views[0].ID)
	require.Equal(t, "30", views[0].Attributes["age"])

	views[0].Attributes["age"] = "99"
	got, ok := p.Get("alive")
	require.True(t, ok)
	require.Equal(t, "30", got.Attributes["age"])
}

func TestPopulationUpdate(t *testing.T) {
	p := NewPopulation()
	p.Add(New("a1"))

	p.Update(func(tx Txn) {
		s, ok := tx.Get("a1")
		require.True(t, ok)
		s.SetAttribute("income", "1000", day("2024-01-01"))

		created := tx.Ensure("a2")
		require.False(t, created.Active)
	})

	got, _ := p.Get("a1")
	require.Equal(t, "1000", got.Attributes["income"])
	require.Equal(t, []string{"a1", "a2"}, p.IDs())
}

func TestPopulationCloneAndReplace(t *testing.T) {
	p := NewPopulation()
	p.Add(New("a1"), New("a2"))
	base := p.Clone()

	p.Update(func(tx Txn) {
		s, _ := tx.Get("a1")
		s.Die(day("2024-01-01"))
		tx.Put(New("a3"))
	})
	require.Equal(t, 3, p.Len())
	require.Equal(t, 2, base.Len())

	p.ReplaceWith(base)
	require.Equal(t, []string{"a1", "a2"}, p.IDs())
	got, _ := p.Get("a1")
	require.True(t, got.Active)
}

func TestPopulationConcurrentReaders(t *testing.T) {
	p := NewPopulation()
	for _, id := range []string{"a", "b", "c", "d"} {
		p.Add(New(id))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Len(t, p.ActiveAt(day("2024-01-01")), 4)
		}()
	}
	p.Update(func(tx Txn) {
		s, _ := tx.Get("a")
		s.SetAttribute("k", "v", day("2024-01-01"))
	})
	wg.Wait()
}
