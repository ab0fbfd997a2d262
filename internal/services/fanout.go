package services

import "golang.org/x/sync/errgroup"

// fanOut runs fn for every item concurrently and waits for all of them.
// Writes already issued are never cancelled; the first error is returned
// once everything has settled.
func fanOut[T any](items []T, fn func(T) error) error {
	var g errgroup.Group
	for _, it := range items {
		g.Go(func() error { return fn(it) })
	}
	return g.Wait()
}
