package keyspace

import (
	"fmt"

	"github.com/cuemby/emberdb/pkg/object"
)

// Keyspace is the fixed-size array of databases that a server process
// multiplexes, plus the shared interning pool, exposed through Pool.
// No Database method and no command passes values through
// Pool.Intern, so stored string values are not deduplicated.
type Keyspace struct {
	dbs  []*Database
	pool *object.Pool
}

// New creates a Keyspace with the given number of databases. poolSize
// of zero disables interning (spec.md's `shareobjects no`).
func New(numDatabases int, poolSize int) *Keyspace {
	pool := object.NewPool(poolSize)
	ks := &Keyspace{
		dbs:  make([]*Database, numDatabases),
		pool: pool,
	}
	for i := range ks.dbs {
		ks.dbs[i] = newDatabase(i, pool)
	}
	return ks
}

// NumDatabases reports how many databases the keyspace holds.
func (k *Keyspace) NumDatabases() int { return len(k.dbs) }

// DB returns the database at index i, or an error if i is out of range
// — the SELECT command's bounds check.
func (k *Keyspace) DB(i int) (*Database, error) {
	if i < 0 || i >= len(k.dbs) {
		return nil, fmt.Errorf("DB index out of range: %d", i)
	}
	return k.dbs[i], nil
}

// Pool returns the shared interning pool.
func (k *Keyspace) Pool() *object.Pool { return k.pool }

// All returns every database, in index order, for iteration by the
// maintenance task and the snapshot writer.
func (k *Keyspace) All() []*Database { return k.dbs }

// FlushAll empties every database.
func (k *Keyspace) FlushAll() {
	for _, d := range k.dbs {
		d.Flush()
	}
}
