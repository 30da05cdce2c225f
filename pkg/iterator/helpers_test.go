package iterator

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"qpexec/pkg/dberror"
	"qpexec/pkg/logging"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
	"qpexec/pkg/types"
)

var desc = tuple.MustTupleDesc([]types.Type{types.IntType}, nil)

// pagesIterator replays fixed pages.
type pagesIterator struct {
	pages   [][]int64
	pos     int
	opened  bool
	closes  int
	openErr error
}

func (p *pagesIterator) Open() error {
	if p.openErr != nil {
		return p.openErr
	}
	p.opened = true
	return nil
}

func (p *pagesIterator) Next() (*page.Batch, error) {
	if p.pos >= len(p.pages) {
		return nil, nil
	}
	vals := p.pages[p.pos]
	p.pos++
	b := page.NewBatch(desc, 4)
	for _, v := range vals {
		tup, _ := tuple.FromFields(desc, types.NewIntField(v))
		_ = b.Add(tup)
	}
	return b, nil
}

func (p *pagesIterator) Close() error {
	p.closes++
	return nil
}

func (p *pagesIterator) GetTupleDesc() *tuple.TupleDescription {
	return desc
}

func TestDrain(t *testing.T) {
	it := &pagesIterator{pages: [][]int64{{1, 2}, {3}}}
	got, err := Drain(it)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 1, it.closes)
}

func TestDrain_OpenFailureStillCloses(t *testing.T) {
	it := &pagesIterator{openErr: errors.New("nope")}
	_, err := Drain(it)
	require.Error(t, err)
	require.Equal(t, 1, it.closes)
}

func TestCountAndCollectPages(t *testing.T) {
	n, err := Count(&pagesIterator{pages: [][]int64{{1, 2, 3}, {4}}})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	pages, err := CollectPages(&pagesIterator{pages: [][]int64{{1}, {2}}})
	require.NoError(t, err)
	require.Len(t, pages, 2)
}

func TestForEachTuple_StopsOnError(t *testing.T) {
	stop := errors.New("stop")
	seen := 0
	err := ForEachTuple(&pagesIterator{pages: [][]int64{{1, 2, 3}}}, func(*tuple.Tuple) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, seen)
}

func TestBaseOperator_Lifecycle(t *testing.T) {
	b := NewBaseOperator(OpDistinct.String(), logging.Discard(), nil)
	require.True(t, dberror.HasCode(b.CheckOpen(), dberror.CodeNotOpen))

	b.MarkOpened()
	require.NoError(t, b.CheckOpen())

	require.True(t, b.BeginClose())
	require.False(t, b.BeginClose())
	require.Error(t, b.CheckOpen())
}

func TestBaseOperator_CheckCapacity(t *testing.T) {
	b := NewBaseOperator(OpLimit.String(), logging.Discard(), nil)
	require.NoError(t, b.CheckCapacity(1))

	err := b.CheckCapacity(0)
	require.True(t, dberror.HasCode(err, dberror.CodeInvalidArgument), "got %v", err)
	var dbErr *dberror.DBError
	require.ErrorAs(t, err, &dbErr)
	require.Equal(t, dberror.ErrCategoryUser, dbErr.Category)
	require.Equal(t, OpLimit.String(), dbErr.Component)
	require.Error(t, b.CheckCapacity(-3))
}
