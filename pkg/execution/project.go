package execution

import (
	"github.com/cockroachdb/errors"

	"qpexec/pkg/dberror"
	"qpexec/pkg/iterator"
	"qpexec/pkg/registry"
	"qpexec/pkg/storage/page"
	"qpexec/pkg/tuple"
)

// Project keeps a subset of the child's fields, in the given order. Output
// pages are re-sized for the narrower tuples.
type Project struct {
	iterator.BaseOperator
	fields   []int
	child    iterator.PageIterator
	td       *tuple.TupleDescription
	capacity int
	stream   *iterator.TupleStream
}

func NewProject(qc *registry.QueryContext, fields []int, child iterator.PageIterator) (*Project, error) {
	if child == nil {
		return nil, errors.New("child operator cannot be nil")
	}
	if len(fields) == 0 {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "projection needs at least one field")
	}

	td, err := child.GetTupleDesc().Project(fields)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeInvalidArgument, "NewProject", iterator.OpProject.String())
	}
	capacity, err := page.CapacityFor(qc.PageSize(), td)
	if err != nil {
		return nil, err
	}

	return &Project{
		BaseOperator: iterator.NewBaseOperator(iterator.OpProject.String(), qc.Logger(), qc.Metrics()),
		fields:       append([]int(nil), fields...),
		child:        child,
		td:           td,
		capacity:     capacity,
	}, nil
}

func (p *Project) Open() error {
	if err := p.child.Open(); err != nil {
		return dberror.Wrap(err, dberror.CodeChildOpenFailed, "Open", p.Name())
	}
	p.stream = iterator.NewTupleStream(p.child)
	p.MarkOpened()
	return nil
}

func (p *Project) Next() (*page.Batch, error) {
	if err := p.CheckOpen(); err != nil {
		return nil, err
	}
	b, err := iterator.FillPage(p.stream, p.td, p.capacity, nil, func(t *tuple.Tuple) (*tuple.Tuple, error) {
		return t.Project(p.td, p.fields)
	})
	if err != nil {
		return nil, errors.Wrap(err, "project")
	}
	return p.Emit(b), nil
}

func (p *Project) Close() error {
	if !p.BeginClose() {
		return nil
	}
	p.LogCleanup("close child", p.child.Close())
	return nil
}

func (p *Project) GetTupleDesc() *tuple.TupleDescription {
	return p.td
}
