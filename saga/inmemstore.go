package saga

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// NewInMemoryStore returns a Store keeping marshalled executions in process
// memory. Entries go through the marshaller on every save and load, so loaded
// copies behave exactly like rows from a durable store: detached from the
// live execution and stripped of compensation closures. Suited for tests and
// single-process deployments.
func NewInMemoryStore(marshaller Marshaller) Store {
	return &inMemoryStore{
		marshaller: marshaller,
		records:    xsync.NewMapOf[SagaID, []byte](),
	}
}

type inMemoryStore struct {
	marshaller Marshaller
	records    *xsync.MapOf[SagaID, []byte]
}

func (s *inMemoryStore) Save(ctx context.Context, exec *Execution) error {
	data, err := s.marshaller.Marshal(exec)
	if err != nil {
		return err
	}

	s.records.Store(exec.SagaID(), data)

	return nil
}

func (s *inMemoryStore) GetByID(ctx context.Context, sagaID SagaID) (*Execution, error) {
	data, ok := s.records.Load(sagaID)
	if !ok {
		return nil, nil
	}

	return s.marshaller.Unmarshal(data)
}

func (s *inMemoryStore) GetByFilter(ctx context.Context, filters ...FilterOption) ([]*Execution, error) {
	opts := &filterOptions{}
	for _, filter := range filters {
		filter(opts)
	}

	var (
		res     []*Execution
		loadErr error
	)

	s.records.Range(func(id SagaID, data []byte) bool {
		exec, err := s.marshaller.Unmarshal(data)
		if err != nil {
			loadErr = err
			return false
		}

		if opts.sagaID != "" && exec.SagaID().String() != opts.sagaID {
			return true
		}

		if opts.status != "" && exec.Status().String() != opts.status {
			return true
		}

		if opts.sagaName != "" && exec.SagaName() != opts.sagaName {
			return true
		}

		res = append(res, exec)
		return true
	})

	return res, loadErr
}

func (s *inMemoryStore) FindInterrupted(ctx context.Context) ([]*Execution, error) {
	var (
		res     []*Execution
		loadErr error
	)

	s.records.Range(func(id SagaID, data []byte) bool {
		exec, err := s.marshaller.Unmarshal(data)
		if err != nil {
			loadErr = err
			return false
		}

		if !exec.Status().IsTerminal() {
			res = append(res, exec)
		}

		return true
	})

	return res, loadErr
}

func (s *inMemoryStore) Delete(ctx context.Context, sagaID SagaID) error {
	s.records.Delete(sagaID)
	return nil
}
