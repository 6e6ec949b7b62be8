package testmocks

import (
	"github.com/paulmach/osm"
)

type MockPBFReader struct {
	ScanFunc   func() bool
	ObjectFunc func() osm.Object
	ErrFunc    func() error
	CloseFunc  func() error
}

func (r *MockPBFReader) Scan() bool {
	return r.ScanFunc()
}

func (r *MockPBFReader) Object() osm.Object {
	return r.ObjectFunc()
}

func (r *MockPBFReader) Err() error {
	return r.ErrFunc()
}

func (r *MockPBFReader) Close() error {
	return r.CloseFunc()
}

func NewMockPBFReaderFromObjects(objects ...osm.Object) *MockPBFReader {
	index := -1
	return &MockPBFReader{
		ScanFunc: func() bool {
			if index+1 >= len(objects) {
				return false
			}

			index++
			return true
		},
		ObjectFunc: func() osm.Object {
			return objects[index]
		},
		ErrFunc: func() error {
			return nil
		},
		CloseFunc: func() error {
			return nil
		},
	}
}
