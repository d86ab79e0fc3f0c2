package storefakes

import (
	"sync"

	"github.com/ajay020/slotbook/credstore"
	"github.com/pkg/errors"
)

var _ credstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credstore.Store for tests. The Fail* fields,
// when set, force the corresponding operation to return that error.
type FakeStore struct {
	entries map[string]string
	lock    sync.RWMutex

	FailGet    error
	FailSet    error
	FailDelete error
	FailClear  error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{entries: make(map[string]string)}
}

func (fs *FakeStore) Get(key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.FailGet != nil {
		return "", fs.FailGet
	}
	value, ok := fs.entries[key]
	if !ok {
		return "", errors.Wrap(credstore.ErrNotFound, key)
	}
	return value, nil
}

func (fs *FakeStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailSet != nil {
		return fs.FailSet
	}
	fs.entries[key] = value
	return nil
}

func (fs *FakeStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailDelete != nil {
		return fs.FailDelete
	}
	delete(fs.entries, key)
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.FailClear != nil {
		return fs.FailClear
	}
	fs.entries = make(map[string]string)
	return nil
}

// Len reports the number of stored entries.
func (fs *FakeStore) Len() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return len(fs.entries)
}
