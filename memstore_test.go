package tsgate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-process Store with real TTL expiry, standing in for
// Redis in tests. setFailing(true) makes every operation fail to exercise
// degradation paths.
type memStore struct {
	mu      sync.Mutex
	strings map[string]string
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	expires map[string]time.Time
	subs    map[string][]*memSubscription
	failing bool
}

func newMemStore() *memStore {
	return &memStore{
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
		subs:    make(map[string][]*memSubscription),
	}
}

func (s *memStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

// reap drops the key if its TTL has lapsed. Caller must hold s.mu.
func (s *memStore) reap(key string) {
	if exp, ok := s.expires[key]; ok && time.Now().After(exp) {
		s.dropLocked(key)
	}
}

func (s *memStore) dropLocked(key string) {
	delete(s.strings, key)
	delete(s.sets, key)
	delete(s.hashes, key)
	delete(s.expires, key)
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", errStoreDown
	}
	s.reap(key)
	v, ok := s.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.strings[key] = value
	s.expires[key] = time.Now().Add(ttl)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.dropLocked(key)
	return nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errStoreDown
	}
	s.reap(key)
	if _, ok := s.strings[key]; ok {
		return true, nil
	}
	if _, ok := s.sets[key]; ok {
		return true, nil
	}
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	return false, nil
}

func (s *memStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.reap(key)
	s.expires[key] = time.Now().Add(ttl)
	return nil
}

func (s *memStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}
	s.reap(key)
	exp, ok := s.expires[key]
	if !ok {
		return 0, ErrNotFound
	}
	return time.Until(exp), nil
}

func (s *memStore) SAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.reap(key)
	if s.sets[key] == nil {
		s.sets[key] = make(map[string]struct{})
	}
	s.sets[key][member] = struct{}{}
	return nil
}

func (s *memStore) SRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.reap(key)
	if members, ok := s.sets[key]; ok {
		delete(members, member)
		if len(members) == 0 {
			delete(s.sets, key)
		}
	}
	return nil
}

func (s *memStore) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errStoreDown
	}
	s.reap(key)
	return int64(len(s.sets[key])), nil
}

func (s *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	s.reap(key)
	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (s *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	s.hsetLocked(key, fields)
	return nil
}

func (s *memStore) hsetLocked(key string, fields map[string]string) {
	s.reap(key)
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	for f, v := range fields {
		s.hashes[key][f] = v
	}
}

func (s *memStore) HGet(_ context.Context, key, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", errStoreDown
	}
	s.reap(key)
	v, ok := s.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	s.reap(key)
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *memStore) Publish(_ context.Context, channel string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errStoreDown
	}
	for _, sub := range s.subs[channel] {
		select {
		case sub.ch <- Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

func (s *memStore) Subscribe(_ context.Context, channel string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errStoreDown
	}
	sub := &memSubscription{
		store:   s,
		channel: channel,
		ch:      make(chan Message, 64),
	}
	s.subs[channel] = append(s.subs[channel], sub)
	return sub, nil
}

type memSubscription struct {
	store   *memStore
	channel string
	ch      chan Message
	closed  bool
}

func (sub *memSubscription) Messages() <-chan Message {
	return sub.ch
}

func (sub *memSubscription) Close() error {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	if sub.closed {
		return nil
	}
	sub.closed = true
	subs := sub.store.subs[sub.channel]
	for i, other := range subs {
		if other == sub {
			sub.store.subs[sub.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(sub.ch)
	return nil
}

func (s *memStore) Batch() Batch {
	return &memBatch{store: s}
}

type memBatch struct {
	store *memStore
	ops   []func()
}

func (b *memBatch) HSet(key string, fields map[string]string) {
	copied := make(map[string]string, len(fields))
	for f, v := range fields {
		copied[f] = v
	}
	b.ops = append(b.ops, func() { b.store.hsetLocked(key, copied) })
}

func (b *memBatch) SAdd(key string, member string) {
	b.ops = append(b.ops, func() {
		b.store.reap(key)
		if b.store.sets[key] == nil {
			b.store.sets[key] = make(map[string]struct{})
		}
		b.store.sets[key][member] = struct{}{}
	})
}

func (b *memBatch) Expire(key string, ttl time.Duration) {
	b.ops = append(b.ops, func() {
		b.store.expires[key] = time.Now().Add(ttl)
	})
}

func (b *memBatch) Exec(_ context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.failing {
		return errStoreDown
	}
	for _, op := range b.ops {
		op()
	}
	b.ops = nil
	return nil
}
