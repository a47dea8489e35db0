package identity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/xraph/accounting/transaction"
)

func TestResolverName(t *testing.T) {
	dir := DirectoryFunc(func(_ context.Context, accountID string) (string, error) {
		switch accountID {
		case "alice":
			return "Alice Resident", nil
		case "broken":
			return "", errors.New("directory offline")
		case "blank":
			return "", nil
		}
		return "", ErrNotFound
	})
	r := NewResolver(dir, nil)

	tests := []struct {
		id   string
		want string
	}{
		{"alice", "Alice Resident"},
		{transaction.SystemAccount, SystemName},
		{"bob", UnknownName},
		{"broken", UnknownName},
		{"blank", UnknownName},
		{"", UnknownName},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := r.Name(context.Background(), tt.id); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolverNilDirectory(t *testing.T) {
	r := NewResolver(nil, nil)
	if got := r.Name(context.Background(), "alice"); got != UnknownName {
		t.Errorf("got %q, want %q", got, UnknownName)
	}
	if got := r.Name(context.Background(), transaction.SystemAccount); got != SystemName {
		t.Errorf("got %q, want %q", got, SystemName)
	}
}

func TestResolverNamesDeduplicates(t *testing.T) {
	var calls atomic.Int32
	dir := DirectoryFunc(func(_ context.Context, accountID string) (string, error) {
		calls.Add(1)
		return Static{"alice": "Alice", "bob": "Bob"}.ResolveName(context.Background(), accountID)
	})
	r := NewResolver(dir, nil)

	names := r.Names(context.Background(), "alice", "bob", "alice", transaction.SystemAccount, "carol", "bob")

	want := map[string]string{
		"alice":                   "Alice",
		"bob":                     "Bob",
		transaction.SystemAccount: SystemName,
		"carol":                   UnknownName,
	}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for id, w := range want {
		if names[id] != w {
			t.Errorf("%s: got %q, want %q", id, names[id], w)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 directory calls, got %d", calls.Load())
	}
}
