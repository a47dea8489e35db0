package transaction

import (
	"encoding/json"
	"testing"
	"time"
)

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind  Kind
		code  int
		name  string
		class Class
	}{
		{KindDeposit, 0, "deposit", ClassIncome},
		{KindWithdrawal, 1, "withdrawal", ClassExpense},
		{KindTransfer, 2, "transfer", ClassNeutral},
		{KindGroupPayout, 3, "group_payout", ClassNeutral},
		{KindPurchase, 4, "purchase", ClassExpense},
		{KindSale, 5, "sale", ClassIncome},
		{KindFee, 6, "fee", ClassNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.kind) != tt.code {
				t.Errorf("code: got %d, want %d", int(tt.kind), tt.code)
			}
			if tt.kind.String() != tt.name {
				t.Errorf("name: got %q, want %q", tt.kind.String(), tt.name)
			}
			if tt.kind.Class() != tt.class {
				t.Errorf("class: got %v, want %v", tt.kind.Class(), tt.class)
			}
		})
	}

	if len(Kinds()) != len(tests) {
		t.Errorf("Kinds() returned %d kinds, want %d", len(Kinds()), len(tests))
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"sale", KindSale, false},
		{"group_payout", KindGroupPayout, false},
		{"4", KindPurchase, false},
		{"0", KindDeposit, false},
		{"7", 0, true},
		{"-1", 0, true},
		{"Sale", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(map[Kind]int64{KindSale: 5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"sale":5}` {
		t.Errorf("got %s", data)
	}

	if _, err := json.Marshal(Kind(42)); err == nil {
		t.Error("expected error marshaling an invalid kind")
	}
}

func TestListOptsMatches(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	txn := &Transaction{SenderID: "a", ReceiverID: "b", Amount: 10, Kind: KindSale, Timestamp: at}

	tests := []struct {
		name string
		opts ListOpts
		want bool
	}{
		{"empty", ListOpts{}, true},
		{"sender", ListOpts{AccountID: "a"}, true},
		{"receiver", ListOpts{AccountID: "b"}, true},
		{"other account", ListOpts{AccountID: "c"}, false},
		{"kind match", ListOpts{Kinds: []Kind{KindDeposit, KindSale}}, true},
		{"kind miss", ListOpts{Kinds: []Kind{KindFee}}, false},
		{"start inclusive", ListOpts{Start: at}, true},
		{"end inclusive", ListOpts{End: at}, true},
		{"before window", ListOpts{Start: at.Add(time.Second)}, false},
		{"after window", ListOpts{End: at.Add(-time.Second)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Matches(txn); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameRequest(t *testing.T) {
	a := &Transaction{SenderID: "a", ReceiverID: "b", Amount: 10, Kind: KindTransfer, Description: "x"}
	b := *a
	if !a.SameRequest(&b) {
		t.Error("identical requests should match")
	}
	b.Amount = 11
	if a.SameRequest(&b) {
		t.Error("different amounts should not match")
	}
}
