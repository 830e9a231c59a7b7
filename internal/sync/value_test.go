package sync

import (
	"testing"

	"github.com/hitoshi/genba/internal/procore"
)

func money(v float64) *procore.Money {
	m := procore.Money(v)
	return &m
}

func TestContractValue_ProbeOrder(t *testing.T) {
	cases := []struct {
		name string
		c    *procore.Commitment
		want *float64
	}{
		{
			name: "grand_total wins over all others",
			c: &procore.Commitment{
				GrandTotal:               money(100),
				RevisedContractAmount:    money(200),
				ContractAmount:           money(300),
				CommitmentContractAmount: money(400),
			},
			want: f64(100),
		},
		{
			name: "revised_contract_amount when grand_total absent",
			c: &procore.Commitment{
				RevisedContractAmount:    money(200),
				ContractAmount:           money(300),
				CommitmentContractAmount: money(400),
			},
			want: f64(200),
		},
		{
			name: "contract_amount third",
			c: &procore.Commitment{
				ContractAmount:           money(300),
				CommitmentContractAmount: money(400),
			},
			want: f64(300),
		},
		{
			name: "commitment_contract_amount last",
			c: &procore.Commitment{
				CommitmentContractAmount: money(400),
			},
			want: f64(400),
		},
		{
			name: "all absent yields nil",
			c:    &procore.Commitment{},
			want: nil,
		},
		{
			name: "explicit zero is a value, not absence",
			c: &procore.Commitment{
				GrandTotal:     money(0),
				ContractAmount: money(300),
			},
			want: f64(0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ContractValue(tc.c)
			if tc.want == nil {
				if got != nil {
					t.Errorf("ContractValue() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ContractValue() = nil, want %v", *tc.want)
			}
			if *got != *tc.want {
				t.Errorf("ContractValue() = %v, want %v", *got, *tc.want)
			}
		})
	}
}

func f64(v float64) *float64 {
	return &v
}
