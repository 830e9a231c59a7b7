package sync

import "github.com/hitoshi/genba/internal/procore"

// contractValueProbes は契約金額の候補フィールドを優先順に返す
// 抽出関数のリスト。最初の非nilが採用される。
// 優先順: grand_total → revised_contract_amount → contract_amount
// → commitment_contract_amount。
var contractValueProbes = []func(c *procore.Commitment) *procore.Money{
	func(c *procore.Commitment) *procore.Money { return c.GrandTotal },
	func(c *procore.Commitment) *procore.Money { return c.RevisedContractAmount },
	func(c *procore.Commitment) *procore.Money { return c.ContractAmount },
	func(c *procore.Commitment) *procore.Money { return c.CommitmentContractAmount },
}

// ContractValue はコミットメントの契約金額を候補フィールドの
// 優先順探索で導出する。どのフィールドにも値がない場合はnilを返す。
func ContractValue(c *procore.Commitment) *float64 {
	for _, probe := range contractValueProbes {
		if m := probe(c); m != nil {
			v := m.Float64()
			return &v
		}
	}
	return nil
}
