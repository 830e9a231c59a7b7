package procore

import "encoding/json"

// Project はProcoreのプロジェクトAPIレスポンスを表す。
type Project struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	ProjectNumber   string       `json:"project_number"`
	Active          bool         `json:"active"`
	Address         string       `json:"address"`
	City            string       `json:"city"`
	StateCode       string       `json:"state_code"`
	Zip             string       `json:"zip"`
	County          string       `json:"county"`
	StartDate       string       `json:"start_date"`
	CompletionDate  string       `json:"completion_date"`
	ProjectedFinish string       `json:"projected_finish_date"`
	EstimatedValue  *Money       `json:"estimated_value"`
	TotalValue      *Money       `json:"total_value"`
	Stage           string       `json:"stage"`
	ProjectStage    *NamedRef    `json:"project_stage"`
	ProjectManager  *PersonRef   `json:"project_manager"`
}

// NamedRef は名前付き参照（project_stage等）を表す。
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PersonRef は担当者参照を表す。
type PersonRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StageName はproject_stage.nameを優先し、なければstageを返す。
func (p *Project) StageName() string {
	if p.ProjectStage != nil && p.ProjectStage.Name != "" {
		return p.ProjectStage.Name
	}
	return p.Stage
}

// Commitment はProcoreのコミットメント（下請契約）APIレスポンスを表す。
// 金額フィールドはエンドポイントにより数値または数値文字列で返るため、
// Money型で吸収する。
type Commitment struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Number       string     `json:"number"`
	Status       string     `json:"status"`
	Executed     bool       `json:"executed"`
	ExecutedDate string     `json:"executed_date"`
	Vendor       *VendorRef `json:"vendor"`

	// 契約金額の候補フィールド。優先順に探索される。
	GrandTotal               *Money `json:"grand_total"`
	RevisedContractAmount    *Money `json:"revised_contract_amount"`
	ContractAmount           *Money `json:"contract_amount"`
	CommitmentContractAmount *Money `json:"commitment_contract_amount"`

	// コミットメントレベルのベンダー名フォールバックフィールド。
	VendorName        string `json:"vendor_name"`
	SubcontractorName string `json:"subcontractor_name"`
}

// VendorRef はコミットメントに埋め込まれたベンダー参照を表す。
// IDのみの場合と、名前・メールが埋め込まれている場合がある。
type VendorRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	EmailAddress string `json:"email_address"`
	Email        string `json:"email"`
}

// DisplayName はベンダー参照の表示名（name優先、次にcompany）を返す。
func (v *VendorRef) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Company
}

// ContactEmail はベンダー参照の連絡先メール（email_address優先）を返す。
func (v *VendorRef) ContactEmail() string {
	if v.EmailAddress != "" {
		return v.EmailAddress
	}
	return v.Email
}

// Vendor はProcoreのベンダーAPIレスポンスを表す。
type Vendor struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	EmailAddress string `json:"email_address"`
	Email        string `json:"email"`
}

// DisplayName はベンダーの表示名（name優先、次にcompany）を返す。
func (v *Vendor) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Company
}

// ContactEmail はベンダーの連絡先メール（email_address優先）を返す。
func (v *Vendor) ContactEmail() string {
	if v.EmailAddress != "" {
		return v.EmailAddress
	}
	return v.Email
}

// Money は数値または数値文字列のどちらで返る金額でもデコードできる型。
type Money float64

// UnmarshalJSON はjson.Numberと文字列の両方を受け付ける。
func (m *Money) UnmarshalJSON(data []byte) error {
	// 文字列表現（"50000.00"）の場合は引用符を剥がす
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		var n json.Number = json.Number(s)
		f, err := n.Float64()
		if err != nil {
			return err
		}
		*m = Money(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Money(f)
	return nil
}

// Float64 は金額をfloat64として返す。
func (m Money) Float64() float64 {
	return float64(m)
}

// TokenPair はProcoreのトークンエンドポイントが返すアクセストークンと
// リフレッシュトークンの組を表す。
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
