package httpapi

// request and response bodies for the REST surface

type registerRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type registerResponse struct {
	TelegramID int64  `json:"telegram_id"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
	PublicKey  string `json:"public_key,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type swapRequest struct {
	InputMint   string `json:"input_mint"`
	OutputMint  string `json:"output_mint"`
	Amount      uint64 `json:"amount"`
	SlippageBPS uint64 `json:"slippage_bps"`
}

type limitOrderRequest struct {
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	InAmount   uint64 `json:"in_amount"`
	OutAmount  uint64 `json:"out_amount"`
}

type createDCARequest struct {
	InputMint            string `json:"input_mint"`
	OutputMint           string `json:"output_mint"`
	TotalInAmount        uint64 `json:"total_in_amount"`
	InAmountPerCycle     uint64 `json:"in_amount_per_cycle"`
	CycleFrequency       uint64 `json:"cycle_frequency"`
	MinOutAmountPerCycle uint64 `json:"min_out_amount_per_cycle"`
	MaxOutAmountPerCycle uint64 `json:"max_out_amount_per_cycle"`
	Start                int64  `json:"start"`
}

type closeDCARequest struct {
	DCAPubKey string `json:"dca_pub_key"`
}

type withdrawRequest struct {
	Recipient string `json:"recipient"`
	Lamports  uint64 `json:"lamports"`
}

type balanceResponse struct {
	PublicKey string `json:"public_key"`
	Lamports  uint64 `json:"lamports"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r swapRequest) validate() string {
	if r.InputMint == "" || r.OutputMint == "" {
		return "input_mint and output_mint are required"
	}
	if r.Amount == 0 {
		return "amount must be positive"
	}
	return ""
}

func (r limitOrderRequest) validate() string {
	if r.InputMint == "" || r.OutputMint == "" {
		return "input_mint and output_mint are required"
	}
	if r.InAmount == 0 || r.OutAmount == 0 {
		return "in_amount and out_amount must be positive"
	}
	return ""
}

func (r createDCARequest) validate() string {
	if r.InputMint == "" || r.OutputMint == "" {
		return "input_mint and output_mint are required"
	}
	if r.TotalInAmount == 0 || r.InAmountPerCycle == 0 {
		return "total_in_amount and in_amount_per_cycle must be positive"
	}
	if r.InAmountPerCycle > r.TotalInAmount {
		return "in_amount_per_cycle cannot exceed total_in_amount"
	}
	if r.CycleFrequency == 0 {
		return "cycle_frequency must be positive"
	}
	return ""
}
