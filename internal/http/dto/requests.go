package dto

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SetPayoutAccountRequest struct {
	AccountRef string `json:"account_ref"`
}

type CreatePaymentRequest struct {
	CounterpartyID string `json:"counterparty_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	ServiceType    string `json:"service_type"`
	Description    string `json:"description"`
	Urgency        string `json:"urgency"`
	EtaDays        int    `json:"eta_days"`
}

type RespondRequest struct {
	Action string `json:"action"` // accept / reject
}

type ProceedPaymentRequest struct {
	PaymentMethodRef string `json:"payment_method_ref"`
}

type SubmitDeliverableRequest struct {
	FileRef string `json:"file_ref"`
}

type ReviewDeliverableRequest struct {
	Decision string `json:"decision"` // accept / reject
	Notes    string `json:"notes"`
}

type DisputeRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Favor string `json:"favor"` // payer / payee
}

type RefundRequest struct {
	ReasonCode string `json:"reason_code"`
}
