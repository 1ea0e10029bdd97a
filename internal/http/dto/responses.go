package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error       string            `json:"error"`
	Fields      map[string]string `json:"fields,omitempty"`
	GatewayCode string            `json:"gateway_code,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PayoutAccountResponse struct {
	Connected  bool    `json:"connected"`
	AccountRef *string `json:"account_ref,omitempty"`
}

type ProceedPaymentResponse struct {
	Request any `json:"request"`
	Order   any `json:"order"`
}
