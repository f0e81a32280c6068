package types

import "github.com/plantomart/plantomart-backend/pkg/pagination"

// SuccessEnvelope wraps every 2xx body except the payment gateway endpoints, whose
// schemas are fixed.
type SuccessEnvelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       any              `json:"data"`
	Pagination *pagination.Page `json:"pagination,omitempty"`
}

type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
