package utils

// APIResponse is the envelope the booking frontend already speaks:
// status "OK" plus payload on success, a human-readable pesan on failure.
type APIResponse struct {
	Status string      `json:"status,omitempty"`
	Pesan  string      `json:"pesan,omitempty"`
	Error  string      `json:"error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Status: "OK", Data: data}
}

func ErrorResponse(pesan, detail string) APIResponse {
	return APIResponse{Pesan: pesan, Error: detail}
}
