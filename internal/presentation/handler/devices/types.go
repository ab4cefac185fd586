package devices

// connectRequest asks to create a session (empty code) or join an existing
// one. The code, when present, must be exactly six digits.
type connectRequest struct {
	Code string `json:"code,omitempty"`
}

type connectResponse struct {
	Success    bool   `json:"success"`
	DeviceCode string `json:"deviceCode"`
	IsNew      bool   `json:"isNew"`
	SecretKey  string `json:"secretKey"`
}

type clipboardResponse struct {
	Success    bool   `json:"success"`
	Text       string `json:"text"`
	LastUpdate string `json:"lastUpdate"`
}
