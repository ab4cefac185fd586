package health

type healthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	ConnectedCount int    `json:"connectedCount"`
}
