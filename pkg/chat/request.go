package chat

// TurnRequest is the wire payload for one chat turn. The field names match
// the deployed endpoint contract and must not change.
type TurnRequest struct {
	UserInput string `json:"user_input"`
	ThreadID  string `json:"thread_id"`
}

// ErrorResponse is the JSON body for rejected requests.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
