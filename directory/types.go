package directory

// Record is one row of a directory lookup: a multisig and its registered members.
type Record struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

// RegisterRequest is the body of POST /multisig.
type RegisterRequest struct {
	MultisigID string   `json:"multisigId"`
	Members    []string `json:"members"`
}

// MessageResponse is the body of a successful POST /multisig.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer of the directory.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	MsgMemberNotFound = "Member not found"
	MsgDatabaseError  = "Database error"
	MsgRegistered     = "Multisig saved"
)
