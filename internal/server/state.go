package server

// ConnectionState represents the auth state machine for a client connection.
type ConnectionState int32

const (
	StateInitial     ConnectionState = iota // TCP connected, waiting for USERNAME_AND_ID
	StateConnected                          // name admitted, auth path not yet chosen
	StateAuthorizing                        // known name, expecting the account password
	StateRegistering                        // new name, first password registers it
	StateAuthorized                         // full access to matchmaking and sessions
)

func (s ConnectionState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateConnected:
		return "CONNECTED"
	case StateAuthorizing:
		return "AUTHORIZING"
	case StateRegistering:
		return "REGISTERING"
	case StateAuthorized:
		return "AUTHORIZED"
	default:
		return "UNKNOWN"
	}
}
