package models

// VoterIdentity is either an authenticated token or an anonymous origin
// fingerprint. The zero value is an anonymous identity with no origin.
type VoterIdentity struct {
	token  string
	origin string
}

// Authenticated builds an identity keyed on a caller-supplied token. The
// origin is kept for the ledger but never used for uniqueness.
func Authenticated(token, origin string) VoterIdentity {
	return VoterIdentity{token: token, origin: origin}
}

// Anonymous builds an identity keyed on the network origin
func Anonymous(origin string) VoterIdentity {
	return VoterIdentity{origin: origin}
}

func (v VoterIdentity) IsAnonymous() bool { return v.token == "" }

func (v VoterIdentity) Token() string { return v.token }

func (v VoterIdentity) Origin() string { return v.origin }

// Key is the value the uniqueness constraint is enforced on
func (v VoterIdentity) Key() string {
	if v.IsAnonymous() {
		return "ip:" + v.origin
	}
	return "voter:" + v.token
}

func (v VoterIdentity) String() string { return v.Key() }
