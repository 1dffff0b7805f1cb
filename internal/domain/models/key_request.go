package models

// KeyRequest is a client request for key shares, signed by the session key of a certificate.
type KeyRequest struct {
	// Transaction is the raw policy transaction bytes.
	Transaction []byte
	// EncryptionKey is the requester's ephemeral public encryption key.
	EncryptionKey []byte
	// VerificationKey is the verification key derived from the ephemeral encryption key.
	VerificationKey []byte
	// Signature is the session key's signature over the canonical request message.
	Signature []byte
}

// AuthorizedRequest is the outcome of a successful authorization check. The response builder
// uses PolicyIDs verbatim.
type AuthorizedRequest struct {
	User        ObjectID
	PolicyScope ObjectID
	PolicyIDs   []ObjectID
}

// EncryptedKeyShare is one entry of a key share response.
type EncryptedKeyShare struct {
	ID           ObjectID
	EncryptedKey []byte
}

// KeyShareResponse answers exactly one request. It is never cached.
type KeyShareResponse struct {
	PolicyScope ObjectID
	Keys        []EncryptedKeyShare
}
