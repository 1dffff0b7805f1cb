package sealclient

// Certificate is the wire form of a session certificate.
type Certificate struct {
	User         string  `json:"user"`
	PolicyScope  string  `json:"policy_scope"`
	SessionVK    string  `json:"session_vk"`
	CreationTime uint64  `json:"creation_time"`
	TTLMin       uint16  `json:"ttl_min"`
	Signature    string  `json:"signature"`
	MvrName      *string `json:"mvr_name,omitempty"`
}

// FetchKeyRequest is the body of POST /v1/fetch_key.
type FetchKeyRequest struct {
	PTB                string      `json:"ptb"`
	EncKey             string      `json:"enc_key"`
	EncVerificationKey string      `json:"enc_verification_key"`
	RequestSignature   string      `json:"request_signature"`
	Certificate        Certificate `json:"certificate"`
}

// DecryptionKey is one sealed key share.
type DecryptionKey struct {
	ID           string `json:"id"`
	EncryptedKey string `json:"encrypted_key"`
}

// FetchKeyResponse is the body of a successful fetch.
type FetchKeyResponse struct {
	PolicyScope    string          `json:"policy_scope"`
	DecryptionKeys []DecryptionKey `json:"decryption_keys"`
}

// ServiceInfo is the body of GET /v1/service.
type ServiceInfo struct {
	ServiceID string `json:"service_id"`
	MasterID  string `json:"master_id"`
	Version   string `json:"version"`
}

// KeyShare is a decrypted key share.
type KeyShare struct {
	ID  string
	Key []byte
}
