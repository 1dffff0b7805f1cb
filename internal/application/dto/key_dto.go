package dto

// FetchKeyRequest 密钥请求 DTO
//
// Binary fields are standard base64 unless noted.
type FetchKeyRequest struct {
	// PTB is the policy transaction the client signed.
	PTB                string         `json:"ptb" binding:"required"`
	EncKey             string         `json:"enc_key" binding:"required"`
	EncVerificationKey string         `json:"enc_verification_key" binding:"required"`
	RequestSignature   string         `json:"request_signature" binding:"required"`
	Certificate        CertificateDTO `json:"certificate" binding:"required"`
}

// CertificateDTO 会话证书 DTO
type CertificateDTO struct {
	// User is the 0x-prefixed hex address of the signing identity.
	User string `json:"user" binding:"required"`
	// PolicyScope is the 0x-prefixed hex package the certificate was signed for.
	PolicyScope  string  `json:"policy_scope" binding:"required"`
	SessionVK    string  `json:"session_vk" binding:"required"`
	CreationTime uint64  `json:"creation_time" binding:"required"`
	TTLMin       uint16  `json:"ttl_min" binding:"required"`
	Signature    string  `json:"signature" binding:"required"`
	MvrName      *string `json:"mvr_name,omitempty"`
}

// FetchKeyResponse 密钥响应 DTO
type FetchKeyResponse struct {
	PolicyScope    string             `json:"policy_scope"`
	DecryptionKeys []DecryptionKeyDTO `json:"decryption_keys"`
}

// DecryptionKeyDTO 单个加密的密钥分片
type DecryptionKeyDTO struct {
	ID           string `json:"id"`
	EncryptedKey string `json:"encrypted_key"`
}

// ServiceInfoResponse 节点信息 DTO
type ServiceInfoResponse struct {
	ServiceID string `json:"service_id"`
	MasterID  string `json:"master_id"`
	Version   string `json:"version"`
}
