package port

// CredentialHasher hashes and verifies secrets using the configured algorithm.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
}
