package config

const (
	baseURLVar     = "API_BASE_URL"
	httpTimeoutVar = "HTTP_TIMEOUT"
	folderEnvVar   = "FOLDER"
	storeSecretVar = "STORE_SECRET"
)

type ClientVars struct{}

var _ ClientConfig = ClientVars{}

// GetBaseURL returns the base URL of the appointment-booking API,
// including the /api prefix.
func (ClientVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:5000/api")
}

// GetHTTPTimeout returns the per-request timeout as a time.Duration
// string (e.g. "10s").
func (ClientVars) GetHTTPTimeout() string {
	return GetEnv(httpTimeoutVar, "10s")
}

// GetDataFolder returns the folder holding the encrypted credential file.
func (ClientVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetStoreSecret returns the secret sealing the credential store. The
// default keeps development friction low; production deployments set
// their own.
func (ClientVars) GetStoreSecret() string {
	return GetEnv(storeSecretVar, "slotbook-dev-secret")
}
