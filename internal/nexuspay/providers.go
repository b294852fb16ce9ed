package nexuspay

import "strings"

// Gateway routing codes per e-wallet provider. The mapping is fixed by the
// gateway's payout API; an unknown provider falls back to GCash.
var providerCodes = map[string]string{
	"gcash":   "GCSH",
	"maya":    "PYMY",
	"paymaya": "PYMY",
	"grabpay": "GRPY",
}

const defaultProviderCode = "GCSH"

func ProviderCode(provider string) string {
	if code, ok := providerCodes[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return code
	}
	return defaultProviderCode
}

// Gateway status tokens that mean a cash-in payment went through. The gateway
// is not consistent about which one it reports.
var successStatuses = map[string]bool{
	"success":    true,
	"successful": true,
	"completed":  true,
	"paid":       true,
}

func IsSuccessStatus(status string) bool {
	return successStatuses[strings.ToLower(strings.TrimSpace(status))]
}
