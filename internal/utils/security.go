package utils

// MaskPhoneNumber masks a phone number for secure logging
// Keeps first 3 and last 4 characters visible, masks the rest
//
// Examples:
//   - "+1234567890" -> "+12****7890"
//   - "+12345" -> "****"
func MaskPhoneNumber(phone string) string {
	if len(phone) <= 6 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-4:]
}

// MaskSecret keeps only the last 4 characters of a token or password
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}

	return "****" + secret[len(secret)-4:]
}
