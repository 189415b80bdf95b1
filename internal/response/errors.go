package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorAccessOnly  ErrCode = "PROCTOR_ACCESS_ONLY"
	ErrAccessDenied       ErrCode = "ACCESS_DENIED"
	ErrOriginNotPermitted ErrCode = "ORIGIN_NOT_PERMITTED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session ───────────────────────────────────────────────────────
	ErrLoadFailure        ErrCode = "LOAD_FAILURE"
	ErrSetLocked          ErrCode = "SET_LOCKED"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrChainInvalid       ErrCode = "CHAIN_INVALID"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrInvalidOption      ErrCode = "INVALID_OPTION"
	ErrEarlySubmit        ErrCode = "EARLY_SUBMIT_UNAVAILABLE"
	ErrTranslationFailure ErrCode = "TRANSLATION_FAILED"
	ErrCaptureBlocked     ErrCode = "CAPTURE_BLOCKED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrSessionActive:
		return "Anda sudah login di perangkat lain."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrProctorAccessOnly:
		return "Sumber daya ini terbatas untuk pengawas."
	case ErrAccessDenied:
		return "Anda belum memiliki akses ke ujian ini."
	case ErrOriginNotPermitted:
		return "Origin tidak diizinkan."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrLoadFailure:
		return "Soal tidak dapat dimuat. Silakan coba lagi."
	case ErrSetLocked:
		return "Set ini belum terbuka."
	case ErrAlreadySubmitted:
		return "Anda sudah menyelesaikan set ini."
	case ErrChainInvalid:
		return "Urutan set ujian tidak valid."
	case ErrSessionNotActive:
		return "Sesi ujian tidak aktif."
	case ErrInvalidOption:
		return "Pilihan jawaban tidak valid."
	case ErrEarlySubmit:
		return "Pengumpulan lebih awal tidak tersedia untuk soal ini."
	case ErrTranslationFailure:
		return "Terjemahan tidak tersedia. Soal ditampilkan dalam bahasa asli."
	case ErrCaptureBlocked:
		return "Perekaman layar tidak diizinkan selama ujian."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
