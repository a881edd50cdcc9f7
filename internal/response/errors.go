package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrUnauthorized      ErrCode = "UNAUTHORIZED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation          ErrCode = "VALIDATION_ERROR"
	ErrInvalidID           ErrCode = "INVALID_ID"
	ErrInvalidPayload      ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswerFormat ErrCode = "INVALID_ANSWER_FORMAT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound              ErrCode = "NOT_FOUND"
	ErrConfigurationNotFound ErrCode = "CONFIGURATION_NOT_FOUND"
	ErrAssessmentNotFound    ErrCode = "ASSESSMENT_NOT_FOUND"
	ErrAssignmentNotFound    ErrCode = "ASSIGNMENT_NOT_FOUND"
	ErrSessionNotFound       ErrCode = "SESSION_NOT_FOUND"
	ErrQuestionNotFound      ErrCode = "QUESTION_NOT_FOUND"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrNoQuestionsAvailable ErrCode = "NO_QUESTIONS_AVAILABLE"
	ErrAssessmentCompleted  ErrCode = "ASSESSMENT_COMPLETED"
	ErrDuplicateSubmission  ErrCode = "DUPLICATE_SUBMISSION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStorageFailure ErrCode = "STORAGE_FAILURE"
	ErrInternal       ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
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
	case ErrUnauthorized:
		return "Asesmen ini bukan milik Anda."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidAnswerFormat:
		return "Format jawaban tidak sesuai dengan tipe soal."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConfigurationNotFound:
		return "Konfigurasi asesmen untuk kelas dan mata pelajaran ini belum tersedia."
	case ErrAssessmentNotFound:
		return "Asesmen tidak ditemukan."
	case ErrAssignmentNotFound:
		return "Penugasan tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi asesmen tidak ditemukan atau telah berakhir."
	case ErrQuestionNotFound:
		return "Soal tidak ditemukan."

	// ─── Assessment-specific ───────────────────────────────────────────
	case ErrNoQuestionsAvailable:
		return "Tidak ada soal yang tersedia untuk asesmen ini."
	case ErrAssessmentCompleted:
		return "Asesmen ini sudah selesai."
	case ErrDuplicateSubmission:
		return "Jawaban untuk soal ini sudah dikirim."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStorageFailure:
		return "Gagal menyimpan atau membaca data. Silakan coba lagi."
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
