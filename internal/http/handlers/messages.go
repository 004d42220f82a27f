package handlers

var messages = map[string]map[string]string{
	"unauthorized": {
		"en": "sign in to continue",
		"id": "silakan masuk untuk melanjutkan",
	},
	"forbidden": {
		"en": "you do not have access to this resource",
		"id": "anda tidak memiliki akses ke sumber ini",
	},
	"not_found": {
		"en": "resource not found",
		"id": "data tidak ditemukan",
	},
	"bad_request": {
		"en": "the request is invalid",
		"id": "permintaan tidak valid",
	},
	"missing_prompt": {
		"en": "this page has no illustration prompt yet",
		"id": "halaman ini belum memiliki deskripsi ilustrasi",
	},
	"task_not_completed": {
		"en": "the illustrations are not finished yet",
		"id": "ilustrasi belum selesai dibuat",
	},
	"generation_timeout": {
		"en": "image generation timed out, please retry",
		"id": "pembuatan gambar melebihi batas waktu, silakan coba lagi",
	},
	"generation_failed": {
		"en": "image generation failed, please retry",
		"id": "pembuatan gambar gagal, silakan coba lagi",
	},
	"internal": {
		"en": "something went wrong, please retry",
		"id": "terjadi kesalahan, silakan coba lagi",
	},
	"unavailable": {
		"en": "service unavailable",
		"id": "layanan tidak tersedia",
	},
}

func localize(code, locale string) string {
	m, ok := messages[code]
	if !ok {
		m = messages["internal"]
	}
	if msg, ok := m[locale]; ok {
		return msg
	}
	return m["en"]
}
